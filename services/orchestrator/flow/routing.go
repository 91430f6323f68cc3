// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

// RouteFunc inspects the post-merge state and names the next stage, or
// StageEnd to finish the turn.
type RouteFunc func(st *State) string

// RouteAfterModelRouter ends the turn when the router already produced a
// terminal answer (selection prompt, comparison, unsupported); otherwise
// an identified model proceeds to intent classification.
//
// The answer check comes first: a comparison answer on a session with an
// established model must still terminate instead of running an agent on
// the comparison text.
func RouteAfterModelRouter(st *State) string {
	if st.Answer != "" {
		return StageEnd
	}
	if st.Model != "" {
		return StageIntentRouter
	}
	return StageEnd
}

// RouteAfterIntentRouter dispatches to the specialization agent for the
// resolved intent. Unknown intents fall back to the general agent.
func RouteAfterIntentRouter(st *State) string {
	switch st.Intent {
	case IntentTroubleshoot:
		return StageTroubleshoot
	case IntentInstall:
		return StageInstall
	case IntentConnect:
		return StageConnect
	case IntentClinical:
		return StageClinical
	default:
		return StageGeneral
	}
}

// RouteToGuardrail sends every agent's output through validation.
func RouteToGuardrail(st *State) string {
	return StageGuardrail
}

// RouteAfterGuardrail loops a failed answer into remediation; anything
// else (passed, or force-passed fallback) ends the turn.
func RouteAfterGuardrail(st *State) string {
	if st.GuardrailPassed == GuardrailFailed {
		return StageFixResponse
	}
	return StageEnd
}

// RouteAfterFixResponse always re-validates the rewritten answer.
func RouteAfterFixResponse(st *State) string {
	return StageGuardrail
}
