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

import (
	"context"
	"log/slog"
)

// Intent labels, recomputed every turn.
const (
	IntentInstall      = "install"
	IntentConnect      = "connect"
	IntentTroubleshoot = "troubleshoot"
	IntentClinical     = "clinical"
	IntentGeneral      = "general"
)

var validIntents = map[string]bool{
	IntentInstall:      true,
	IntentConnect:      true,
	IntentTroubleshoot: true,
	IntentClinical:     true,
	IntentGeneral:      true,
}

// IntentRouter classifies the inbound message into one of the five
// intents. Any classifier failure or out-of-set label falls back to
// "general", the lowest-risk intent. NeedsDisclaimer is derived from
// the resolved intent on every turn, independent of classifier health.
func (s *StageSet) IntentRouter(ctx context.Context, st *State) (Patch, error) {
	allowed := []string{IntentInstall, IntentConnect, IntentTroubleshoot, IntentClinical, IntentGeneral}

	intent, err := s.Classify.Classify(ctx, intentRouterPrompt, st.LastUserMessage(), allowed)
	if err != nil || !validIntents[intent] {
		if err != nil {
			slog.Warn("Intent classification failed, falling back to general",
				"sessionId", st.SessionId, "error", err)
		}
		intent = IntentGeneral
	}

	return Patch{
		Intent:          strPtr(intent),
		NeedsDisclaimer: boolPtr(intent == IntentClinical),
	}, nil
}
