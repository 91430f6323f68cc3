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
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// DefaultMaxGuardrailRetries bounds the validate→remediate cycle per
// turn. Each remediation costs a generation call, so the bound is small.
const DefaultMaxGuardrailRetries = 2

// maxRetries returns the configured retry budget, defaulting to
// DefaultMaxGuardrailRetries when unset.
func (s *StageSet) maxRetries() int {
	if s.MaxGuardrailRetries > 0 {
		return s.MaxGuardrailRetries
	}
	return DefaultMaxGuardrailRetries
}

// Guardrail validates the answer produced upstream.
//
// # Description
//
// Deterministic checks run first, in a fixed order:
//  1. Missing mandatory notices (medical disclaimer when the turn needs
//     one, hardware disclaimer on level-3) are inserted in place and
//     recorded as non-fatal violations.
//  2. Cross-model isolation: a reference to any other catalog model is
//     a fatal violation.
//  3. Level-3 answers containing self-repair instructions are a fatal
//     violation (policy-rule scan).
//
// The LLM judgment runs only when no deterministic check failed, and it
// fails open: a judge error or unparseable verdict counts as a pass,
// because the deterministic layer already caught every violation class
// with a known shape.
//
// When a fatal violation is found after the retry budget is spent, the
// answer is replaced with the fixed safe fallback and the turn is
// force-passed so it terminates.
//
// # Limitations
//
// The cross-model scan only matches "InBody <model>" phrasing; a bare
// model number belonging to another model is left to the LLM judgment.
func (s *StageSet) Guardrail(ctx context.Context, st *State) (Patch, error) {
	// Terminal router answers (model selection, comparison) skip
	// validation entirely.
	if st.Answer == "" {
		return Patch{
			GuardrailPassed:     statusPtr(GuardrailPassed),
			GuardrailViolations: strSlicePtr(nil),
			GuardrailSuggestion: strPtr(""),
		}, nil
	}

	answer := st.Answer
	var violations []string
	hardFail := false

	// Check 1: mandatory notices, auto-inserted.
	if st.NeedsDisclaimer && !containsBlock(answer, MedicalDisclaimer) {
		answer = ensureSuffix(answer, MedicalDisclaimer)
		violations = append(violations, "면책 문구 자동 삽입: 의료 면책 문구 누락")
	}
	if st.SupportLevel == datatypes.SupportLevel3 && !containsBlock(answer, HardwareDisclaimer) {
		answer = ensureSuffix(answer, HardwareDisclaimer)
		violations = append(violations, "면책 문구 자동 삽입: 하드웨어 면책 문구 누락 (Level 3)")
	}

	// Check 2: cross-model isolation.
	if st.Model != "" {
		for _, other := range s.Catalog.IDs() {
			if other == st.Model {
				continue
			}
			if crossModelPattern(other).MatchString(answer) {
				violations = append(violations,
					fmt.Sprintf("기종 격리 위반: %s 기종 정보가 응답에 포함됨", other))
				hardFail = true
			}
		}
	}

	// Check 3: policy rules against unsafe self-repair guidance.
	if st.SupportLevel == datatypes.SupportLevel3 && s.Safety != nil {
		if hits := s.Safety.ScanAnswer(answer, st.SupportLevel); len(hits) > 0 {
			violations = append(violations, hits...)
			hardFail = true
		}
	}

	// Check 4: LLM judgment, only when the deterministic layer is clean.
	suggestion := ""
	if !hardFail && st.Model != "" && s.Judgment != nil {
		verdict, err := s.Judgment.Judge(ctx, st.Model, st.Intent, answer)
		if err != nil {
			slog.Warn("Guardrail judgment failed, treating as pass",
				"sessionId", st.SessionId, "error", err)
		} else if !verdict.Passed {
			violations = append(violations, verdict.Violations...)
			suggestion = verdict.Suggestion
			hardFail = true
		}
	}

	// Retry budget exhausted: substitute the fixed fallback and
	// force-pass so the turn terminates.
	if hardFail && st.GuardrailRetryCount >= s.maxRetries() {
		slog.Warn("Guardrail retry budget exhausted, substituting safe fallback",
			"sessionId", st.SessionId, "retries", st.GuardrailRetryCount,
			"violations", violations)
		return Patch{
			Answer:              strPtr(SafeFallbackAnswer),
			GuardrailPassed:     statusPtr(GuardrailPassed),
			GuardrailViolations: strSlicePtr(violations),
			GuardrailSuggestion: strPtr(""),
		}, nil
	}

	status := GuardrailPassed
	if hardFail {
		status = GuardrailFailed
	}
	return Patch{
		Answer:              strPtr(answer),
		GuardrailPassed:     statusPtr(status),
		GuardrailViolations: strSlicePtr(violations),
		GuardrailSuggestion: strPtr(suggestion),
	}, nil
}

// FixResponse rewrites a failed answer based on the recorded violations
// and the judge's suggestion, then resets the verdict fields so the
// guardrail re-validates the rewrite from scratch.
func (s *StageSet) FixResponse(ctx context.Context, st *State) (Patch, error) {
	prompt := fixPrompt(st.Model, st.Answer, st.GuardrailViolations, st.GuardrailSuggestion)
	answer, err := s.Gen.Generate(ctx, prompt, "")
	if err != nil {
		return Patch{}, fmt.Errorf("remediation generation failed: %w", err)
	}
	return Patch{
		Answer:              strPtr(answer),
		GuardrailRetryCount: intPtr(st.GuardrailRetryCount + 1),
		GuardrailPassed:     statusPtr(GuardrailUnknown),
		GuardrailViolations: strSlicePtr(nil),
		GuardrailSuggestion: strPtr(""),
	}, nil
}

var (
	crossModelMu       sync.Mutex
	crossModelPatterns = map[string]*regexp.Regexp{}
)

// crossModelPattern compiles and caches the isolation pattern for a
// model ID. The catalog is fixed at startup, so the cache stays tiny.
func crossModelPattern(modelId string) *regexp.Regexp {
	crossModelMu.Lock()
	defer crossModelMu.Unlock()
	if p, ok := crossModelPatterns[modelId]; ok {
		return p
	}
	p := regexp.MustCompile(`(?i)\bInBody\s+` + regexp.QuoteMeta(modelId) + `($|[^0-9A-Za-z])`)
	crossModelPatterns[modelId] = p
	return p
}

// containsBlock reports whether the notice block is already present.
func containsBlock(answer, block string) bool {
	return block != "" && strings.Contains(answer, block)
}
