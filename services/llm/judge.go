// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// SafetyJudge adapts an LLMClient to the flow.Judge contract. It is
// normally backed by the mini model: the judgment call runs on every
// turn, and the deterministic guardrail checks already cover the
// violation classes with a known shape.
type SafetyJudge struct {
	client LLMClient
}

var _ flow.Judge = (*SafetyJudge)(nil)

// NewSafetyJudge wraps the client used for guardrail judgment.
func NewSafetyJudge(client LLMClient) *SafetyJudge {
	return &SafetyJudge{client: client}
}

// Judge asks whether the answer is safe to release. A response that
// cannot be parsed surfaces as an error; the guardrail fails open on it.
func (j *SafetyJudge) Judge(ctx context.Context, model, intent, answer string) (flow.Verdict, error) {
	raw, err := j.client.Complete(ctx, flow.JudgePrompt(model, intent, answer), "", GenerationParams{
		Temperature: floatPtr(0),
	})
	if err != nil {
		return flow.Verdict{}, fmt.Errorf("judgment call failed: %w", err)
	}
	return ParseVerdict(raw)
}

// ParseVerdict decodes the judgment JSON, tolerating code fences.
func ParseVerdict(raw string) (flow.Verdict, error) {
	var v flow.Verdict
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &v); err != nil {
		return flow.Verdict{}, fmt.Errorf("parsing verdict %q: %w", raw, err)
	}
	return v, nil
}
