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
	"strings"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// UnexpectedLabelError reports a classification response whose label is
// outside the allowed set. Callers treat it like any classifier failure
// and fall back to their safe default.
type UnexpectedLabelError struct {
	Label   string
	Allowed []string
}

func (e *UnexpectedLabelError) Error() string {
	return fmt.Sprintf("classifier returned label %q, allowed: %s",
		e.Label, strings.Join(e.Allowed, ", "))
}

// LabelClassifier adapts an LLMClient to the flow.Classifier contract.
//
// # Description
//
// The model is asked for a strict JSON object {"label": "..."} at
// temperature zero. Any parse failure or out-of-set label surfaces as an
// error rather than a guessed label, so routing decisions never run on
// malformed output.
type LabelClassifier struct {
	client LLMClient
}

var _ flow.Classifier = (*LabelClassifier)(nil)

// NewLabelClassifier wraps the client used for routing decisions.
func NewLabelClassifier(client LLMClient) *LabelClassifier {
	return &LabelClassifier{client: client}
}

// Classify returns one of the allowed labels for the given text.
func (c *LabelClassifier) Classify(ctx context.Context, systemPrompt, text string, allowed []string) (string, error) {
	prompt := fmt.Sprintf(
		"%s\n\n허용된 라벨: %s\n\n"+
			`JSON으로만 답하세요: {"label": "<허용된 라벨 중 하나>"}`,
		systemPrompt, strings.Join(allowed, ", "))

	raw, err := c.client.Complete(ctx, prompt, text, GenerationParams{
		Temperature: floatPtr(0),
	})
	if err != nil {
		return "", fmt.Errorf("classification call failed: %w", err)
	}

	var parsed struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return "", fmt.Errorf("parsing classification response %q: %w", raw, err)
	}

	label := strings.TrimSpace(parsed.Label)
	for _, a := range allowed {
		if label == a {
			return label, nil
		}
	}
	return "", &UnexpectedLabelError{Label: label, Allowed: allowed}
}

// stripCodeFences unwraps ```json ... ``` blocks that chat models like
// to emit around structured output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
