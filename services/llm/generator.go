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

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// Generator adapts an LLMClient to the flow.Generator contract with a
// fixed low temperature: support answers should be steady, not creative.
type Generator struct {
	client LLMClient
}

var _ flow.Generator = (*Generator)(nil)

// NewGenerator wraps the client used by the agent stages.
func NewGenerator(client LLMClient) *Generator {
	return &Generator{client: client}
}

// Generate produces the answer text for a system prompt and user message.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return g.client.Complete(ctx, systemPrompt, userMessage, GenerationParams{
		Temperature: floatPtr(0.3),
	})
}
