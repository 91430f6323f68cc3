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

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// =============================================================================
// External Capability Contracts
// =============================================================================
//
// The engine and stages only see these narrow interfaces. Concrete
// implementations live in services/llm (generation, classification,
// judgment), services/orchestrator/tools (retrieval, record lookup),
// and services/orchestrator/session (persistence); fakes are injected
// in tests. None of these are allowed to crash a turn: stage code maps
// their failures to the fail-open / fail-safe rules.

// Generator produces free-form text from a system prompt and the user
// message. No determinism is guaranteed; calls may fail or time out.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Classifier returns one label out of the allowed set for the given
// text. A malformed response must surface as an error, never as an
// unexpected label.
type Classifier interface {
	Classify(ctx context.Context, systemPrompt, text string, allowed []string) (string, error)
}

// Verdict is the structured result of the guardrail judgment call.
type Verdict struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations"`
	Suggestion string   `json:"suggestion"`
}

// Judge asks the judgment capability whether an answer is safe to
// release for the given model and intent. Parse failure is a first-class
// outcome reported through the error; the guardrail treats it as a pass
// (fail-open).
type Judge interface {
	Judge(ctx context.Context, model, intent, answer string) (Verdict, error)
}

// ManualSearcher retrieves ranked manual passages. The model filter is
// mandatory and always applied; retrieval never crosses device models.
// Category may be empty for an unfiltered search.
type ManualSearcher interface {
	Search(ctx context.Context, model, category, query string, topK int) ([]datatypes.Passage, error)
}

// RecordStore is the structured lookup capability backed by the
// error-code and peripheral-compatibility tables.
type RecordStore interface {
	// LookupErrorCode returns the record for (model, code), or
	// (nil, nil) when no such code is registered for the model.
	LookupErrorCode(ctx context.Context, model, code string) (*datatypes.ErrorCode, error)

	// SearchErrorsBySymptom returns the error codes for the model whose
	// title, cause, or description mentions the symptom text. When
	// nothing matches it returns the model's full code list so the
	// generation prompt still has grounding data.
	SearchErrorsBySymptom(ctx context.Context, model, symptom string) ([]datatypes.ErrorCode, bool, error)

	// CheckPeripheral returns compatibility rows for the model,
	// optionally narrowed by peripheral type and name.
	CheckPeripheral(ctx context.Context, model, peripheralType, peripheralName string) ([]datatypes.PeripheralCompat, error)
}

// SessionStore persists session snapshots and turn history.
//
// Snapshots are written after every stage transition so a session can be
// inspected or resumed mid-flow. Access is read-modify-write per session
// ID; the engine serializes turns for the same session in-process, and
// across processes the store is last-write-wins.
type SessionStore interface {
	// Get loads the latest snapshot, returning (nil, nil) when the
	// session does not exist.
	Get(ctx context.Context, sessionId string) (*State, error)
	Put(ctx context.Context, sessionId string, state *State) error
	Delete(ctx context.Context, sessionId string) error

	AppendHistory(ctx context.Context, rec datatypes.TurnRecord) error
	History(ctx context.Context, sessionId string) ([]datatypes.TurnRecord, error)
}

// SafetyScanner runs the deterministic answer-safety rules (unsafe
// self-repair phrases and friends) maintained by the policy engine.
type SafetyScanner interface {
	// ScanAnswer returns descriptions of every fatal rule the answer
	// violates in the given support-level context.
	ScanAnswer(answer, supportLevel string) []string
}
