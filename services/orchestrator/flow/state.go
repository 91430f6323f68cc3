// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flow implements the support-conversation stage graph: the
// shared session state, the stage and routing registries, the turn
// engine, and the guardrail validation loop.
//
// Stages never call each other. Each stage consumes the current State
// and returns a Patch; the engine merges the patch, persists a snapshot,
// and asks the stage's routing predicate for the next stage name.
package flow

import (
	"time"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Guardrail verdict states for State.GuardrailPassed.
type GuardrailStatus string

const (
	GuardrailUnknown GuardrailStatus = ""
	GuardrailPassed  GuardrailStatus = "passed"
	GuardrailFailed  GuardrailStatus = "failed"
)

// Turn is one conversation entry. The conversation is append-only.
type Turn struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// State is the session record threaded through every stage of a turn.
//
// # Description
//
// One State exists per session. Model, ModelTier, and ToneProfile are
// sticky: once a device model has been identified it persists across
// turns until a different catalog model is positively identified.
// Answer, Intent, and all guardrail fields are per-turn and reset by
// BeginTurn.
//
// # Invariants
//
//   - Model is only ever set to a catalog model ID.
//   - ModelTier and ToneProfile are copied from the catalog when Model
//     is set, never written independently.
//   - GuardrailRetryCount never exceeds the configured maximum.
type State struct {
	SessionId    string `json:"session_id"`
	Conversation []Turn `json:"conversation"`

	Model       string `json:"model,omitempty"`
	ModelTier   string `json:"model_tier,omitempty"`
	ToneProfile string `json:"tone_profile,omitempty"`

	Intent          string `json:"intent,omitempty"`
	NeedsDisclaimer bool   `json:"needs_disclaimer"`

	Answer       string             `json:"answer,omitempty"`
	ErrorCode    string             `json:"error_code,omitempty"`
	SupportLevel string             `json:"support_level,omitempty"`
	ImageUrls    []string           `json:"image_urls,omitempty"`
	Sources      []datatypes.Source `json:"sources,omitempty"`

	GuardrailPassed     GuardrailStatus `json:"guardrail_passed,omitempty"`
	GuardrailViolations []string        `json:"guardrail_violations,omitempty"`
	GuardrailSuggestion string          `json:"guardrail_suggestion,omitempty"`
	GuardrailRetryCount int             `json:"guardrail_retry_count"`
}

// NewState creates an empty session state.
func NewState(sessionId string) *State {
	return &State{SessionId: sessionId}
}

// LastUserMessage returns the text of the most recent user turn, or the
// empty string when there is none.
func (s *State) LastUserMessage() string {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		if s.Conversation[i].Role == RoleUser {
			return s.Conversation[i].Text
		}
	}
	return ""
}

// BeginTurn appends the inbound user message and resets all per-turn
// fields. Model, tier, and tone survive; intent is recomputed every turn.
//
// The append is idempotent: when the last conversation entry is already
// this exact user message (a turn re-run from a persisted snapshot after
// a crash), no duplicate entry is added.
func (s *State) BeginTurn(text string, now time.Time) {
	n := len(s.Conversation)
	if n == 0 || s.Conversation[n-1].Role != RoleUser || s.Conversation[n-1].Text != text {
		s.Conversation = append(s.Conversation, Turn{
			Role:      RoleUser,
			Text:      text,
			CreatedAt: now.UnixMilli(),
		})
	}

	s.Intent = ""
	s.NeedsDisclaimer = false
	s.Answer = ""
	s.ErrorCode = ""
	s.SupportLevel = ""
	s.ImageUrls = nil
	s.Sources = nil
	s.GuardrailPassed = GuardrailUnknown
	s.GuardrailViolations = nil
	s.GuardrailSuggestion = ""
	s.GuardrailRetryCount = 0
}

// CompleteTurn appends the assistant answer to the conversation.
func (s *State) CompleteTurn(now time.Time) {
	if s.Answer == "" {
		return
	}
	s.Conversation = append(s.Conversation, Turn{
		Role:      RoleAssistant,
		Text:      s.Answer,
		CreatedAt: now.UnixMilli(),
	})
}

// Patch is a partial update returned by a stage.
//
// # Description
//
// Nil fields leave the corresponding State field untouched; set fields
// replace it. Slice fields use a pointer so a stage can distinguish
// "don't touch" (nil) from "clear" (pointer to empty slice). Patches are
// the only way stages mutate state; a stage never writes to *State
// directly, which keeps merge-after-return the single mutation point.
type Patch struct {
	Model       *string
	ModelTier   *string
	ToneProfile *string

	Intent          *string
	NeedsDisclaimer *bool

	Answer       *string
	ErrorCode    *string
	SupportLevel *string
	ImageUrls    *[]string
	Sources      *[]datatypes.Source

	GuardrailPassed     *GuardrailStatus
	GuardrailViolations *[]string
	GuardrailSuggestion *string
	GuardrailRetryCount *int
}

// Apply merges the patch into the state, field by field.
func (p Patch) Apply(s *State) {
	if p.Model != nil {
		s.Model = *p.Model
	}
	if p.ModelTier != nil {
		s.ModelTier = *p.ModelTier
	}
	if p.ToneProfile != nil {
		s.ToneProfile = *p.ToneProfile
	}
	if p.Intent != nil {
		s.Intent = *p.Intent
	}
	if p.NeedsDisclaimer != nil {
		s.NeedsDisclaimer = *p.NeedsDisclaimer
	}
	if p.Answer != nil {
		s.Answer = *p.Answer
	}
	if p.ErrorCode != nil {
		s.ErrorCode = *p.ErrorCode
	}
	if p.SupportLevel != nil {
		s.SupportLevel = *p.SupportLevel
	}
	if p.ImageUrls != nil {
		s.ImageUrls = *p.ImageUrls
	}
	if p.Sources != nil {
		s.Sources = *p.Sources
	}
	if p.GuardrailPassed != nil {
		s.GuardrailPassed = *p.GuardrailPassed
	}
	if p.GuardrailViolations != nil {
		s.GuardrailViolations = *p.GuardrailViolations
	}
	if p.GuardrailSuggestion != nil {
		s.GuardrailSuggestion = *p.GuardrailSuggestion
	}
	if p.GuardrailRetryCount != nil {
		s.GuardrailRetryCount = *p.GuardrailRetryCount
	}
}

// Small helpers for building patches without one-off variables.

func strPtr(s string) *string                              { return &s }
func boolPtr(b bool) *bool                                 { return &b }
func intPtr(i int) *int                                    { return &i }
func statusPtr(g GuardrailStatus) *GuardrailStatus         { return &g }
func strSlicePtr(v []string) *[]string                     { return &v }
func srcSlicePtr(v []datatypes.Source) *[]datatypes.Source { return &v }
