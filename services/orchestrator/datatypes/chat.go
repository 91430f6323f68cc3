// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire-level request, response, and record
// types shared between the flow engine, the tools, and the HTTP handlers.
package datatypes

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ChatRequest is the body of POST /api/v1/chat and /api/v1/chat/stream.
//
// SessionId is optional: when empty a fresh session is created and its
// generated ID is returned in the response.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionId string `json:"session_id"`
}

// EnsureSessionId returns the request's session ID, generating one when
// the caller did not supply any.
func (r *ChatRequest) EnsureSessionId() string {
	if strings.TrimSpace(r.SessionId) == "" {
		r.SessionId = fmt.Sprintf("sess_%s", uuid.NewString())
	}
	return r.SessionId
}

// ChatResponse is the terminal payload of one turn.
type ChatResponse struct {
	Response           string   `json:"response"`
	SessionId          string   `json:"session_id"`
	Model              string   `json:"model,omitempty"`
	Intent             string   `json:"intent,omitempty"`
	SupportLevel       string   `json:"support_level,omitempty"`
	DisclaimerIncluded bool     `json:"disclaimer_included"`
	ImageUrls          []string `json:"image_urls,omitempty"`
	Sources            []Source `json:"sources,omitempty"`
}

// Source identifies where a retrieved manual passage came from.
type Source struct {
	File string `json:"file"`
	Page int    `json:"page,omitempty"`
}

// Stream event types emitted by the streaming chat endpoint, in order:
// zero or more stage events, zero or more token events, then exactly one
// completed event (which carries either the final fields or a generic
// error indicator).
const (
	EventStageStarted  = "stage_started"
	EventAnswerToken   = "answer_token"
	EventTurnCompleted = "turn_completed"
)

// StreamEvent is one SSE frame of the streaming chat endpoint.
type StreamEvent struct {
	Id        string `json:"id,omitempty"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"created_at,omitempty"`

	// Stage carries the stage name for stage_started events.
	Stage string `json:"stage,omitempty"`

	// Token carries one answer fragment for answer_token events.
	Token string `json:"token,omitempty"`

	// Final carries the terminal fields for turn_completed events.
	Final *ChatResponse `json:"final,omitempty"`

	// Error is a generic failure indicator, set instead of Final when
	// the turn failed internally. Never carries internal detail.
	Error string `json:"error,omitempty"`

	// Hash chain for ordering and integrity verification.
	Hash     string `json:"hash,omitempty"`
	PrevHash string `json:"prev_hash,omitempty"`
}
