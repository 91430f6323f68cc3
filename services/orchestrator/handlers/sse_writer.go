// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// SSEWriter serializes stream events onto one SSE connection.
//
// # Description
//
// Every event is assigned an ID, a creation timestamp, and a SHA-256
// hash chained to the previous event's hash, so a client can detect
// dropped or reordered frames. Writes are serialized by an internal
// mutex; the engine callback and the keep-alive ticker may both write.
type SSEWriter interface {
	WriteEvent(event datatypes.StreamEvent) error
	WriteKeepAlive() error
}

type sseWriter struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	prevHash string
}

var _ SSEWriter = (*sseWriter)(nil)

// NewSSEWriter wraps the gin response writer for event streaming. The
// second return value is false when the connection does not support
// flushing; streaming is impossible then.
func NewSSEWriter(c *gin.Context) (SSEWriter, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: c.Writer, flusher: flusher}, true
}

// SetSSEHeaders applies the standard event-stream response headers.
func SetSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

func (s *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Id == "" {
		event.Id = uuid.NewString()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().UnixMilli()
	}
	event.PrevHash = s.prevHash
	event.Hash = computeEventHash(event)
	s.prevHash = event.Hash

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling stream event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive emits an SSE comment line that clients ignore but
// proxies count as traffic.
func (s *sseWriter) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// computeEventHash hashes the fields that define an event's identity and
// position in the stream. Final is hashed through its JSON encoding.
func computeEventHash(event datatypes.StreamEvent) string {
	finalJSON := ""
	if event.Final != nil {
		if b, err := json.Marshal(event.Final); err == nil {
			finalJSON = string(b)
		}
	}
	input := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s",
		event.Id, event.Type, event.CreatedAt, event.PrevHash,
		event.Stage, event.Token, event.Error, finalJSON)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
