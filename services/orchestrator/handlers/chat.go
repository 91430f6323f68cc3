// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers exposes the support flow over HTTP.
//
// All handlers return generic error bodies; stage errors, store errors,
// and capability failures are logged server-side and never leak into the
// response.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

var chatTracer = otel.Tracer("aleutian.orchestrator.handlers")

// HandleChat processes one turn synchronously.
//
// # Inputs
//
//   - POST body: datatypes.ChatRequest. A missing session_id starts a
//     new session.
//
// # Outputs
//
//   - 200: datatypes.ChatResponse
//   - 400: empty or malformed body
//   - 500: generic failure (details in the server log only)
func HandleChat(engine *flow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		sessionId := req.EnsureSessionId()

		st, err := engine.Run(ctx, sessionId, req.Message)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Turn processing failed", "sessionId", sessionId, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process the request"})
			return
		}
		c.JSON(http.StatusOK, engine.FinalResponse(st))
	}
}

// HandleChatStream processes one turn over SSE.
//
// # Description
//
// The client receives stage_started events as the turn moves through the
// graph, answer_token fragments of the final answer, and exactly one
// turn_completed event. A turn that fails internally still closes the
// stream with a turn_completed event carrying a generic error; transport
// write failures just end the stream.
func HandleChatStream(engine *flow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChatStream")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the streaming chat request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		sessionId := req.EnsureSessionId()

		writer, ok := NewSSEWriter(c)
		if !ok {
			slog.Error("Streaming unsupported by the underlying connection")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
			return
		}
		SetSSEHeaders(c)

		_, err := engine.RunStream(ctx, sessionId, req.Message, func(event datatypes.StreamEvent) {
			if writeErr := writer.WriteEvent(event); writeErr != nil {
				// The engine keeps running to completion so the session
				// snapshot stays consistent; only this stream is lost.
				slog.Warn("Dropping stream event, client write failed",
					"sessionId", sessionId, "error", writeErr)
			}
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Streaming turn failed", "sessionId", sessionId, "error", err)
		}
	}
}
