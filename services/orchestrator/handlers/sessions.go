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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// GetSessionHistory returns the turn history for one session in
// chronological order. An unknown session yields an empty list, not 404:
// the store cannot distinguish "never existed" from "expired".
func GetSessionHistory(store flow.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId := c.Param("sessionId")
		records, err := store.History(c.Request.Context(), sessionId)
		if err != nil {
			slog.Error("Failed to load session history", "sessionId", sessionId, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionId,
			"turns":      records,
		})
	}
}

// DeleteSession removes a session's snapshot and its turn history.
func DeleteSession(store flow.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId := c.Param("sessionId")
		slog.Info("Received a request to delete a session", "sessionId", sessionId)

		if err := store.Delete(c.Request.Context(), sessionId); err != nil {
			slog.Error("Failed to delete session", "sessionId", sessionId, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": sessionId})
	}
}
