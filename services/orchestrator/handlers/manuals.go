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
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/catalog"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/ingest"
)

// ManualUploadRequest is the body of POST /api/v1/manuals.
type ManualUploadRequest struct {
	Model    string `json:"model" binding:"required"`
	Category string `json:"category"`
	Source   string `json:"source" binding:"required"`
	Page     int    `json:"page"`
	Content  string `json:"content" binding:"required"`
}

// IngestManual chunks an extracted manual document and stores it in the
// retrieval index under the given model.
func IngestManual(cat *catalog.Catalog, ing *ingest.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ManualUploadRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse the manual upload request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		model := strings.ToUpper(req.Model)
		if !cat.IsSupported(model) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model"})
			return
		}

		stored, err := ing.Ingest(c.Request.Context(), ingest.Request{
			Model:    model,
			Category: req.Category,
			Source:   req.Source,
			Page:     req.Page,
			Content:  req.Content,
		})
		if err != nil {
			slog.Error("Manual ingestion failed",
				"model", model, "source", req.Source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest manual"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"model":         model,
			"source":        req.Source,
			"chunks_stored": stored,
		})
	}
}
