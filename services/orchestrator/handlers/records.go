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
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// GetErrorCode looks up one error-code record for a model.
//
// # Inputs
//
//   - Path: /api/v1/errors/:model/:code, e.g. /api/v1/errors/270S/E001.
//
// # Outputs
//
//   - 200: datatypes.ErrorCode
//   - 404: unknown model or code not registered for the model
func GetErrorCode(cat *catalog.Catalog, records flow.RecordStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		model := strings.ToUpper(c.Param("model"))
		code := strings.ToUpper(c.Param("code"))

		if !cat.IsSupported(model) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown model"})
			return
		}
		rec, err := records.LookupErrorCode(c.Request.Context(), model, code)
		if err != nil {
			slog.Error("Error-code lookup failed", "model", model, "code", code, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up error code"})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "error code not registered for this model"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// GetPeripherals lists peripheral compatibility rows for a model,
// optionally filtered by ?type= and ?name=.
func GetPeripherals(cat *catalog.Catalog, records flow.RecordStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		model := strings.ToUpper(c.Param("model"))
		if !cat.IsSupported(model) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown model"})
			return
		}
		rows, err := records.CheckPeripheral(c.Request.Context(), model,
			c.Query("type"), c.Query("name"))
		if err != nil {
			slog.Error("Peripheral lookup failed", "model", model, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up peripherals"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": model, "peripherals": rows})
	}
}
