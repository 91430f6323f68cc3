// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/catalog"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/ingest"
)

// Deps carries everything the route table needs.
type Deps struct {
	Engine   *flow.Engine
	Catalog  *catalog.Catalog
	Sessions flow.SessionStore
	Records  flow.RecordStore

	// Ingestor may be nil when the retrieval store is not configured;
	// the manual upload route is then omitted.
	Ingestor *ingest.Ingestor
}

// SetupRoutes registers the HTTP surface on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(otelgin.Middleware("aleutian-support"))

	router.GET("/health", handlers.Health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat", handlers.HandleChat(deps.Engine))
		v1.POST("/chat/stream", handlers.HandleChatStream(deps.Engine))

		v1.GET("/models", handlers.ListModels(deps.Catalog))
		v1.GET("/errors/:model/:code", handlers.GetErrorCode(deps.Catalog, deps.Records))
		v1.GET("/peripherals/:model", handlers.GetPeripherals(deps.Catalog, deps.Records))

		if deps.Ingestor != nil {
			v1.POST("/manuals", handlers.IngestManual(deps.Catalog, deps.Ingestor))
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:sessionId/history", handlers.GetSessionHistory(deps.Sessions))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(deps.Sessions))
		}
	}
}
