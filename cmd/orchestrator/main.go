// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator starts the device-support HTTP server.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - OPENAI_API_KEY: key for the LLM backend (or a Podman secret)
//   - ANSWER_MODEL: generation/routing model (default: gpt-4o-mini)
//   - JUDGE_MODEL: guardrail judgment model (default: the answer model)
//   - WEAVIATE_SERVICE_URL: manual retrieval store URL (optional)
//   - SESSION_DB_PATH: Badger directory for session state
//   - RECORDS_DB_PATH: SQLite file for error codes and peripherals
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector (default: aleutian-otel-collector:4317)
//
// # Usage
//
//	go build -o orchestrator ./cmd/orchestrator
//	./orchestrator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := orchestrator.Config{
		Port:          getEnvInt("ORCHESTRATOR_PORT", 12210),
		AnswerModel:   os.Getenv("ANSWER_MODEL"),
		JudgeModel:    os.Getenv("JUDGE_MODEL"),
		WeaviateURL:   os.Getenv("WEAVIATE_SERVICE_URL"),
		SessionDBPath: os.Getenv("SESSION_DB_PATH"),
		RecordsDBPath: os.Getenv("RECORDS_DB_PATH"),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		GinMode:       os.Getenv("GIN_MODE"),
	}

	slog.Info("Starting support orchestrator",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("Orchestrator error: %v", err)
	}
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
