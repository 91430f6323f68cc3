// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest loads device-manual text into the retrieval store.
//
// Manuals arrive as plain text (PDF extraction happens upstream), get
// split into overlapping chunks, and land as ManualChunk objects in
// Weaviate with model/category/source/page metadata. Vectorization is
// delegated to the Weaviate-side vectorizer module.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/tools"
)

var (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10

	manualSeparators = []string{
		"\n# ", "\n## ", "\n### ",
		"\n\n", "\n", " ", "",
	}
)

// Manual categories recognized in chunk metadata.
const (
	CategoryInstallation    = "installation"
	CategoryConnectivity    = "connectivity"
	CategoryTroubleshooting = "troubleshooting"
	CategoryClinical        = "clinical"
	CategoryGeneral         = "general"
)

// categoryHints maps filename keywords to categories, used when the
// caller didn't classify the document.
var categoryHints = []struct {
	Category string
	Keywords []string
}{
	{CategoryInstallation, []string{"install", "설치", "setup", "assembly", "조립"}},
	{CategoryConnectivity, []string{"connect", "연동", "peripheral", "printer", "network"}},
	{CategoryTroubleshooting, []string{"trouble", "error", "에러", "오류", "진단"}},
	{CategoryClinical, []string{"clinical", "측정", "result", "해석", "interpretation"}},
}

// InferCategory guesses the manual category from a source filename.
// Unrecognized names fall back to "general".
func InferCategory(source string) string {
	lower := strings.ToLower(source)
	for _, hint := range categoryHints {
		for _, kw := range hint.Keywords {
			if strings.Contains(lower, kw) {
				return hint.Category
			}
		}
	}
	return CategoryGeneral
}

// Request describes one manual document to ingest.
type Request struct {
	// Model is the catalog model this manual belongs to. Required.
	Model string

	// Category is the manual section; inferred from Source when empty.
	Category string

	// Source is the originating filename, kept for answer citations.
	Source string

	// Page is the page of the source document this text came from.
	Page int

	// Content is the extracted plain text.
	Content string
}

// Ingestor writes manual chunks into the retrieval store.
type Ingestor struct {
	client *weaviate.Client
}

// New wraps a connected Weaviate client.
func New(client *weaviate.Client) *Ingestor {
	return &Ingestor{client: client}
}

// EnsureSchema creates the ManualChunk class when it doesn't exist yet.
func (ing *Ingestor) EnsureSchema(ctx context.Context) error {
	exists, err := ing.client.Schema().ClassExistenceChecker().
		WithClassName(tools.ManualChunkClass).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking %s class: %w", tools.ManualChunkClass, err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:       tools.ManualChunkClass,
		Description: "One chunk of a device manual, scoped to a single model",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "model", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "category", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "sourceFile", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "page", DataType: []string{"int"}},
			{Name: "ingestedAt", DataType: []string{"int"}},
		},
	}
	if err := ing.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("creating %s class: %w", tools.ManualChunkClass, err)
	}
	slog.Info("Created retrieval schema", "class", tools.ManualChunkClass)
	return nil
}

// Ingest splits the document and batch-imports the chunks. Returns the
// number of chunks stored.
func (ing *Ingestor) Ingest(ctx context.Context, req Request) (int, error) {
	if req.Model == "" {
		return 0, fmt.Errorf("ingestion requires a model")
	}
	category := req.Category
	if category == "" {
		category = InferCategory(req.Source)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(manualSeparators),
	)
	chunks, err := splitter.SplitText(req.Content)
	if err != nil {
		return 0, fmt.Errorf("splitting %s: %w", req.Source, err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "source", req.Source)
		return 0, nil
	}
	slog.Info("Split manual into chunks",
		"source", req.Source, "model", req.Model, "category", category,
		"chunkCount", len(chunks))

	objects := make([]*models.Object, len(chunks))
	now := time.Now().UnixMilli()
	for i, chunk := range chunks {
		// Content-addressed IDs make re-ingestion idempotent.
		hash := sha256.Sum256([]byte(req.Model + "|" + chunk))
		chunkUUID, _ := uuid.FromBytes(hash[:16])

		objects[i] = &models.Object{
			Class: tools.ManualChunkClass,
			ID:    strfmt.UUID(chunkUUID.String()),
			Properties: map[string]interface{}{
				"text":       chunk,
				"model":      req.Model,
				"category":   category,
				"sourceFile": req.Source,
				"page":       req.Page,
				"ingestedAt": now,
			},
		}
	}

	resp, err := ing.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch import to Weaviate: %w", err)
	}

	stored := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			stored++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Weaviate batch item failed",
					"source", req.Source, "error", errItem.Message)
			}
		}
	}
	slog.Info("Ingested manual", "source", req.Source, "chunksStored", stored)
	return stored, nil
}
