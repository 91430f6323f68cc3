// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools provides the structured-data capabilities the flow
// stages depend on: semantic manual retrieval (Weaviate) and the
// error-code / peripheral-compatibility tables (SQLite).
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// ManualChunkClass is the Weaviate class holding manual passages.
const ManualChunkClass = "ManualChunk"

// ManualSearch retrieves manual passages scoped to one device model.
//
// # Description
//
// Every query carries a mandatory model filter; retrieval can never
// return another model's passages no matter how similar the text is.
// Category narrows the search to one manual section
// (installation/connectivity/troubleshooting/clinical) when set.
type ManualSearch struct {
	client *weaviate.Client
}

var _ flow.ManualSearcher = (*ManualSearch)(nil)

// NewManualSearch wraps a connected Weaviate client.
func NewManualSearch(client *weaviate.Client) *ManualSearch {
	return &ManualSearch{client: client}
}

// Search returns up to topK passages for the model, ranked by semantic
// similarity to the query.
func (m *ManualSearch) Search(ctx context.Context, model, category, query string, topK int) ([]datatypes.Passage, error) {
	if model == "" {
		return nil, fmt.Errorf("manual search requires a model")
	}
	if topK <= 0 {
		topK = 5
	}

	operands := []*filters.WhereBuilder{
		filters.Where().
			WithPath([]string{"model"}).
			WithOperator(filters.Equal).
			WithValueString(model),
	}
	if category != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.Equal).
			WithValueString(category))
	}
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)

	nearText := m.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "sourceFile"},
		{Name: "page"},
	}

	result, err := m.client.GraphQL().Get().
		WithClassName(ManualChunkClass).
		WithFields(fields...).
		WithWhere(where).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("manual search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("manual search: %s", result.Errors[0].Message)
	}

	passages := parsePassages(result.Data)
	slog.Debug("Manual search completed",
		"model", model, "category", category, "count", len(passages))
	return passages, nil
}

// parsePassages walks the GraphQL response shape
// data.Get.ManualChunk[].{text,sourceFile,page}.
func parsePassages(data map[string]models.JSONObject) []datatypes.Passage {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := get[ManualChunkClass].([]interface{})
	if !ok {
		return nil
	}
	out := make([]datatypes.Passage, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		p := datatypes.Passage{}
		if v, ok := row["text"].(string); ok {
			p.Text = v
		}
		if v, ok := row["sourceFile"].(string); ok {
			p.SourceFile = v
		}
		if v, ok := row["page"].(float64); ok {
			p.Page = int(v)
		}
		if p.Text != "" {
			out = append(out, p)
		}
	}
	return out
}
