// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/catalog"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// Stage names registered in the engine. Routing predicates return these
// (or StageEnd) to drive the graph.
const (
	StageModelRouter  = "model_router"
	StageIntentRouter = "intent_router"
	StageTroubleshoot = "troubleshoot_agent"
	StageInstall      = "install_agent"
	StageConnect      = "connect_agent"
	StageClinical     = "clinical_agent"
	StageGeneral      = "general_agent"
	StageGuardrail    = "guardrail"
	StageFixResponse  = "fix_response"

	// StageEnd is the terminal sentinel returned by routing predicates.
	StageEnd = "__end__"
)

// StageSet bundles the capabilities the stages depend on. One StageSet
// is constructed at startup and shared by all sessions; it holds no
// per-turn state.
type StageSet struct {
	Catalog  *catalog.Catalog
	Gen      Generator
	Classify Classifier
	Judgment Judge
	Manuals  ManualSearcher
	Records  RecordStore
	Safety   SafetyScanner

	// MaxGuardrailRetries bounds the validate→remediate cycle.
	MaxGuardrailRetries int

	// TopK is the passage count requested from retrieval.
	TopK int
}

// manualTopK returns the configured retrieval depth, defaulting to 5.
func (s *StageSet) manualTopK() int {
	if s.TopK > 0 {
		return s.TopK
	}
	return 5
}

// searchManuals retrieves passages for the session's model. A nil
// ManualSearcher (retrieval store not configured) yields no passages
// instead of an error; agents then answer from records and model
// knowledge alone.
func (s *StageSet) searchManuals(ctx context.Context, model, category, query string) ([]datatypes.Passage, error) {
	if s.Manuals == nil {
		return nil, nil
	}
	return s.Manuals.Search(ctx, model, category, query, s.manualTopK())
}

// profileFor resolves the session's catalog profile. Specialization
// stages only run once a model is identified, so a missing profile is a
// wiring bug, not a user error.
func (s *StageSet) profileFor(st *State) (catalog.Profile, error) {
	p, ok := s.Catalog.Get(st.Model)
	if !ok {
		return catalog.Profile{}, fmt.Errorf("session %s reached a specialization stage without a catalog model (model=%q)",
			st.SessionId, st.Model)
	}
	return p, nil
}

// formatPassages renders retrieved manual passages into a prompt block.
func formatPassages(model string, passages []datatypes.Passage) string {
	if len(passages) == 0 {
		return fmt.Sprintf("기종 %s 매뉴얼에서 관련 정보를 찾지 못했습니다.", model)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "기종 %s 매뉴얼 검색 결과 (%d건):", model, len(passages))
	for i, p := range passages {
		fmt.Fprintf(&b, "\n--- 결과 %d (출처: %s, 페이지: %d) ---\n%s",
			i+1, p.SourceFile, p.Page, p.Text)
	}
	return b.String()
}

// passageSources collects the distinct source references of passages.
func passageSources(passages []datatypes.Passage) []datatypes.Source {
	var out []datatypes.Source
	seen := make(map[string]bool)
	for _, p := range passages {
		key := fmt.Sprintf("%s#%d", p.SourceFile, p.Page)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, datatypes.Source{File: p.SourceFile, Page: p.Page})
	}
	return out
}

var imageURLPattern = regexp.MustCompile(`https?://\S+\.(?:png|jpe?g|gif|webp)`)

// extractImageURLs pulls image links out of retrieved passage text so
// the UI can show installation diagrams next to the answer.
func extractImageURLs(passages []datatypes.Passage) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range passages {
		for _, u := range imageURLPattern.FindAllString(p.Text, -1) {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}

// containsAny reports whether the message contains any of the keywords.
func containsAny(message string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(message, k) {
			return true
		}
	}
	return false
}

// ensureSuffix appends block to answer unless it is already present.
// Used for mandatory notices, which must appear exactly once no matter
// how many remediation cycles the answer went through.
func ensureSuffix(answer, block string) string {
	if strings.Contains(answer, block) {
		return answer
	}
	return answer + "\n\n" + block
}
