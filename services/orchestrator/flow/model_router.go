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
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/catalog"
)

// Classifier labels outside the catalog ID set.
const (
	labelUnidentified = "unidentified"
	labelUnsupported  = "unsupported"
)

// ModelRouter identifies the InBody device model the session is about.
//
// # Description
//
// Resolution order:
//  1. Lexical pre-match of catalog IDs in the message. Exactly one match
//     identifies the model without a classifier call. Two or more
//     distinct matches are a comparison request: a structured answer is
//     synthesized from catalog data and the turn ends without touching
//     the session's model.
//  2. Classifier call over {catalog IDs, "unidentified", "unsupported"}.
//  3. "unsupported" produces a terminal answer listing supported models
//     and the service-center contact. "unidentified" keeps a previously
//     identified model unchanged (sticky classification) or, on a fresh
//     session, produces a terminal model-selection prompt.
//
// Classifier failure or a malformed label is treated exactly like
// "unidentified": the router fails open to a safe prompt, never to an
// arbitrary model.
func (s *StageSet) ModelRouter(ctx context.Context, st *State) (Patch, error) {
	message := st.LastUserMessage()

	matches := s.Catalog.MatchModels(message)
	switch {
	case len(matches) == 1:
		slog.Info("Model identified by lexical match",
			"sessionId", st.SessionId, "model", matches[0])
		return s.adoptModel(matches[0])
	case len(matches) >= 2:
		slog.Info("Comparison request detected",
			"sessionId", st.SessionId, "models", matches)
		return Patch{Answer: strPtr(s.comparisonAnswer(matches))}, nil
	}

	allowed := append(s.Catalog.IDs(), labelUnidentified, labelUnsupported)
	label, err := s.Classify.Classify(ctx, modelRouterPrompt, message, allowed)
	if err != nil {
		slog.Warn("Model classification failed, treating as unidentified",
			"sessionId", st.SessionId, "error", err)
		label = labelUnidentified
	}

	if s.Catalog.IsSupported(label) {
		return s.adoptModel(label)
	}

	if label == labelUnsupported {
		return Patch{Answer: strPtr(s.unsupportedAnswer())}, nil
	}

	// Sticky classification: an unidentified turn never clears an
	// established model.
	if st.Model != "" {
		slog.Debug("No model reference in message, keeping prior model",
			"sessionId", st.SessionId, "model", st.Model)
		return Patch{}, nil
	}

	return Patch{Answer: strPtr(s.selectionAnswer())}, nil
}

// adoptModel builds the patch that records an identified model together
// with its catalog-derived tier and tone profile.
func (s *StageSet) adoptModel(modelId string) (Patch, error) {
	profile, ok := s.Catalog.Get(modelId)
	if !ok {
		// Unreachable as long as callers validate against the catalog.
		return Patch{}, fmt.Errorf("model %q is not in the catalog", modelId)
	}
	return Patch{
		Model:       strPtr(profile.ModelID),
		ModelTier:   strPtr(profile.Tier),
		ToneProfile: strPtr(profile.ToneProfile),
	}, nil
}

func tierLabel(tier string) string {
	if tier == catalog.TierProfessional {
		return "전문가용"
	}
	return "보급형"
}

func installLabel(installType string) string {
	if installType == catalog.InstallSeparable {
		return "분리형"
	}
	return "접이식"
}

// comparisonAnswer summarizes each mentioned model's attributes side by
// side. Catalog data only, no generation call.
func (s *StageSet) comparisonAnswer(modelIds []string) string {
	var b strings.Builder
	b.WriteString("요청하신 기종들을 비교해 드립니다.\n")
	for _, id := range modelIds {
		p, ok := s.Catalog.Get(id)
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf(
			"\n## %s\n- 분류: %s\n- 설치 유형: %s\n- 측정 항목: %s\n- %s\n",
			p.Name,
			tierLabel(p.Tier),
			installLabel(p.InstallType),
			strings.Join(p.MeasurementItems, ", "),
			p.Description,
		))
	}
	b.WriteString("\n특정 기종에 대해 더 자세한 안내가 필요하시면 기종명을 알려 주세요.")
	return b.String()
}

func (s *StageSet) unsupportedAnswer() string {
	return fmt.Sprintf(
		"죄송합니다. 현재 해당 기종은 지원 대상이 아닙니다.\n\n"+
			"현재 지원 기종: %s\n\n"+
			"추가 도움이 필요하시면 InBody 공식 고객센터로 문의해 주세요.\n\n%s",
		strings.Join(s.Catalog.IDs(), ", "), ServiceCenterInfo)
}

func (s *StageSet) selectionAnswer() string {
	var b strings.Builder
	b.WriteString("어떤 InBody 기종에 대해 도움이 필요하신가요? " +
		"아래에서 사용 중인 기종을 선택해 주세요.\n\n")
	for _, p := range s.Catalog.Profiles() {
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", p.ModelID, p.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}
