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
)

// Keywords that indicate a request for a medical diagnosis, which the
// clinical agent must refuse explicitly.
var diagnosisKeywords = []string{
	"진단", "질환", "질병", "병", "증상",
	"치료", "약", "처방", "수술",
	"당뇨", "고혈압", "암", "심장", "간",
	"신장", "갑상선", "빈혈",
}

// ClinicalAgent explains measurement results and reliability without
// ever issuing a medical judgment. The medical disclaimer is appended
// here deterministically; the guardrail re-checks it downstream, so the
// notice appears exactly once even if the generator already included it.
func (s *StageSet) ClinicalAgent(ctx context.Context, st *State) (Patch, error) {
	profile, err := s.profileFor(st)
	if err != nil {
		return Patch{}, err
	}
	message := st.LastUserMessage()
	tone := toneInstruction(profile.ToneProfile)
	items := strings.Join(profile.MeasurementItems, ", ")

	passages, err := s.searchManuals(ctx, st.Model, "clinical", message)
	if err != nil {
		slog.Warn("Manual retrieval failed, continuing without passages",
			"sessionId", st.SessionId, "model", st.Model, "error", err)
		passages = nil
	}
	contextParts := []string{"[매뉴얼 검색 결과]\n" + formatPassages(st.Model, passages)}

	if containsAny(message, diagnosisKeywords) {
		contextParts = append(contextParts,
			"[의학적 진단 요청 감지]\n"+
				"사용자가 특정 질환에 대한 진단 또는 의학적 판단을 요청하고 있습니다.\n"+
				"InBody는 체성분 분석 장비이며, 의학적 진단 도구가 아닙니다.\n"+
				"진단은 절대 불가함을 명확히 안내하고, 전문 의료인 상담을 권고하세요.")
	}

	prompt := clinicalPrompt(st.Model, tone, items, strings.Join(contextParts, "\n\n"))
	answer, err := s.Gen.Generate(ctx, prompt, message)
	if err != nil {
		return Patch{}, fmt.Errorf("clinical generation failed: %w", err)
	}
	answer = ensureSuffix(answer, MedicalDisclaimer)

	return Patch{
		Answer:          strPtr(answer),
		NeedsDisclaimer: boolPtr(true),
		ImageUrls:       strSlicePtr(extractImageURLs(passages)),
		Sources:         srcSlicePtr(passageSources(passages)),
	}, nil
}
