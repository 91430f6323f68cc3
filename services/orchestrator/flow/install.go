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

// Keywords indicating the user is stuck mid-installation rather than
// asking for the guide from the start.
var installTroubleKeywords = []string{
	"안 켜", "안켜", "켜지지 않", "전원이 안",
	"안 되", "안되", "안 돼", "안돼",
	"조립이", "연결이", "끼워지지", "맞지 않",
	"빠져", "헐거", "단단하지",
	"화면이 안", "부팅이 안", "소리가",
}

// InstallAgent produces a step-by-step installation guide matched to
// the model's install type (foldable vs separable). When the message
// signals a mid-install problem, checklist guidance for the blocked
// step is injected into the prompt context.
func (s *StageSet) InstallAgent(ctx context.Context, st *State) (Patch, error) {
	profile, err := s.profileFor(st)
	if err != nil {
		return Patch{}, err
	}
	message := st.LastUserMessage()
	tone := toneInstruction(profile.ToneProfile)
	instLabel := installLabel(profile.InstallType)

	passages, err := s.searchManuals(ctx, st.Model, "installation", message)
	if err != nil {
		slog.Warn("Manual retrieval failed, continuing without passages",
			"sessionId", st.SessionId, "model", st.Model, "error", err)
		passages = nil
	}

	contextParts := []string{
		"[설치 매뉴얼 검색 결과]\n" + formatPassages(st.Model, passages),
		"[설치 유형 정보]\n" +
			fmt.Sprintf("이 기종은 %s 설치 유형입니다.\n", instLabel) +
			"- 접이식(foldable): 본체를 펼쳐서 설치하는 방식 (270S, 580)\n" +
			"- 분리형(separable): 본체와 전극부를 분리 조립하는 방식 (770S, 970S)",
	}

	if containsAny(message, installTroubleKeywords) {
		contextParts = append(contextParts,
			"[설치 중 문제 감지]\n"+
				"사용자가 설치 과정에서 특정 단계에 막혀 있습니다.\n"+
				"해당 단계에 대한 체크리스트를 제시하세요:\n"+
				"- 해당 단계의 전제 조건이 충족되었는지 확인\n"+
				"- 일반적인 실수나 누락 사항 안내\n"+
				"- 물리적 연결 상태(케이블, 커넥터, 나사 등) 점검 항목\n"+
				"- 그래도 해결되지 않을 경우 서비스 센터 연락 안내")
	}

	prompt := installPrompt(st.Model, tone, instLabel, strings.Join(contextParts, "\n\n"))
	answer, err := s.Gen.Generate(ctx, prompt, message)
	if err != nil {
		return Patch{}, fmt.Errorf("install generation failed: %w", err)
	}

	return Patch{
		Answer:    strPtr(answer),
		ImageUrls: strSlicePtr(extractImageURLs(passages)),
		Sources:   srcSlicePtr(passageSources(passages)),
	}, nil
}
