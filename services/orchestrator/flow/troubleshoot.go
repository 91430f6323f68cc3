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
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// Escalation keywords: the user reports that a previously suggested fix
// did not work.
var escalationKeywords = []string{
	"안 돼", "안돼", "해결되지 않", "해결 안", "해결안",
	"여전히", "안됐", "안되", "또 나", "다시 나",
	"계속", "같은 문제", "동일한 문제",
}

var (
	// E001-style codes, case-insensitive.
	errorCodeDirect = regexp.MustCompile(`[Ee](\d{3})`)
	// "에러 코드 001" / "오류 001" style references.
	errorCodeWorded = regexp.MustCompile(`(?:에러|오류)\s*(?:코드)?\s*(\d{3})`)
)

// extractErrorCode pulls a canonical E-code out of the message, or
// returns the empty string when none is present.
func extractErrorCode(message string) string {
	if m := errorCodeDirect.FindStringSubmatch(message); m != nil {
		return "E" + m[1]
	}
	if m := errorCodeWorded.FindStringSubmatch(message); m != nil {
		return "E" + m[1]
	}
	return ""
}

// TroubleshootAgent analyzes error reports and produces step-by-step
// resolutions, strictly separating user-resolvable (level 1) issues
// from service-center (level 3) issues.
//
// # Description
//
// Flow: extract an error code from the message; when present, look it
// up in the error-code table, otherwise fall back to symptom search
// plus manual retrieval. Escalation keywords ("still broken") inject
// next-step guidance into the prompt. Level-3 outcomes get the hardware
// disclaimer and service-center contact appended deterministically;
// level-1 outcomes reported as unresolved get service-center guidance.
func (s *StageSet) TroubleshootAgent(ctx context.Context, st *State) (Patch, error) {
	profile, err := s.profileFor(st)
	if err != nil {
		return Patch{}, err
	}
	message := st.LastUserMessage()
	tone := toneInstruction(profile.ToneProfile)

	code := extractErrorCode(message)
	isEscalation := containsAny(message, escalationKeywords)

	var contextParts []string
	var passages []datatypes.Passage
	supportLevel := ""

	if code != "" {
		rec, err := s.Records.LookupErrorCode(ctx, st.Model, code)
		switch {
		case err != nil:
			slog.Warn("Error-code lookup failed, continuing without record",
				"sessionId", st.SessionId, "model", st.Model, "code", code, "error", err)
			contextParts = append(contextParts,
				fmt.Sprintf("[에러 코드 조회 결과]\n에러 코드 %s 조회에 실패했습니다.", code))
		case rec == nil:
			contextParts = append(contextParts, fmt.Sprintf(
				"[에러 코드 조회 결과]\n기종 %s에서 에러 코드 '%s'을(를) 찾을 수 없습니다.",
				st.Model, code))
		default:
			supportLevel = rec.SupportLevel
			contextParts = append(contextParts,
				"[에러 코드 조회 결과]\n"+formatErrorCode(rec))
		}
	} else {
		codes, matched, err := s.Records.SearchErrorsBySymptom(ctx, st.Model, message)
		if err != nil {
			slog.Warn("Symptom search failed, continuing without records",
				"sessionId", st.SessionId, "model", st.Model, "error", err)
		} else {
			contextParts = append(contextParts,
				"[증상 기반 에러 검색 결과]\n"+formatErrorList(st.Model, message, codes, matched))
		}

		passages, err = s.searchManuals(ctx, st.Model, "troubleshooting", message)
		if err != nil {
			slog.Warn("Manual retrieval failed, continuing without passages",
				"sessionId", st.SessionId, "model", st.Model, "error", err)
		} else {
			contextParts = append(contextParts,
				"[매뉴얼 검색 결과]\n"+formatPassages(st.Model, passages))
		}
	}

	if isEscalation {
		contextParts = append(contextParts,
			"[에스컬레이션 감지]\n"+
				"사용자가 이전 해결 방법으로 문제가 해결되지 않았다고 보고했습니다.\n"+
				"다음 단계의 해결책을 제시하거나, 더 이상 사용자 해결이 불가능하면 "+
				"서비스 센터(Level 3) 이관을 안내하세요.")
	}

	prompt := troubleshootPrompt(st.Model, tone, strings.Join(contextParts, "\n\n"))
	answer, err := s.Gen.Generate(ctx, prompt, message)
	if err != nil {
		return Patch{}, fmt.Errorf("troubleshoot generation failed: %w", err)
	}

	if supportLevel == datatypes.SupportLevel3 {
		answer = ensureSuffix(answer, HardwareDisclaimer)
		answer = ensureSuffix(answer, ServiceCenterInfo)
	}
	if isEscalation && supportLevel == datatypes.SupportLevel1 {
		answer = ensureSuffix(answer,
			"위 방법으로도 해결되지 않으시면 InBody 서비스 센터로 문의해 주세요.\n\n"+ServiceCenterInfo)
	}

	return Patch{
		Answer:       strPtr(answer),
		ErrorCode:    strPtr(code),
		SupportLevel: strPtr(supportLevel),
		Sources:      srcSlicePtr(passageSources(passages)),
	}, nil
}

func formatErrorCode(rec *datatypes.ErrorCode) string {
	levelText := "서비스 센터 이관 필요 (Level 3)"
	if rec.SupportLevel == datatypes.SupportLevel1 {
		levelText = "사용자 해결 가능 (Level 1)"
	}
	var steps strings.Builder
	for i, step := range rec.ResolutionSteps {
		fmt.Fprintf(&steps, "  %d. %s\n", i+1, step)
	}
	out := fmt.Sprintf("에러 코드: %s\n제목: %s\n원인: %s\n지원 수준: %s\n해결 단계:\n%s",
		rec.Code, rec.Title, rec.Cause, levelText, steps.String())
	if rec.EscalationNote != "" {
		out += "참고: " + rec.EscalationNote
	}
	return strings.TrimRight(out, "\n")
}

func formatErrorList(model, symptom string, codes []datatypes.ErrorCode, matched bool) string {
	if len(codes) == 0 {
		return fmt.Sprintf("기종 %s에 등록된 에러 코드가 없습니다.", model)
	}
	header := fmt.Sprintf("기종 %s에서 '%s' 관련 에러 코드:", model, symptom)
	if !matched {
		header = fmt.Sprintf("기종 %s의 전체 에러 코드 목록 (증상 '%s'과 정확히 일치하는 항목 없음):",
			model, symptom)
	}
	var b strings.Builder
	b.WriteString(header)
	for _, c := range codes {
		level := "L3"
		if c.SupportLevel == datatypes.SupportLevel1 {
			level = "L1"
		}
		fmt.Fprintf(&b, "\n  - [%s] %s: %s — %s", level, c.Code, c.Title, c.Cause)
	}
	return b.String()
}
