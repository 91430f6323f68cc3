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

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// Peripheral type keyword map. First matching type wins; no match means
// the full compatibility table is consulted.
var peripheralTypeKeywords = []struct {
	Type     string
	Keywords []string
}{
	{"printer", []string{"프린터", "인쇄", "출력", "결과지"}},
	{"pc", []string{"PC", "pc", "컴퓨터", "룩인바디", "LookInBody", "Lookin'Body",
		"EMR", "HIS", "소프트웨어", "LAN", "네트워크"}},
	{"barcode_reader", []string{"바코드", "리더기", "스캐너"}},
	{"usb", []string{"USB", "usb", "메모리", "저장장치"}},
}

// Specific peripheral product names recognized in messages.
var peripheralNameKeywords = []string{
	"Lookin'Body", "LookInBody", "룩인바디",
	"EMR", "HIS", "DICOM", "HL7",
}

func extractPeripheralType(message string) string {
	for _, entry := range peripheralTypeKeywords {
		if containsAny(message, entry.Keywords) {
			return entry.Type
		}
	}
	return ""
}

func extractPeripheralName(message string) string {
	lower := strings.ToLower(message)
	for _, name := range peripheralNameKeywords {
		if strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}

// ConnectAgent answers peripheral-integration questions: it checks the
// compatibility table for the model and the mentioned peripheral, pulls
// connection procedures from the manuals, and explains incompatibilities
// with alternatives instead of a bare refusal.
func (s *StageSet) ConnectAgent(ctx context.Context, st *State) (Patch, error) {
	profile, err := s.profileFor(st)
	if err != nil {
		return Patch{}, err
	}
	message := st.LastUserMessage()
	tone := toneInstruction(profile.ToneProfile)

	pType := extractPeripheralType(message)
	pName := extractPeripheralName(message)

	var contextParts []string

	compat, compatErr := s.Records.CheckPeripheral(ctx, st.Model, pType, pName)
	if compatErr != nil {
		slog.Warn("Peripheral compatibility lookup failed, continuing without table",
			"sessionId", st.SessionId, "model", st.Model, "error", compatErr)
	} else {
		contextParts = append(contextParts,
			"[주변기기 호환표 조회 결과]\n"+formatCompat(st.Model, compat))
	}

	passages, err := s.searchManuals(ctx, st.Model, "connectivity", message)
	if err != nil {
		slog.Warn("Manual retrieval failed, continuing without passages",
			"sessionId", st.SessionId, "model", st.Model, "error", err)
		passages = nil
	}
	contextParts = append(contextParts,
		"[연동 매뉴얼 검색 결과]\n"+formatPassages(st.Model, passages))

	switch {
	case compatErr == nil && len(compat) == 0:
		contextParts = append(contextParts,
			"[비호환/미등록 주변기기 감지]\n"+
				"요청한 주변기기가 호환표에 등록되어 있지 않습니다.\n"+
				"가능하다면 해당 기종에서 지원하는 대체 주변기기를 안내하세요.\n"+
				"공식 호환 목록에 없는 제품은 정상 동작을 보장할 수 없음을 안내하세요.")
	case hasIncompatible(compat):
		contextParts = append(contextParts,
			"[비호환 주변기기 감지]\n"+
				"요청한 주변기기가 이 기종과 호환되지 않습니다.\n"+
				"비호환 사유를 명확히 설명하고, 호환되는 대안을 제시하세요.")
	}

	prompt := connectPrompt(st.Model, tone, strings.Join(contextParts, "\n\n"))
	answer, err := s.Gen.Generate(ctx, prompt, message)
	if err != nil {
		return Patch{}, fmt.Errorf("connect generation failed: %w", err)
	}

	return Patch{
		Answer:    strPtr(answer),
		ImageUrls: strSlicePtr(extractImageURLs(passages)),
		Sources:   srcSlicePtr(passageSources(passages)),
	}, nil
}

func hasIncompatible(compat []datatypes.PeripheralCompat) bool {
	for _, c := range compat {
		if !c.IsCompatible {
			return true
		}
	}
	return false
}

func formatCompat(model string, compat []datatypes.PeripheralCompat) string {
	if len(compat) == 0 {
		return fmt.Sprintf("기종 %s에 대해 조건에 맞는 호환 정보가 없습니다.", model)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "기종 %s 주변기기 호환 정보 (%d건):", model, len(compat))
	for _, c := range compat {
		status := "호환"
		if !c.IsCompatible {
			status = "비호환"
		}
		fmt.Fprintf(&b, "\n- %s (%s): %s", c.PeripheralName, c.PeripheralType, status)
		if c.IsCompatible && c.ConnectionMethod != "" {
			fmt.Fprintf(&b, "\n  연결 방식: %s", c.ConnectionMethod)
		}
		for i, step := range c.SetupSteps {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, step)
		}
	}
	return b.String()
}
