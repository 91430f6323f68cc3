// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

func TestExtractErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message string
		want    string
	}{
		{"E001 에러가 떴어요", "E001"},
		{"화면에 e042가 보여요", "E042"},
		{"에러 코드 015가 나왔습니다", "E015"},
		{"오류 230이 반복돼요", "E230"},
		{"측정이 그냥 안 돼요", ""},
		{"E42는 너무 짧아요", ""},
	}
	for _, tt := range tests {
		if got := extractErrorCode(tt.message); got != tt.want {
			t.Errorf("extractErrorCode(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestTroubleshootAgent_KnownCodeDrivesSupportLevel(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	gen := &fakeGenerator{answer: "전극을 닦아 주세요."}
	set.Gen = gen
	set.Records = &fakeRecords{byCode: map[string]*datatypes.ErrorCode{
		"E010": {
			Code: "E010", ModelId: "270S", Title: "메인보드 통신 오류",
			Cause: "내부 통신 이상", SupportLevel: datatypes.SupportLevel3,
			ResolutionSteps: []string{"전원을 끄고 서비스 센터에 문의"},
		},
	}}

	st := stateWithModel(t, set.Catalog, "270S", "E010 에러가 계속 떠요")
	patch, err := set.TroubleshootAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("TroubleshootAgent: %v", err)
	}
	patch.Apply(st)

	if st.ErrorCode != "E010" {
		t.Errorf("ErrorCode = %q, want E010", st.ErrorCode)
	}
	if st.SupportLevel != datatypes.SupportLevel3 {
		t.Errorf("SupportLevel = %q, want level_3", st.SupportLevel)
	}
	// Level-3 escalation text is appended deterministically.
	if !strings.Contains(st.Answer, HardwareDisclaimer) ||
		!strings.Contains(st.Answer, ServiceCenterInfo) {
		t.Errorf("level-3 answer missing mandatory blocks: %q", st.Answer)
	}
	if !strings.Contains(gen.lastPrompt, "메인보드 통신 오류") {
		t.Errorf("prompt missing the looked-up record")
	}
}

func TestTroubleshootAgent_UnknownCodeStillAnswers(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	gen := &fakeGenerator{answer: "확인해 보겠습니다."}
	set.Gen = gen
	set.Records = &fakeRecords{}

	st := stateWithModel(t, set.Catalog, "270S", "E999 에러가 떠요")
	patch, err := set.TroubleshootAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("TroubleshootAgent: %v", err)
	}
	patch.Apply(st)

	if st.SupportLevel != "" {
		t.Errorf("unknown code must not assign a support level, got %q", st.SupportLevel)
	}
	if !strings.Contains(gen.lastPrompt, "E999") {
		t.Errorf("prompt missing the not-found note")
	}
}

func TestTroubleshootAgent_SymptomPathUsesManuals(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	manuals := &fakeManuals{passages: []datatypes.Passage{
		{Text: "전원부 점검 절차", SourceFile: "270s_trouble.pdf", Page: 12},
	}}
	set.Manuals = manuals
	set.Records = &fakeRecords{
		symptomHits: []datatypes.ErrorCode{{Code: "E001", Title: "전극 접촉 불량",
			SupportLevel: datatypes.SupportLevel1}},
		matched: true,
	}

	st := stateWithModel(t, set.Catalog, "270S", "측정 중에 자꾸 멈춰요")
	patch, err := set.TroubleshootAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("TroubleshootAgent: %v", err)
	}
	patch.Apply(st)

	if manuals.lastCategory != "troubleshooting" {
		t.Errorf("search category = %q, want troubleshooting", manuals.lastCategory)
	}
	if len(st.Sources) != 1 || st.Sources[0].File != "270s_trouble.pdf" {
		t.Errorf("Sources = %+v, want the retrieved passage source", st.Sources)
	}
}

func TestTroubleshootAgent_EscalationAppendsServiceCenter(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Records = &fakeRecords{byCode: map[string]*datatypes.ErrorCode{
		"E001": {Code: "E001", SupportLevel: datatypes.SupportLevel1,
			Title: "전극 접촉 불량", Cause: "건조한 피부"},
	}}

	st := stateWithModel(t, set.Catalog, "270S", "E001 해결 방법대로 했는데 여전히 안 돼요")
	patch, err := set.TroubleshootAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("TroubleshootAgent: %v", err)
	}
	patch.Apply(st)

	if !strings.Contains(st.Answer, ServiceCenterInfo) {
		t.Errorf("unresolved level-1 escalation should point at the service center")
	}
}

func TestInstallAgent_InjectsInstallTypeAndTroubleChecklist(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	gen := &fakeGenerator{answer: "설치 안내입니다."}
	set.Gen = gen

	st := stateWithModel(t, set.Catalog, "970S", "조립이 안 돼요. 전극부가 맞지 않아요")
	patch, err := set.InstallAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("InstallAgent: %v", err)
	}
	patch.Apply(st)

	// 970S is a separable model.
	if !strings.Contains(gen.lastPrompt, "분리형") {
		t.Errorf("prompt missing install type")
	}
	if !strings.Contains(gen.lastPrompt, "설치 중 문제 감지") {
		t.Errorf("prompt missing the trouble checklist block")
	}
}

func TestExtractPeripheral(t *testing.T) {
	t.Parallel()

	if got := extractPeripheralType("결과지 출력이 안 돼요"); got != "printer" {
		t.Errorf("type = %q, want printer", got)
	}
	if got := extractPeripheralType("룩인바디 연동 방법"); got != "pc" {
		t.Errorf("type = %q, want pc", got)
	}
	if got := extractPeripheralType("그냥 질문이에요"); got != "" {
		t.Errorf("type = %q, want empty", got)
	}
	if got := extractPeripheralName("EMR 시스템과 연결하고 싶어요"); got != "EMR" {
		t.Errorf("name = %q, want EMR", got)
	}
}

func TestConnectAgent_IncompatiblePeripheralGetsAlternativeGuidance(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	gen := &fakeGenerator{answer: "연동 안내입니다."}
	set.Gen = gen
	set.Records = &fakeRecords{peripherals: []datatypes.PeripheralCompat{
		{ModelId: "270S", PeripheralType: "barcode_reader",
			PeripheralName: "일반 바코드 리더", IsCompatible: false},
	}}

	st := stateWithModel(t, set.Catalog, "270S", "바코드 리더기를 연결하고 싶어요")
	patch, err := set.ConnectAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("ConnectAgent: %v", err)
	}
	patch.Apply(st)

	if !strings.Contains(gen.lastPrompt, "비호환 주변기기 감지") {
		t.Errorf("prompt missing the incompatibility block")
	}
}

func TestConnectAgent_UnregisteredPeripheralFlagged(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	gen := &fakeGenerator{answer: "연동 안내입니다."}
	set.Gen = gen
	set.Records = &fakeRecords{} // empty table

	st := stateWithModel(t, set.Catalog, "580", "DICOM 장비와 연결되나요?")
	patch, err := set.ConnectAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("ConnectAgent: %v", err)
	}
	patch.Apply(st)

	if !strings.Contains(gen.lastPrompt, "미등록 주변기기") {
		t.Errorf("prompt missing the unregistered block")
	}
}

func TestClinicalAgent_AlwaysEndsWithDisclaimer(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Gen = &fakeGenerator{answer: "골격근량은 근육의 총량을 뜻합니다."}

	st := stateWithModel(t, set.Catalog, "970S", "골격근량 수치가 무슨 뜻인가요")
	st.Intent = IntentClinical
	st.NeedsDisclaimer = true

	patch, err := set.ClinicalAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("ClinicalAgent: %v", err)
	}
	patch.Apply(st)

	if !strings.HasSuffix(strings.TrimSpace(st.Answer), strings.TrimSpace(MedicalDisclaimer)) {
		t.Errorf("clinical answer must end with the medical disclaimer: %q", st.Answer)
	}
	if !st.NeedsDisclaimer {
		t.Errorf("NeedsDisclaimer must stay set for the guardrail")
	}
}

func TestGeneralAgent_AnswersFromCatalogOnly(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	gen := &fakeGenerator{answer: "호출되면 안 됩니다"}
	set.Gen = gen

	st := stateWithModel(t, set.Catalog, "270S", "안녕하세요")
	st.Intent = IntentGeneral

	patch, err := set.GeneralAgent(context.Background(), st)
	if err != nil {
		t.Fatalf("GeneralAgent: %v", err)
	}
	patch.Apply(st)

	if gen.calls != 0 {
		t.Errorf("general agent must not call generation")
	}
	if !strings.Contains(st.Answer, "270S") {
		t.Errorf("answer missing the session model: %q", st.Answer)
	}
}

func TestAgents_MissingModelIsAnError(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)

	st := NewState("sess_1")
	st.Conversation = []Turn{{Role: RoleUser, Text: "질문"}}

	if _, err := set.TroubleshootAgent(context.Background(), st); err == nil {
		t.Error("troubleshoot agent should reject a model-less session")
	}
	if _, err := set.GeneralAgent(context.Background(), st); err == nil {
		t.Error("general agent should reject a model-less session")
	}
}
