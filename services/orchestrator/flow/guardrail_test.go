// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

func TestGuardrail_EmptyAnswerPassesWithoutValidation(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	judge := &fakeJudge{verdict: Verdict{Passed: true}}
	set.Judgment = judge

	st := NewState("sess_1")
	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("status = %q, want passed", st.GuardrailPassed)
	}
	if judge.calls != 0 {
		t.Errorf("judgment ran on an empty answer")
	}
}

func TestGuardrail_InsertsMissingMedicalDisclaimer(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)

	st := stateWithModel(t, set.Catalog, "970S", "질문")
	st.NeedsDisclaimer = true
	st.Answer = "체수분 수치는 다음과 같이 해석합니다."

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if !strings.Contains(st.Answer, MedicalDisclaimer) {
		t.Fatal("medical disclaimer not inserted")
	}
	if strings.Count(st.Answer, MedicalDisclaimer) != 1 {
		t.Errorf("disclaimer appears %d times, want exactly 1",
			strings.Count(st.Answer, MedicalDisclaimer))
	}
	// Auto-insertion is a recorded but non-fatal violation.
	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("status = %q, insertion must not fail the answer", st.GuardrailPassed)
	}
	if len(st.GuardrailViolations) == 0 {
		t.Errorf("insertion must be recorded as a violation")
	}
}

func TestGuardrail_DisclaimerAlreadyPresentNotDuplicated(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)

	st := stateWithModel(t, set.Catalog, "970S", "질문")
	st.NeedsDisclaimer = true
	st.Answer = "해석 안내입니다.\n\n" + MedicalDisclaimer

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if strings.Count(st.Answer, MedicalDisclaimer) != 1 {
		t.Errorf("disclaimer duplicated")
	}
	if len(st.GuardrailViolations) != 0 {
		t.Errorf("no violation expected, got %v", st.GuardrailViolations)
	}
}

func TestGuardrail_Level3GetsHardwareDisclaimer(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)

	st := stateWithModel(t, set.Catalog, "270S", "질문")
	st.SupportLevel = datatypes.SupportLevel3
	st.Answer = "서비스 센터 이관이 필요한 문제입니다."

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if !strings.Contains(st.Answer, HardwareDisclaimer) {
		t.Error("hardware disclaimer not inserted on a level-3 answer")
	}
}

func TestGuardrail_CrossModelReferenceIsFatal(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)

	st := stateWithModel(t, set.Catalog, "270S", "질문")
	st.Answer = "InBody 970S의 설정 메뉴에서 변경할 수 있습니다."

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if st.GuardrailPassed != GuardrailFailed {
		t.Errorf("status = %q, want failed", st.GuardrailPassed)
	}
	found := false
	for _, v := range st.GuardrailViolations {
		if strings.Contains(v, "970S") {
			found = true
		}
	}
	if !found {
		t.Errorf("violations missing the offending model: %v", st.GuardrailViolations)
	}
}

func TestGuardrail_OwnModelReferenceIsClean(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)

	st := stateWithModel(t, set.Catalog, "270S", "질문")
	st.Answer = "InBody 270S의 전원을 다시 켜 주세요."

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("own-model mention flagged: %v", st.GuardrailViolations)
	}
}

func TestGuardrail_SafetyScanIsFatalOnLevel3(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Safety = &fakeScanner{triggers: map[string]string{
		"메인보드": "Level 3 안전 위반: 내부 부품 조작 안내",
	}}
	judge := &fakeJudge{verdict: Verdict{Passed: true}}
	set.Judgment = judge

	st := stateWithModel(t, set.Catalog, "270S", "질문")
	st.SupportLevel = datatypes.SupportLevel3
	st.Answer = "메인보드를 직접 교체하시면 됩니다.\n\n" + HardwareDisclaimer

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if st.GuardrailPassed != GuardrailFailed {
		t.Errorf("status = %q, want failed", st.GuardrailPassed)
	}
	// Judgment must be skipped once a deterministic check failed.
	if judge.calls != 0 {
		t.Errorf("judgment ran despite a deterministic hard failure")
	}
}

func TestGuardrail_JudgeFailureIsOpenPass(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Judgment = &fakeJudge{err: errors.New("unparseable verdict")}

	st := stateWithModel(t, set.Catalog, "580", "질문")
	st.Answer = "전원 케이블을 점검해 주세요."

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("judge failure must fail open, got %q", st.GuardrailPassed)
	}
}

func TestGuardrail_JudgeRejectionFailsWithSuggestion(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Judgment = &fakeJudge{verdict: Verdict{
		Passed:     false,
		Violations: []string{"위험한 조작 안내"},
		Suggestion: "해당 문장을 제거하세요",
	}}

	st := stateWithModel(t, set.Catalog, "580", "질문")
	st.Answer = "커버를 살짝 열고 확인해 보세요."

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if st.GuardrailPassed != GuardrailFailed {
		t.Errorf("status = %q, want failed", st.GuardrailPassed)
	}
	if st.GuardrailSuggestion != "해당 문장을 제거하세요" {
		t.Errorf("suggestion = %q", st.GuardrailSuggestion)
	}
}

func TestGuardrail_RetryBudgetExhaustedSubstitutesFallback(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)

	st := stateWithModel(t, set.Catalog, "270S", "질문")
	st.Answer = "InBody 970S 관련 내용이 또 포함된 답변"
	st.GuardrailRetryCount = DefaultMaxGuardrailRetries

	patch, err := set.Guardrail(context.Background(), st)
	if err != nil {
		t.Fatalf("Guardrail: %v", err)
	}
	patch.Apply(st)

	if st.Answer != SafeFallbackAnswer {
		t.Errorf("answer = %q, want the safe fallback", st.Answer)
	}
	// Force-pass so the turn terminates instead of looping.
	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("status = %q, want passed", st.GuardrailPassed)
	}
	if len(st.GuardrailViolations) == 0 {
		t.Errorf("violations must be kept for the record")
	}
}

func TestFixResponse_RewritesAndResetsVerdict(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	gen := &fakeGenerator{answer: "수정된 답변입니다."}
	set.Gen = gen

	st := stateWithModel(t, set.Catalog, "270S", "질문")
	st.Answer = "위반이 있는 답변"
	st.GuardrailPassed = GuardrailFailed
	st.GuardrailViolations = []string{"기종 격리 위반"}
	st.GuardrailSuggestion = "해당 기종 언급 제거"
	st.GuardrailRetryCount = 1

	patch, err := set.FixResponse(context.Background(), st)
	if err != nil {
		t.Fatalf("FixResponse: %v", err)
	}
	patch.Apply(st)

	if st.Answer != "수정된 답변입니다." {
		t.Errorf("answer = %q", st.Answer)
	}
	if st.GuardrailRetryCount != 2 {
		t.Errorf("retry count = %d, want 2", st.GuardrailRetryCount)
	}
	if st.GuardrailPassed != GuardrailUnknown || st.GuardrailViolations != nil ||
		st.GuardrailSuggestion != "" {
		t.Errorf("verdict fields not reset: %+v", st)
	}
	if !strings.Contains(gen.lastPrompt, "기종 격리 위반") {
		t.Errorf("remediation prompt missing the recorded violation")
	}
}

func TestFixResponse_GenerationFailureSurfacesAsError(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Gen = &fakeGenerator{err: errors.New("backend down")}

	st := stateWithModel(t, set.Catalog, "270S", "질문")
	st.Answer = "위반이 있는 답변"

	if _, err := set.FixResponse(context.Background(), st); err == nil {
		t.Fatal("expected an error")
	}
}
