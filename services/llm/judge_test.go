// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"strings"
	"testing"
)

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	v, err := ParseVerdict(`{"passed": true, "violations": [], "suggestion": ""}`)
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if !v.Passed {
		t.Error("Passed = false")
	}

	v, err = ParseVerdict("```json\n" +
		`{"passed": false, "violations": ["타기종 언급"], "suggestion": "해당 문장 제거"}` +
		"\n```")
	if err != nil {
		t.Fatalf("ParseVerdict fenced: %v", err)
	}
	if v.Passed || len(v.Violations) != 1 || v.Suggestion == "" {
		t.Errorf("verdict = %+v", v)
	}

	if _, err := ParseVerdict("이 답변은 안전합니다."); err == nil {
		t.Error("prose verdict must not parse")
	}
}

func TestJudge_PassesModelAndAnswerToPrompt(t *testing.T) {
	t.Parallel()
	client := &cannedClient{response: `{"passed": true}`}
	j := NewSafetyJudge(client)

	v, err := j.Judge(context.Background(), "270S", "troubleshoot", "전극을 닦아 주세요.")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if !v.Passed {
		t.Error("Passed = false")
	}
	if !strings.Contains(client.lastSystem, "270S") ||
		!strings.Contains(client.lastSystem, "전극을 닦아 주세요.") {
		t.Errorf("judgment prompt missing context: %q", client.lastSystem)
	}
	if client.lastParams.Temperature == nil || *client.lastParams.Temperature != 0 {
		t.Error("judgment must run at temperature zero")
	}
}

func TestJudge_UnparseableResponseIsError(t *testing.T) {
	t.Parallel()
	client := &cannedClient{response: "괜찮아 보입니다"}
	j := NewSafetyJudge(client)

	if _, err := j.Judge(context.Background(), "270S", "general", "답변"); err == nil {
		t.Fatal("expected a parse error")
	}
}
