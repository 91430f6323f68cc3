// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package policy_engine

import (
	"strings"
	"testing"
)

func newEngine(t *testing.T) *PolicyEngine {
	t.Helper()
	e, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("NewPolicyEngine: %v", err)
	}
	return e
}

func TestNewPolicyEngine_LoadsEmbeddedRules(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	if len(e.RuleSets) == 0 {
		t.Fatal("no rule sets loaded")
	}
	for _, rs := range e.RuleSets {
		if len(rs.CompiledPatterns) != len(rs.Patterns) {
			t.Errorf("rule set %s: %d patterns, %d compiled",
				rs.Name, len(rs.Patterns), len(rs.CompiledPatterns))
		}
	}
	// Sorted by descending priority.
	for i := 1; i < len(e.RuleSets); i++ {
		if e.RuleSets[i-1].Priority < e.RuleSets[i].Priority {
			t.Errorf("rule sets out of priority order at %d", i)
		}
	}
}

func TestScanAnswer_FlagsSelfRepairOnLevel3(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	violations := e.ScanAnswer("메인보드를 직접 확인해 보세요.", "level_3")
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want one", violations)
	}
	if !strings.Contains(violations[0], "메인보드") {
		t.Errorf("violation missing the matched content: %q", violations[0])
	}
}

func TestScanAnswer_Level3RulesSkipLevel1Context(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	// The same phrasing is harmless in a user-resolvable context: the
	// answer merely describes what the service center will do.
	if v := e.ScanAnswer("서비스 센터에서 메인보드를 점검합니다.", "level_1"); len(v) != 0 {
		t.Errorf("level_1 scan flagged %v", v)
	}
	if v := e.ScanAnswer("전극 표면을 닦아 주세요.", "level_3"); len(v) != 0 {
		t.Errorf("clean answer flagged %v", v)
	}
}

func TestScanAnswer_OneViolationPerRuleSet(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	// Two self-repair patterns plus one electrical pattern: the
	// self-repair set reports once, the electrical set once.
	answer := "커버를 분리하고 메인보드의 퓨즈를 교체하세요."
	violations := e.ScanAnswer(answer, "level_3")
	if len(violations) != 2 {
		t.Errorf("violations = %v, want one per rule set", violations)
	}
}

func TestScanAnswerDetailed_ReportsEveryPatternHit(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	answer := "커버를 분리하고 메인보드의 퓨즈를 교체하세요."
	findings := e.ScanAnswerDetailed(answer, "level_3")
	if len(findings) < 3 {
		t.Fatalf("findings = %+v, want every individual hit", findings)
	}
	ids := make(map[string]bool)
	for _, f := range findings {
		ids[f.PatternId] = true
		if f.MatchedContent == "" || f.RuleSetName == "" {
			t.Errorf("finding missing metadata: %+v", f)
		}
	}
	for _, want := range []string{"USR-002", "USR-008", "UEW-002"} {
		if !ids[want] {
			t.Errorf("pattern %s not reported", want)
		}
	}
}
