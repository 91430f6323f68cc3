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

func newTestEngine(t *testing.T, set *StageSet, store SessionStore) *Engine {
	t.Helper()
	return NewEngine(set, store, nil, EngineConfig{})
}

func TestEngine_RunCompletesFullTurn(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Gen = &fakeGenerator{answer: "270S 설치 안내입니다."}
	set.Classify = &fakeClassifier{label: IntentInstall}
	store := newMemoryStore()
	engine := newTestEngine(t, set, store)

	st, err := engine.Run(context.Background(), "sess_1", "InBody 270S 설치 방법 알려주세요")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if st.Model != "270S" || st.Intent != IntentInstall {
		t.Errorf("routing outcome: model=%q intent=%q", st.Model, st.Intent)
	}
	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("guardrail status = %q, want passed", st.GuardrailPassed)
	}
	if st.Answer != "270S 설치 안내입니다." {
		t.Errorf("Answer = %q", st.Answer)
	}

	// The persisted snapshot holds the completed conversation.
	saved, err := store.Get(context.Background(), "sess_1")
	if err != nil || saved == nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if n := len(saved.Conversation); n != 2 {
		t.Errorf("conversation length = %d, want user + assistant", n)
	}
	hist, _ := store.History(context.Background(), "sess_1")
	if len(hist) != 1 || hist[0].Answer != st.Answer {
		t.Errorf("history = %+v", hist)
	}
}

func TestEngine_ModelPersistsAcrossTurns(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Classify = &fakeClassifier{label: IntentTroubleshoot}
	store := newMemoryStore()
	engine := newTestEngine(t, set, store)

	if _, err := engine.Run(context.Background(), "sess_1", "970S 쓰고 있어요"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	st, err := engine.Run(context.Background(), "sess_1", "측정이 멈춰요")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if st.Model != "970S" {
		t.Errorf("model not sticky across turns: %q", st.Model)
	}
}

func TestEngine_GuardrailRetryLoopRemediates(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	// First generation leaks a cross-model reference on a 270S session;
	// the remediation pass produces a clean answer.
	gen := &rewritingGenerator{answers: []string{
		"InBody 970S처럼 설정하시면 됩니다.",
		"설정 메뉴에서 변경하시면 됩니다.",
	}}
	set.Gen = gen
	set.Classify = &fakeClassifier{label: IntentInstall}
	store := newMemoryStore()
	engine := newTestEngine(t, set, store)

	st, err := engine.Run(context.Background(), "sess_1", "InBody 270S 설정 방법")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Answer != "설정 메뉴에서 변경하시면 됩니다." {
		t.Errorf("Answer = %q, want the remediated answer", st.Answer)
	}
	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("guardrail status = %q", st.GuardrailPassed)
	}
	if st.GuardrailRetryCount != 1 {
		t.Errorf("retry count = %d, want 1", st.GuardrailRetryCount)
	}
	if gen.calls != 2 {
		t.Errorf("generation calls = %d, want agent + remediation", gen.calls)
	}
}

// rewritingGenerator serves a different answer per call.
type rewritingGenerator struct {
	answers []string
	calls   int
}

func (g *rewritingGenerator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	i := g.calls
	g.calls++
	if i >= len(g.answers) {
		i = len(g.answers) - 1
	}
	return g.answers[i], nil
}

func TestEngine_StageErrorSubstitutesGenericFailure(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	store := newMemoryStore()
	engine := newTestEngine(t, set, store)
	engine.Register(StageIntentRouter, func(ctx context.Context, st *State) (Patch, error) {
		return Patch{}, errors.New("classifier exploded")
	}, RouteAfterIntentRouter)

	st, err := engine.Run(context.Background(), "sess_1", "270S 질문이요")
	if err != nil {
		t.Fatalf("stage errors must not surface from Run: %v", err)
	}
	if st.Answer != GenericFailureAnswer {
		t.Errorf("Answer = %q, want the generic failure answer", st.Answer)
	}
	if st.GuardrailPassed != GuardrailPassed {
		t.Errorf("failure answer must be marked passed so the turn terminates")
	}
}

func TestEngine_StagePanicIsContained(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	store := newMemoryStore()
	engine := newTestEngine(t, set, store)
	engine.Register(StageModelRouter, func(ctx context.Context, st *State) (Patch, error) {
		panic("nil map write")
	}, RouteAfterModelRouter)

	st, err := engine.Run(context.Background(), "sess_1", "질문")
	if err != nil {
		t.Fatalf("a stage panic must not surface from Run: %v", err)
	}
	if st.Answer != GenericFailureAnswer {
		t.Errorf("Answer = %q, want the generic failure answer", st.Answer)
	}
}

func TestEngine_MaxStepsBreaksRoutingCycle(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	store := newMemoryStore()
	engine := NewEngine(set, store, nil, EngineConfig{MaxSteps: 4})
	// A self-loop that no routing predicate terminates.
	engine.Register(StageModelRouter, func(ctx context.Context, st *State) (Patch, error) {
		return Patch{}, nil
	}, func(st *State) string { return StageModelRouter })

	st, err := engine.Run(context.Background(), "sess_1", "질문")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Answer != GenericFailureAnswer {
		t.Errorf("cycle must end in the generic failure answer, got %q", st.Answer)
	}
}

func TestEngine_SessionLoadFailureSurfaces(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	store := newMemoryStore()
	store.getErr = errors.New("db closed")
	engine := newTestEngine(t, set, store)

	if _, err := engine.Run(context.Background(), "sess_1", "질문"); err == nil {
		t.Fatal("expected an error when the session store is unavailable")
	}
}

func TestEngine_RunStreamEventOrdering(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	set.Gen = &fakeGenerator{answer: strings.Repeat("가", 50)}
	set.Classify = &fakeClassifier{label: IntentInstall}
	store := newMemoryStore()
	engine := NewEngine(set, store, nil, EngineConfig{TokenChunkSize: 24})

	var events []datatypes.StreamEvent
	st, err := engine.RunStream(context.Background(), "sess_1", "InBody 270S 설치",
		func(ev datatypes.StreamEvent) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("RunStream: %v", err)
	}

	var stages, tokens, completed int
	var rebuilt strings.Builder
	for i, ev := range events {
		switch ev.Type {
		case datatypes.EventStageStarted:
			stages++
			if tokens > 0 || completed > 0 {
				t.Errorf("event %d: stage_started after answer events", i)
			}
		case datatypes.EventAnswerToken:
			tokens++
			rebuilt.WriteString(ev.Token)
		case datatypes.EventTurnCompleted:
			completed++
			if i != len(events)-1 {
				t.Errorf("turn_completed at index %d, want last", i)
			}
			if ev.Final == nil || ev.Final.Response != st.Answer {
				t.Errorf("final payload = %+v", ev.Final)
			}
		default:
			t.Errorf("unexpected event type %q", ev.Type)
		}
	}
	if stages == 0 {
		t.Error("no stage_started events")
	}
	if completed != 1 {
		t.Errorf("turn_completed count = %d, want exactly 1", completed)
	}
	// 50 runes at 24 per chunk.
	if tokens != 3 {
		t.Errorf("token events = %d, want 3", tokens)
	}
	if rebuilt.String() != st.Answer {
		t.Errorf("concatenated tokens differ from the final answer")
	}
}

func TestEngine_RunStreamFailureEmitsSingleCompletion(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	store := newMemoryStore()
	store.getErr = errors.New("db closed")
	engine := newTestEngine(t, set, store)

	var events []datatypes.StreamEvent
	_, err := engine.RunStream(context.Background(), "sess_1", "질문",
		func(ev datatypes.StreamEvent) { events = append(events, ev) })
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(events) != 1 || events[0].Type != datatypes.EventTurnCompleted {
		t.Fatalf("events = %+v, want exactly one turn_completed", events)
	}
	if events[0].Error == "" || events[0].Final != nil {
		t.Errorf("failure completion must carry an error and no payload: %+v", events[0])
	}
}

func TestEngine_FinalResponseReflectsState(t *testing.T) {
	t.Parallel()
	set := testStageSet(t)
	engine := newTestEngine(t, set, newMemoryStore())

	st := NewState("sess_1")
	st.Model = "970S"
	st.Intent = IntentClinical
	st.Answer = "해석 안내입니다.\n\n" + MedicalDisclaimer
	st.Sources = []datatypes.Source{{File: "970s_manual.pdf", Page: 3}}

	resp := engine.FinalResponse(st)
	if resp.SessionId != "sess_1" || resp.Model != "970S" || resp.Intent != IntentClinical {
		t.Errorf("response = %+v", resp)
	}
	if !resp.DisclaimerIncluded {
		t.Error("DisclaimerIncluded not detected")
	}
	if len(resp.Sources) != 1 {
		t.Errorf("Sources = %+v", resp.Sources)
	}
}

func TestChunkRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		size int
		want []string
	}{
		{"", 4, nil},
		{"abc", 4, []string{"abc"}},
		{"abcd", 4, []string{"abcd"}},
		{"abcde", 4, []string{"abcd", "e"}},
		{"가나다라마", 2, []string{"가나", "다라", "마"}},
	}
	for _, tt := range tests {
		got := chunkRunes(tt.in, tt.size)
		if len(got) != len(tt.want) {
			t.Errorf("chunkRunes(%q, %d) = %v, want %v", tt.in, tt.size, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("chunkRunes(%q, %d)[%d] = %q, want %q",
					tt.in, tt.size, i, got[i], tt.want[i])
			}
		}
	}
}
