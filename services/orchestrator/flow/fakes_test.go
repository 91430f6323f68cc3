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
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/catalog"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

// fakeGenerator returns a fixed answer, or an error when set.
type fakeGenerator struct {
	answer     string
	err        error
	lastPrompt string
	lastUser   string
	calls      int
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.calls++
	f.lastPrompt = systemPrompt
	f.lastUser = userMessage
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeClassifier returns a fixed label, or an error when set.
type fakeClassifier struct {
	label string
	err   error
}

func (f *fakeClassifier) Classify(ctx context.Context, systemPrompt, text string, allowed []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.label, nil
}

// fakeJudge returns a fixed verdict, or an error when set.
type fakeJudge struct {
	verdict Verdict
	err     error
	calls   int
}

func (f *fakeJudge) Judge(ctx context.Context, model, intent, answer string) (Verdict, error) {
	f.calls++
	if f.err != nil {
		return Verdict{}, f.err
	}
	return f.verdict, nil
}

// fakeManuals returns fixed passages, or an error when set.
type fakeManuals struct {
	passages     []datatypes.Passage
	err          error
	lastCategory string
}

func (f *fakeManuals) Search(ctx context.Context, model, category, query string, topK int) ([]datatypes.Passage, error) {
	f.lastCategory = category
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

// fakeRecords serves canned error-code and peripheral data.
type fakeRecords struct {
	byCode      map[string]*datatypes.ErrorCode
	symptomHits []datatypes.ErrorCode
	matched     bool
	peripherals []datatypes.PeripheralCompat
	err         error
}

func (f *fakeRecords) LookupErrorCode(ctx context.Context, model, code string) (*datatypes.ErrorCode, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCode[code], nil
}

func (f *fakeRecords) SearchErrorsBySymptom(ctx context.Context, model, symptom string) ([]datatypes.ErrorCode, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.symptomHits, f.matched, nil
}

func (f *fakeRecords) CheckPeripheral(ctx context.Context, model, peripheralType, peripheralName string) ([]datatypes.PeripheralCompat, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.peripherals, nil
}

// fakeScanner flags answers containing any configured trigger string.
type fakeScanner struct {
	triggers map[string]string
}

func (f *fakeScanner) ScanAnswer(answer, supportLevel string) []string {
	var out []string
	for trigger, violation := range f.triggers {
		if trigger != "" && strings.Contains(answer, trigger) {
			out = append(out, violation)
		}
	}
	return out
}

// memoryStore is an in-memory SessionStore for engine tests.
type memoryStore struct {
	mu      sync.Mutex
	states  map[string]*State
	history map[string][]datatypes.TurnRecord
	puts    int
	getErr  error
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		states:  make(map[string]*State),
		history: make(map[string][]datatypes.TurnRecord),
	}
}

func (m *memoryStore) Get(ctx context.Context, sessionId string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	st, ok := m.states[sessionId]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (m *memoryStore) Put(ctx context.Context, sessionId string, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	cp := *state
	m.states[sessionId] = &cp
	m.puts++
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, sessionId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionId)
	delete(m.history, sessionId)
	return nil
}

func (m *memoryStore) AppendHistory(ctx context.Context, rec datatypes.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[rec.SessionId] = append(m.history[rec.SessionId], rec)
	return nil
}

func (m *memoryStore) History(ctx context.Context, sessionId string) ([]datatypes.TurnRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[sessionId], nil
}

// testCatalog loads the embedded catalog, failing the test on error.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	return cat
}

// testStageSet builds a StageSet whose capabilities all succeed with
// benign defaults. Tests override individual fields.
func testStageSet(t *testing.T) *StageSet {
	t.Helper()
	return &StageSet{
		Catalog:  testCatalog(t),
		Gen:      &fakeGenerator{answer: "테스트 답변입니다."},
		Classify: &fakeClassifier{label: labelUnidentified},
		Judgment: &fakeJudge{verdict: Verdict{Passed: true}},
		Manuals:  &fakeManuals{},
		Records:  &fakeRecords{},
		Safety:   &fakeScanner{},
	}
}

// stateWithModel returns a state mid-turn with an identified model.
func stateWithModel(t *testing.T, cat *catalog.Catalog, model, message string) *State {
	t.Helper()
	p, ok := cat.Get(model)
	if !ok {
		t.Fatalf("model %s not in catalog", model)
	}
	st := NewState("sess_test")
	st.Conversation = []Turn{{Role: RoleUser, Text: message}}
	st.Model = p.ModelID
	st.ModelTier = p.Tier
	st.ToneProfile = p.ToneProfile
	return st
}
