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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

var tracer = otel.Tracer("aleutian.flow")

// GenericFailureAnswer replaces the turn output when a stage errors or
// panics. It deliberately carries no internal detail.
const GenericFailureAnswer = "죄송합니다. 요청을 처리하는 중 문제가 발생했습니다. " +
	"잠시 후 다시 시도해 주세요.\n\n" + ServiceCenterInfo

// StageFunc is one unit of turn processing.
type StageFunc func(ctx context.Context, st *State) (Patch, error)

// Recorder receives engine-level measurements. The observability
// package provides the Prometheus-backed implementation; a nil Recorder
// disables recording.
type Recorder interface {
	TurnCompleted(outcome string)
	StageCompleted(stage string, d time.Duration, failed bool)
	GuardrailResolved(passed bool, retries int)
	StreamOpened()
	StreamClosed()
}

// Turn outcomes reported to the Recorder.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// EngineConfig tunes the turn engine. Zero values select defaults.
type EngineConfig struct {
	// StageTimeout bounds every single stage execution.
	StageTimeout time.Duration

	// MaxSteps bounds stage transitions per turn, a backstop against a
	// routing cycle that the guardrail retry budget doesn't cover.
	MaxSteps int

	// TokenChunkSize is the rune count per answer_token stream event.
	TokenChunkSize int
}

const (
	defaultStageTimeout   = 60 * time.Second
	defaultMaxSteps       = 16
	defaultTokenChunkSize = 24
)

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = defaultStageTimeout
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.TokenChunkSize <= 0 {
		cfg.TokenChunkSize = defaultTokenChunkSize
	}
}

// Engine executes the stage graph for one turn at a time.
//
// # Description
//
// The engine owns the registries (stage name → StageFunc, stage name →
// RouteFunc), the session store, and per-session serialization. A turn
// starts at the model router and runs stages sequentially: execute,
// merge the returned patch, persist a snapshot, route. Stages never run
// concurrently within a turn; different sessions proceed independently.
//
// # Assumptions
//
// Snapshots make a crashed turn resumable: BeginTurn tolerates replaying
// the same inbound message, so re-running a turn against the last
// persisted snapshot cannot duplicate conversation entries.
type Engine struct {
	stages   map[string]StageFunc
	routes   map[string]RouteFunc
	sessions SessionStore
	metrics  Recorder
	cfg      EngineConfig

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine builds an engine with the standard stage graph registered
// from the StageSet.
func NewEngine(set *StageSet, sessions SessionStore, metrics Recorder, cfg EngineConfig) *Engine {
	applyEngineDefaults(&cfg)
	e := &Engine{
		stages:   make(map[string]StageFunc),
		routes:   make(map[string]RouteFunc),
		sessions: sessions,
		metrics:  metrics,
		cfg:      cfg,
		locks:    make(map[string]*sessionLock),
	}
	e.Register(StageModelRouter, set.ModelRouter, RouteAfterModelRouter)
	e.Register(StageIntentRouter, set.IntentRouter, RouteAfterIntentRouter)
	e.Register(StageTroubleshoot, set.TroubleshootAgent, RouteToGuardrail)
	e.Register(StageInstall, set.InstallAgent, RouteToGuardrail)
	e.Register(StageConnect, set.ConnectAgent, RouteToGuardrail)
	e.Register(StageClinical, set.ClinicalAgent, RouteToGuardrail)
	e.Register(StageGeneral, set.GeneralAgent, RouteToGuardrail)
	e.Register(StageGuardrail, set.Guardrail, RouteAfterGuardrail)
	e.Register(StageFixResponse, set.FixResponse, RouteAfterFixResponse)
	return e
}

// Register adds or replaces a stage and its routing predicate. Exposed
// so tests can substitute instrumented stages.
func (e *Engine) Register(name string, fn StageFunc, route RouteFunc) {
	e.stages[name] = fn
	e.routes[name] = route
}

// lockSession serializes turns for one session ID in-process. Lock
// entries are reference-counted and removed when idle so the registry
// doesn't grow with every session ever seen.
func (e *Engine) lockSession(sessionId string) func() {
	e.mu.Lock()
	l, ok := e.locks[sessionId]
	if !ok {
		l = &sessionLock{}
		e.locks[sessionId] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, sessionId)
		}
		e.mu.Unlock()
	}
}

// Run processes one turn synchronously and returns the final state.
func (e *Engine) Run(ctx context.Context, sessionId, text string) (*State, error) {
	return e.run(ctx, sessionId, text, nil)
}

// RunStream processes one turn, emitting ordered events to emit:
// stage_started for every stage entered, answer_token chunks of the
// final answer, and exactly one turn_completed carrying either the
// final response or a generic error.
//
// emit is called from the engine goroutine; it must not block
// indefinitely.
func (e *Engine) RunStream(ctx context.Context, sessionId, text string, emit func(datatypes.StreamEvent)) (*State, error) {
	if e.metrics != nil {
		e.metrics.StreamOpened()
		defer e.metrics.StreamClosed()
	}

	st, err := e.run(ctx, sessionId, text, func(stage string) {
		emit(datatypes.StreamEvent{Type: datatypes.EventStageStarted, Stage: stage})
	})
	if err != nil {
		emit(datatypes.StreamEvent{Type: datatypes.EventTurnCompleted, Error: "processing failed"})
		return nil, err
	}

	for _, chunk := range chunkRunes(st.Answer, e.cfg.TokenChunkSize) {
		emit(datatypes.StreamEvent{Type: datatypes.EventAnswerToken, Token: chunk})
	}
	final := e.finalResponse(st)
	emit(datatypes.StreamEvent{Type: datatypes.EventTurnCompleted, Final: &final})
	return st, nil
}

// FinalResponse renders the wire response for a completed turn.
func (e *Engine) FinalResponse(st *State) datatypes.ChatResponse {
	return e.finalResponse(st)
}

func (e *Engine) finalResponse(st *State) datatypes.ChatResponse {
	return datatypes.ChatResponse{
		Response:           st.Answer,
		SessionId:          st.SessionId,
		Model:              st.Model,
		Intent:             st.Intent,
		SupportLevel:       st.SupportLevel,
		DisclaimerIncluded: strings.Contains(st.Answer, MedicalDisclaimer),
		ImageUrls:          st.ImageUrls,
		Sources:            st.Sources,
	}
}

func (e *Engine) run(ctx context.Context, sessionId, text string, onStage func(string)) (*State, error) {
	unlock := e.lockSession(sessionId)
	defer unlock()

	ctx, span := tracer.Start(ctx, "flow.turn",
		trace.WithAttributes(attribute.String("session.id", sessionId)))
	defer span.End()

	st, err := e.sessions.Get(ctx, sessionId)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionId, err)
	}
	if st == nil {
		st = NewState(sessionId)
	}
	st.BeginTurn(text, time.Now())

	if stageErr := e.runStages(ctx, st, onStage); stageErr != nil {
		slog.Error("Turn failed, substituting generic failure answer",
			"sessionId", sessionId, "error", stageErr)
		st.Answer = GenericFailureAnswer
		st.GuardrailPassed = GuardrailPassed
		if e.metrics != nil {
			e.metrics.TurnCompleted(OutcomeError)
		}
	} else if e.metrics != nil {
		e.metrics.TurnCompleted(OutcomeOK)
	}

	st.CompleteTurn(time.Now())
	if err := e.sessions.Put(ctx, sessionId, st); err != nil {
		return nil, fmt.Errorf("persisting session %s: %w", sessionId, err)
	}
	rec := datatypes.TurnRecord{
		SessionId:    sessionId,
		Question:     text,
		Answer:       st.Answer,
		Model:        st.Model,
		Intent:       st.Intent,
		SupportLevel: st.SupportLevel,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := e.sessions.AppendHistory(ctx, rec); err != nil {
		// History is advisory; the authoritative record is the snapshot.
		slog.Warn("Appending turn history failed", "sessionId", sessionId, "error", err)
	}
	return st, nil
}

// runStages walks the graph from the entry stage until a routing
// predicate returns StageEnd. A stage panic is converted to an error so
// one bad turn cannot take the process down.
func (e *Engine) runStages(ctx context.Context, st *State, onStage func(string)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()

	current := StageModelRouter
	for steps := 0; current != StageEnd; steps++ {
		if steps >= e.cfg.MaxSteps {
			return fmt.Errorf("turn exceeded %d stage transitions at %q", e.cfg.MaxSteps, current)
		}
		fn, ok := e.stages[current]
		if !ok {
			return fmt.Errorf("no stage registered as %q", current)
		}
		if onStage != nil {
			onStage(current)
		}

		patch, stageErr := e.execStage(ctx, current, fn, st)
		if stageErr != nil {
			return fmt.Errorf("stage %s: %w", current, stageErr)
		}
		patch.Apply(st)

		if current == StageGuardrail && e.metrics != nil {
			e.metrics.GuardrailResolved(st.GuardrailPassed == GuardrailPassed, st.GuardrailRetryCount)
		}

		// Snapshot per transition so a crashed turn resumes from the
		// last completed stage instead of replaying capability calls.
		if putErr := e.sessions.Put(ctx, st.SessionId, st); putErr != nil {
			return fmt.Errorf("persisting snapshot after %s: %w", current, putErr)
		}

		route := e.routes[current]
		current = route(st)
	}
	return nil
}

func (e *Engine) execStage(ctx context.Context, name string, fn StageFunc, st *State) (Patch, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "flow.stage."+name,
		trace.WithAttributes(
			attribute.String("session.id", st.SessionId),
			attribute.String("stage", name),
		))
	defer span.End()

	start := time.Now()
	patch, err := fn(ctx, st)
	if e.metrics != nil {
		e.metrics.StageCompleted(name, time.Since(start), err != nil)
	}
	return patch, err
}

// chunkRunes splits s into rune-safe chunks of at most size runes.
func chunkRunes(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	out := make([]string, 0, len(runes)/size+1)
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	return append(out, string(runes))
}
