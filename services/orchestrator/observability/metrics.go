// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring conversation
// turns. Metrics include:
//   - Turn counters (by outcome)
//   - Stage latency histograms
//   - Guardrail verdict counters and retry histograms
//   - Active stream gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for conversation flow metrics
const flowSubsystem = "support_flow"

// FlowMetrics holds all Prometheus metrics for conversation processing.
// It implements flow.Recorder. Initialize once at startup via
// InitMetrics().
type FlowMetrics struct {
	// TurnsTotal counts completed turns by outcome.
	// Labels: outcome (ok, error)
	TurnsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage execution time.
	// Labels: stage, status (success, error)
	StageDurationSeconds *prometheus.HistogramVec

	// GuardrailVerdictsTotal counts guardrail resolutions.
	// Labels: verdict (passed, failed)
	GuardrailVerdictsTotal *prometheus.CounterVec

	// GuardrailRetries measures how many remediation cycles each turn
	// needed before the guardrail resolved.
	GuardrailRetries prometheus.Histogram

	// ActiveStreams tracks currently open streaming turns.
	ActiveStreams prometheus.Gauge
}

var _ flow.Recorder = (*FlowMetrics)(nil)

// DefaultMetrics is the singleton instance of FlowMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *FlowMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *FlowMetrics {
	DefaultMetrics = &FlowMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: flowSubsystem,
				Name:      "turns_total",
				Help:      "Total completed conversation turns by outcome",
			},
			[]string{"outcome"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: flowSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage execution time in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"stage", "status"},
		),

		GuardrailVerdictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: flowSubsystem,
				Name:      "guardrail_verdicts_total",
				Help:      "Guardrail resolutions by verdict",
			},
			[]string{"verdict"},
		),

		GuardrailRetries: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: flowSubsystem,
				Name:      "guardrail_retries",
				Help:      "Remediation cycles per turn at guardrail resolution",
				Buckets:   []float64{0, 1, 2, 3},
			},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: flowSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open streaming turns",
			},
		),
	}

	return DefaultMetrics
}

// TurnCompleted records one finished turn.
func (m *FlowMetrics) TurnCompleted(outcome string) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

// StageCompleted records a stage execution.
func (m *FlowMetrics) StageCompleted(stage string, d time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	m.StageDurationSeconds.WithLabelValues(stage, status).Observe(d.Seconds())
}

// GuardrailResolved records a guardrail verdict and the retry count it
// resolved at.
func (m *FlowMetrics) GuardrailResolved(passed bool, retries int) {
	verdict := "passed"
	if !passed {
		verdict = "failed"
	}
	m.GuardrailVerdictsTotal.WithLabelValues(verdict).Inc()
	m.GuardrailRetries.Observe(float64(retries))
}

// StreamOpened increments the active streams gauge.
func (m *FlowMetrics) StreamOpened() {
	m.ActiveStreams.Inc()
}

// StreamClosed decrements the active streams gauge.
func (m *FlowMetrics) StreamClosed() {
	m.ActiveStreams.Dec()
}
