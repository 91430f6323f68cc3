// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator wires the device-support service together.
//
// This package owns process-level concerns: configuration defaults,
// OpenTelemetry tracing, Prometheus metrics, client construction for the
// LLM backend, Weaviate, Badger, and SQLite, and the HTTP surface. The
// conversation semantics live in services/orchestrator/flow; everything
// here is assembly.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12210}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianSupport/services/llm"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/catalog"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/ingest"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/session"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/tools"
	"github.com/AleutianAI/AleutianSupport/services/policy_engine"
)

// Service is the orchestrator lifecycle contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify the registered routes.
	Router() *gin.Engine

	// Close releases the session store, record store, and tracer.
	Close()
}

// Config holds orchestrator configuration. Zero values select defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// AnswerModel is the LLM used by the generation and routing stages.
	// Default: gpt-4o-mini (or OPENAI_MODEL when set).
	AnswerModel string

	// JudgeModel is the LLM used for guardrail judgment. Default: the
	// answer model. Judgment runs on every turn, so a cheaper model is
	// the usual choice here.
	JudgeModel string

	// WeaviateURL is the manual retrieval store URL. When empty the
	// service runs without retrieval: agents answer from structured
	// records and model knowledge only, and manual upload is disabled.
	WeaviateURL string

	// SessionDBPath is the Badger directory for session state.
	// Default: "./data/sessions". "memory" selects an in-memory store.
	SessionDBPath string

	// RecordsDBPath is the SQLite file holding error codes and
	// peripheral compatibility. Default: "./data/records.db".
	RecordsDBPath string

	// SeedRecords loads the built-in record fixtures into an empty
	// records database. Default: true.
	SeedRecords *bool

	// MaxGuardrailRetries bounds the remediation cycle per turn.
	// Default: 2.
	MaxGuardrailRetries int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317".
	OTelEndpoint string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// StageTimeout bounds each stage execution. Default: 60s.
	StageTimeout time.Duration
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.SessionDBPath == "" {
		cfg.SessionDBPath = "./data/sessions"
	}
	if cfg.RecordsDBPath == "" {
		cfg.RecordsDBPath = "./data/records.db"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if cfg.MaxGuardrailRetries == 0 {
		cfg.MaxGuardrailRetries = flow.DefaultMaxGuardrailRetries
	}
	if cfg.SeedRecords == nil {
		t := true
		cfg.SeedRecords = &t
	}
	return cfg
}

type service struct {
	config         Config
	router         *gin.Engine
	engine         *flow.Engine
	sessions       *session.Store
	records        *tools.Records
	weaviateClient *weaviate.Client
	tracerCleanup  func(context.Context)
}

var _ Service = (*service)(nil)

// New assembles a ready-to-run service.
//
// # Description
//
// Initialization order: tracing, metrics, model catalog, LLM clients,
// policy engine, record store (seeded when empty), session store,
// retrieval store, flow engine, router. Weaviate is the only optional
// dependency; everything else failing is fatal.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	metrics := observability.InitMetrics()

	cat, err := catalog.Load()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}

	answerClient, err := llm.NewOpenAIClient(s.config.AnswerModel)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	judgeClient := answerClient
	if s.config.JudgeModel != "" {
		judgeClient = answerClient.WithModel(s.config.JudgeModel)
	}

	safety, err := policy_engine.NewPolicyEngine()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	s.records, err = tools.OpenRecords(s.config.RecordsDBPath)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	if *s.config.SeedRecords {
		if err := s.records.SeedIfEmpty(context.Background()); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to seed record store: %w", err)
		}
	}

	sessCfg := session.DefaultConfig(s.config.SessionDBPath)
	if s.config.SessionDBPath == "memory" {
		sessCfg = session.InMemoryConfig()
	}
	s.sessions, err = session.Open(sessCfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	var manuals flow.ManualSearcher
	var ingestor *ingest.Ingestor
	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running without manual retrieval",
			"error", err)
	}
	if s.weaviateClient != nil {
		manuals = tools.NewManualSearch(s.weaviateClient)
		ingestor = ingest.New(s.weaviateClient)
		if err := ingestor.EnsureSchema(context.Background()); err != nil {
			slog.Warn("Retrieval schema check failed, continuing without manual retrieval",
				"error", err)
			manuals = nil
			ingestor = nil
		}
	}

	set := &flow.StageSet{
		Catalog:             cat,
		Gen:                 llm.NewGenerator(answerClient),
		Classify:            llm.NewLabelClassifier(answerClient),
		Judgment:            llm.NewSafetyJudge(judgeClient),
		Manuals:             manuals,
		Records:             s.records,
		Safety:              safety,
		MaxGuardrailRetries: s.config.MaxGuardrailRetries,
	}
	s.engine = flow.NewEngine(set, s.sessions, metrics, flow.EngineConfig{
		StageTimeout: s.config.StageTimeout,
	})

	s.initRouter(cat, ingestor)
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.Close()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting support orchestrator", "port", s.config.Port)
	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// Close releases held resources. Safe to call on a partially
// initialized service and safe to call more than once.
func (s *service) Close() {
	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			slog.Warn("Session store close error", "error", err)
		}
		s.sessions = nil
	}
	if s.records != nil {
		if err := s.records.Close(); err != nil {
			slog.Warn("Record store close error", "error", err)
		}
		s.records = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// initTracer sets up the OTLP trace exporter.
//
// # Limitations
//
//   - Uses an insecure gRPC connection (internal networks only).
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("aleutian-support")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

// initWeaviate connects to the retrieval store when configured. An
// empty URL is not an error; it selects retrieval-less operation.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")
	if weaviateURL == "" {
		slog.Info("Weaviate URL not configured, manual retrieval disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	s.weaviateClient, err = weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}
	slog.Info("Weaviate client initialized", "url", weaviateURL)
	return nil
}

func (s *service) initRouter(cat *catalog.Catalog, ingestor *ingest.Ingestor) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	routes.SetupRoutes(s.router, routes.Deps{
		Engine:   s.engine,
		Catalog:  cat,
		Sessions: s.sessions,
		Records:  s.records,
		Ingestor: ingestor,
	})
}
