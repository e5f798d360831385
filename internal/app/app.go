// Package app wires the review components from configuration.
package app

import (
	"fmt"

	"github.com/ericksa/contractlens/internal/analysis"
	"github.com/ericksa/contractlens/internal/audit"
	"github.com/ericksa/contractlens/internal/config"
	"github.com/ericksa/contractlens/internal/llm"
	"github.com/ericksa/contractlens/internal/logger"
	"github.com/ericksa/contractlens/internal/review"
	"github.com/ericksa/contractlens/internal/store"
	"github.com/ericksa/contractlens/internal/workers"
	"github.com/ericksa/contractlens/pkg/mcp"
)

type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Store    *store.Store
	Audit    *audit.Auditor
	Pipeline *analysis.Pipeline
	Review   *review.Service
	MCP      *mcp.Handler
}

// NewLLM returns nil when no endpoint is configured, which turns every
// stage over to its heuristic.
func NewLLM(cfg *config.Config, log *logger.Logger) llm.Caller {
	c := cfg.Review.LLM
	if c.Endpoint == "" {
		return nil
	}
	client := llm.NewClient(llm.Options{
		Endpoint:    c.Endpoint,
		Model:       c.Model,
		APIKey:      c.APIKey,
		Timeout:     cfg.LLMTimeout(),
		MaxRetries:  c.MaxRetries,
		Temperature: c.Temperature,
		Logger:      log,
	})
	if c.RatePerSecond <= 0 {
		return client
	}
	return llm.NewRateLimited(client, c.RatePerSecond, c.Burst)
}

func NewPipeline(cfg *config.Config, log *logger.Logger) *analysis.Pipeline {
	p := cfg.Review.Pipeline
	return analysis.New(analysis.Options{
		LLM:            NewLLM(cfg, log),
		Logger:         log,
		Rand:           analysis.NewRand(p.Seed),
		Concurrency:    p.Concurrency,
		MaxInputChars:  p.MaxInputChars,
		SampleFallback: p.SampleFallback,
	})
}

// New opens storage and builds the service, the contract worker and the MCP handler.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	st, err := store.Open(cfg.Review.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	auditor, err := audit.NewAuditor(cfg.Review.Storage.AuditPath, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	pipeline := NewPipeline(cfg, log)
	svc := review.NewService(pipeline, st, log)
	handler := mcp.NewHandler(map[string]workers.Worker{
		"contract": workers.NewContractWorker(svc, cfg.Review.Storage.DocumentsPath),
	}, auditor, log)

	log.Info("review service ready",
		"ai", cfg.Review.LLM.Endpoint != "",
		"model", cfg.Review.LLM.Model,
		"concurrency", cfg.Review.Pipeline.Concurrency,
		"store", cfg.Review.Storage.Path,
	)
	return &App{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Audit:    auditor,
		Pipeline: pipeline,
		Review:   svc,
		MCP:      handler,
	}, nil
}

func (a *App) Close() {
	a.Audit.Close()
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("failed to close store", "error", err)
	}
}
