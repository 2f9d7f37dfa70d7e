// Package app wires the console's services from configuration. Both the
// HTTP server and intakectl start from here.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"intake.app/console/internal/config"
	"intake.app/console/internal/core"
	"intake.app/console/internal/flow"
	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/metrics"
	"intake.app/console/internal/objectstore"
	"intake.app/console/internal/store"
)

type App struct {
	Flow          flow.Document
	Metrics       *metrics.Metrics
	Store         *store.SQLiteStore
	Backend       *intakeapi.Client
	Bucket        *objectstore.Client
	Conversations *core.ConversationService
	Reviews       *core.ReviewService

	llm *core.LLMService
}

// New opens the local store and builds every client and service.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	doc, err := flow.Load(cfg.FlowFile)
	if err != nil {
		return nil, err
	}

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.New()
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	backend := intakeapi.NewClient(cfg.BackendURL, m.Transport(nil, intakeapi.EndpointLabel), timeout)
	bucket := objectstore.NewClient(cfg.StorageURL, cfg.StorageBucket, cfg.StorageKey,
		m.Transport(nil, func(*http.Request) string { return "object_storage" }), timeout)

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Printf("Title generation disabled: %v", err)
	}
	// a nil *LLMService must not become a non-nil TitleGenerator
	var titles core.TitleGenerator
	if llmService != nil {
		titles = llmService
	}

	a := &App{
		Flow:    doc,
		Metrics: m,
		Store:   dbStore,
		Backend: backend,
		Bucket:  bucket,
		llm:     llmService,
	}
	a.Conversations = core.NewConversationService(backend, dbStore, titles, core.ServiceConfig{
		Flow:          doc,
		AutoSaveDelay: time.Duration(cfg.AutoSaveDelay) * time.Millisecond,
		Metrics:       m,
	})
	a.Reviews = core.NewReviewService(backend, bucket, dbStore, doc, m)

	if cfg.Debug() {
		log.Printf("Console wired: backend=%s storage=%s bucket=%s db=%s", cfg.BackendURL, cfg.StorageURL, cfg.StorageBucket, cfg.DatabaseURL)
	}
	return a, nil
}

// Close shuts the engines first so pending work stops before the store closes.
func (a *App) Close() {
	a.Conversations.Close()
	a.Reviews.Close()
	a.llm.Close()
	if err := a.Store.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
