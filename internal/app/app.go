// Package app wires the application together.
//
// App is the container holding every long-lived component: the database
// pool, the Genkit instance, the stores, the ingestion worker pool and the
// question orchestrator. Setup builds it in dependency order; Close tears
// it down in reverse.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onlinetcs/support-assistant/internal/agent"
	"github.com/onlinetcs/support-assistant/internal/config"
	"github.com/onlinetcs/support-assistant/internal/ingest"
	"github.com/onlinetcs/support-assistant/internal/knowledge"
	"github.com/onlinetcs/support-assistant/internal/log"
	"github.com/onlinetcs/support-assistant/internal/rag"
	"github.com/onlinetcs/support-assistant/internal/session"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	DBPool    *pgxpool.Pool
	Documents *knowledge.Store
	Embedder  *knowledge.Embedder
	Sessions  *session.Store
	Retriever *rag.Retriever
	Tool      ai.Tool

	Pipeline     *ingest.Pipeline
	Workers      *ingest.Pool
	Orchestrator *agent.Orchestrator

	cancel context.CancelFunc
}

// Close shuts the application down. Queued ingestion jobs finish first,
// then background work is canceled and the database pool released.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	if a.Workers != nil {
		a.Workers.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}

	return nil
}
