package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onlinetcs/support-assistant/db"
	"github.com/onlinetcs/support-assistant/internal/agent"
	"github.com/onlinetcs/support-assistant/internal/chunk"
	"github.com/onlinetcs/support-assistant/internal/config"
	"github.com/onlinetcs/support-assistant/internal/extract"
	"github.com/onlinetcs/support-assistant/internal/ingest"
	"github.com/onlinetcs/support-assistant/internal/knowledge"
	"github.com/onlinetcs/support-assistant/internal/log"
	"github.com/onlinetcs/support-assistant/internal/rag"
	"github.com/onlinetcs/support-assistant/internal/session"
)

// embedRequestsPerSecond bounds calls to the embedding API during ingestion.
const embedRequestsPerSecond = 5

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.New(log.Config{})
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Embedder, err = knowledge.NewEmbedder(embedder, cfg.EmbeddingDimension, embedRequestsPerSecond, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a.Documents, err = knowledge.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	a.Sessions, err = session.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	a.Retriever, err = rag.NewRetriever(a.Documents, a.Embedder, cfg.RetrievalTopK, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	a.Tool, err = rag.Register(g, a.Retriever)
	if err != nil {
		return nil, fmt.Errorf("registering retrieval tool: %w", err)
	}

	a.Orchestrator, err = agent.New(g, a.Sessions, a.Tool, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	a.Pipeline, err = ingest.NewPipeline(
		a.Documents,
		extract.New(cfg.FetchTimeout, logger),
		chunk.New(chunk.WithSize(cfg.ChunkSize), chunk.WithOverlap(cfg.ChunkOverlap)),
		a.Embedder,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	a.Workers, err = ingest.NewPool(a.Pipeline, cfg.IngestWorkers, cfg.IngestQueueLen, logger)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	// Workers outlive the setup context; Close cancels them.
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.Workers.Start(workerCtx)

	return a, nil
}

// provideGenkit initializes Genkit with the Gemini plugin, plus the OpenAI
// compatibility plugin when a key is present so the openai model registry
// entries resolve.
func provideGenkit(ctx context.Context, logger log.Logger) (*genkit.Genkit, error) {
	plugins := []api.Plugin{&googlegenai.GoogleAI{}}
	if os.Getenv("OPENAI_API_KEY") != "" {
		plugins = append(plugins, &openai.OpenAI{})
	}

	g := genkit.Init(ctx, genkit.WithPlugins(plugins...))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}

	logger.Debug("genkit initialized", "plugins", len(plugins))
	return g, nil
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
