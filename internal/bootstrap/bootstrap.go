// Package bootstrap wires the object graph shared by the api and worker
// binaries.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kirillkom/clinical-rag/internal/config"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
	"github.com/kirillkom/clinical-rag/internal/core/usecase"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/embedding/hashed"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/fetch"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/index/memory"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Search ports.SearchService
	Ingest ports.IngestService

	// Async pipeline collaborators; nil when ASYNC_INGEST_ENABLED is off.
	Upload  ports.UploadService
	Jobs    ports.JobReader
	Process ports.JobProcessor
	Queue   ports.MessageQueue

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	embedder := hashed.New(cfg.EmbeddingDimensions)
	store := memory.NewStore(embedder)
	search := usecase.NewSearchUseCase(store, cfg.SearchDefaultAlpha)

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	fetcher := fetch.New(
		fetch.WithClient(&http.Client{Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second}),
		fetch.WithExecutor(executor),
	)

	// Strategy order: most specific format first, plaintext as the
	// terminal fallback.
	strategies := []ports.ExtractorStrategy{
		pdf.New(),
		xlsx.New(),
		htmltext.New(),
		plaintext.New(),
	}

	ingest := usecase.NewIngestUseCase(
		strategies,
		chunking.NewChunker(),
		fetcher,
		search,
		cfg.ChunkTargetTokens,
		cfg.ChunkOverlapTokens,
	)

	app := &App{
		Config: cfg,
		Search: search,
		Ingest: ingest,
	}

	if !cfg.AsyncIngestEnabled {
		return app, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	jobs := postgres.NewJobRepository(db)
	if err := jobs.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	app.Upload = usecase.NewUploadUseCase(jobs, storage, queue)
	app.Jobs = jobs
	app.Process = usecase.NewProcessJobUseCase(jobs, storage, ingest)
	app.Queue = queue
	app.closeFn = func() {
		queue.Close()
		_ = db.Close()
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
