// Package ingest runs the document ingestion pipeline.
//
// A run moves a document through FETCHING, CHUNKING, EMBEDDING and SAVING
// before landing on COMPLETED, persisting each transition so operators can
// watch progress. Any stage failure funnels into a single FAILED write with
// a human-readable reason.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/onlinetcs/support-assistant/internal/knowledge"
)

// Failure reasons stored on the document so users can see why a run died.
const (
	ReasonNoText   = "Failed to extract text from PDF (empty content)."
	ReasonNoChunks = "Text was extracted but resulted in no chunks."
)

// Store is the document persistence the pipeline needs.
type Store interface {
	Document(ctx context.Context, id uuid.UUID) (knowledge.Document, error)
	BeginIngestion(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status knowledge.Status) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	CompleteIngestion(ctx context.Context, id uuid.UUID, chunks []knowledge.Chunk, elapsedMS int64) error
}

// Extractor turns a document source into plain text.
type Extractor interface {
	Extract(ctx context.Context, source string) (string, error)
}

// Splitter splits text into chunks.
type Splitter interface {
	Split(text string) []string
}

// Embedder embeds chunk texts for storage.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([]pgvector.Vector, error)
}

// Pipeline executes ingestion runs.
//
// Pipeline is safe for concurrent use; the per-document claim in
// Store.BeginIngestion serializes runs on the same document.
type Pipeline struct {
	store     Store
	extractor Extractor
	splitter  Splitter
	embedder  Embedder
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(store Store, extractor Extractor, splitter Splitter, embedder Embedder, logger *slog.Logger) (*Pipeline, error) {
	if store == nil || extractor == nil || splitter == nil || embedder == nil {
		return nil, fmt.Errorf("store, extractor, splitter and embedder are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		logger:    logger,
	}, nil
}

// Run ingests one document end to end.
//
// Returns knowledge.ErrAlreadyProcessing without touching the document when
// another run owns it, and knowledge.ErrDocumentNotFound for unknown IDs.
// Stage failures are recorded on the document and returned.
func (p *Pipeline) Run(ctx context.Context, id uuid.UUID) error {
	start := time.Now()

	doc, err := p.store.Document(ctx, id)
	if err != nil {
		return err
	}

	if err := p.store.BeginIngestion(ctx, id); err != nil {
		return err
	}

	p.logger.Info("ingestion started", "document_id", id, "display_name", doc.DisplayName)

	chunks, err := p.process(ctx, doc)
	if err != nil {
		p.fail(ctx, id, err)
		return err
	}

	elapsed := time.Since(start).Milliseconds()
	if err := p.store.CompleteIngestion(ctx, id, chunks, elapsed); err != nil {
		p.fail(ctx, id, fmt.Errorf("saving chunks: %w", err))
		return err
	}

	p.logger.Info("ingestion completed",
		"document_id", id, "chunks", len(chunks), "elapsed_ms", elapsed)
	return nil
}

// process runs the fetch, chunk and embed stages, persisting each
// transition before doing the stage's work.
func (p *Pipeline) process(ctx context.Context, doc knowledge.Document) ([]knowledge.Chunk, error) {
	// BeginIngestion already moved the document to FETCHING.
	// Every extraction failure, fetch errors included, lands on the same
	// stored reason; the underlying cause goes to the log.
	text, err := p.extractor.Extract(ctx, doc.SourceURL)
	if err != nil {
		p.logger.Warn("text extraction failed",
			"document_id", doc.ID, "source", doc.SourceURL, "error", err)
		return nil, errors.New(ReasonNoText)
	}

	if err := p.store.SetStatus(ctx, doc.ID, knowledge.StatusChunking); err != nil {
		return nil, err
	}
	pieces := p.splitter.Split(text)
	if len(pieces) == 0 {
		return nil, errors.New(ReasonNoChunks)
	}

	if err := p.store.SetStatus(ctx, doc.ID, knowledge.StatusEmbedding); err != nil {
		return nil, err
	}
	vecs, err := p.embedder.EmbedDocuments(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vecs) != len(pieces) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vecs), len(pieces))
	}

	if err := p.store.SetStatus(ctx, doc.ID, knowledge.StatusSaving); err != nil {
		return nil, err
	}

	chunks := make([]knowledge.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = knowledge.Chunk{
			DocumentID: doc.ID,
			Seq:        i,
			Content:    piece,
			Embedding:  vecs[i],
		}
	}
	return chunks, nil
}

// fail records the failure on the document. The write uses a context that
// survives cancellation of the run, otherwise a canceled run would strand
// the document in an in-flight status.
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.store.MarkFailed(writeCtx, id, cause.Error()); err != nil {
		// Nothing left to do but scream: the document is stuck in an
		// in-flight status until an operator intervenes.
		p.logger.Error("failed to record ingestion failure",
			"document_id", id, "cause", cause, "error", err)
		return
	}

	p.logger.Warn("ingestion failed", "document_id", id, "reason", cause)
}
