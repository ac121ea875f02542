package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Gemini task types. Query and document embeddings live in the same vector
// space but are optimized for their role in retrieval.
const (
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// maxEmbedBatch is the largest input list the embedding API accepts per call.
const maxEmbedBatch = 100

// Embedder wraps a Genkit embedder with task-typed requests, fixed output
// dimensionality and client-side rate limiting.
//
// Embedder is safe for concurrent use by multiple goroutines.
type Embedder struct {
	embedder ai.Embedder
	limiter  *rate.Limiter
	dim      int32
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder producing dim-dimensional vectors.
// requestsPerSecond bounds calls to the embedding API; bursts of up to
// requestsPerSecond calls are allowed.
func NewEmbedder(embedder ai.Embedder, dim int, requestsPerSecond float64, logger *slog.Logger) (*Embedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dim < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, int(requestsPerSecond))),
		dim:      int32(dim),
		logger:   logger,
	}, nil
}

// EmbedQuery embeds a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) (pgvector.Vector, error) {
	vecs, err := e.embed(ctx, []string{query}, taskRetrievalQuery)
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

// EmbedDocuments embeds document chunks for storage. The input is split into
// API-sized batches; results keep input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vecs := make([]pgvector.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch, err := e.embed(ctx, texts[start:end], taskRetrievalDocument)
		if err != nil {
			return nil, fmt.Errorf("embedding batch starting at %d: %w", start, err)
		}
		vecs = append(vecs, batch...)
	}
	return vecs, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string, taskType string) ([]pgvector.Vector, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	input := make([]*ai.Document, len(texts))
	for i, t := range texts {
		input[i] = ai.DocumentFromText(t, nil)
	}

	dim := e.dim
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: input,
		Options: &genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: &dim,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %d texts: %v", ErrExternalService, len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			ErrEmptyEmbedding, len(resp.Embeddings), len(texts))
	}

	vecs := make([]pgvector.Vector, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyEmbedding, i)
		}
		vecs[i] = pgvector.NewVector(emb.Embedding)
	}

	e.logger.Debug("embedded texts", "count", len(texts), "task_type", taskType)
	return vecs, nil
}
