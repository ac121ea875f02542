// Package rag exposes the knowledge base to the model as a retrieval tool.
//
// The tool embeds the model's query, finds the nearest chunks and joins
// them into a single context block. Failures are reported inside the tool
// result rather than as Go errors, so the model can tell the user retrieval
// broke instead of the whole request dying.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/pgvector/pgvector-go"

	"github.com/onlinetcs/support-assistant/internal/knowledge"
)

// ToolName is the Genkit tool name for retrieval.
const ToolName = "retrieve_documents"

// NoInformationFound is returned as context when no chunks match.
// The system prompt tells the model to treat it as "I don't know".
const NoInformationFound = "No information found."

// Separator joins retrieved chunks into one context block.
const Separator = "\n---\n"

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 6

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Input is the model-facing tool input.
type Input struct {
	Query string `json:"query" jsonschema_description:"The user's question to search the knowledge base for"`
}

// Result is the model-facing tool output.
type Result struct {
	Status           string `json:"status"`
	RetrievedContext string `json:"retrieved_context,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// SearchStore finds the chunks nearest to a query embedding.
type SearchStore interface {
	NearestChunks(ctx context.Context, embedding pgvector.Vector, topK int) ([]knowledge.ScoredChunk, error)
}

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) (pgvector.Vector, error)
}

// Retriever answers retrieval tool calls.
//
// Retriever is safe for concurrent use by multiple goroutines.
type Retriever struct {
	store    SearchStore
	embedder QueryEmbedder
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. topK <= 0 selects DefaultTopK.
func NewRetriever(store SearchStore, embedder QueryEmbedder, topK int, logger *slog.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embedder: embedder, topK: topK, logger: logger}, nil
}

// Retrieve runs one retrieval. The returned Result always has StatusSuccess
// or StatusError; an empty knowledge base is a success with
// NoInformationFound as context.
func (r *Retriever) Retrieve(ctx context.Context, query string) Result {
	if strings.TrimSpace(query) == "" {
		return Result{Status: StatusError, ErrorMessage: "query is empty"}
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed", "query", query, "error", err)
		return Result{
			Status:       StatusError,
			ErrorMessage: fmt.Sprintf("embedding query: %v", err),
		}
	}

	hits, err := r.store.NearestChunks(ctx, vec, r.topK)
	if err != nil {
		r.logger.Warn("chunk search failed", "query", query, "error", err)
		return Result{
			Status:       StatusError,
			ErrorMessage: fmt.Sprintf("searching knowledge base: %v", err),
		}
	}

	if len(hits) == 0 {
		r.logger.Debug("retrieval found nothing", "query", query)
		return Result{Status: StatusSuccess, RetrievedContext: NoInformationFound}
	}

	parts := make([]string, len(hits))
	for i, hit := range hits {
		parts[i] = hit.Content
	}

	r.logger.Debug("retrieval succeeded", "query", query, "hits", len(hits))
	return Result{
		Status:           StatusSuccess,
		RetrievedContext: strings.Join(parts, Separator),
	}
}

// Register defines the retrieval tool with Genkit.
//
// The handler never returns a Go error: retrieval failures are folded into
// the Result so the model sees them instead of the request aborting.
func Register(g *genkit.Genkit, r *Retriever) (ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if r == nil {
		return nil, fmt.Errorf("retriever is required")
	}

	tool := genkit.DefineTool(g, ToolName,
		"Search the institution's knowledge base for information relevant to the user's question. "+
			"Returns: the most relevant document excerpts joined into one context block, or "+
			"\""+NoInformationFound+"\" when nothing matches. "+
			"Always call this before answering a factual question about the institution.",
		func(ctx *ai.ToolContext, input Input) (Result, error) {
			return r.Retrieve(ctx, input.Query), nil
		})

	return tool, nil
}
