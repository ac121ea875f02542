package knowledge

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// VectorDimension is the dimensionality of chunk embeddings.
// Must match the vector(N) column in db/migrations.
const VectorDimension = 768

// Status is the ingestion lifecycle state of a document.
//
// Transitions: Pending -> Fetching -> Chunking -> Embedding -> Saving ->
// Completed. Any in-flight state may move to Failed. A re-ingest resets a
// document to PendingReingest before the pipeline runs again.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusFetching        Status = "FETCHING"
	StatusChunking        Status = "CHUNKING"
	StatusEmbedding       Status = "EMBEDDING"
	StatusSaving          Status = "SAVING"
	StatusCompleted       Status = "COMPLETED"
	StatusPendingReingest Status = "PENDING_REINGEST"
	StatusFailed          Status = "FAILED"
)

// Terminal reports whether no pipeline run is currently implied by the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// InFlight reports whether a pipeline run owns the document right now.
func (s Status) InFlight() bool {
	switch s {
	case StatusFetching, StatusChunking, StatusEmbedding, StatusSaving:
		return true
	}
	return false
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusFetching, StatusChunking, StatusEmbedding,
		StatusSaving, StatusCompleted, StatusPendingReingest, StatusFailed:
		return true
	}
	return false
}

// Document is a registered knowledge source.
type Document struct {
	ID            uuid.UUID
	DisplayName   string
	SourceURL     string
	Status        Status
	StatusMessage string
	// ProcessingTimeMS is the duration of the last successful ingestion
	// run. Non-nil only in StatusCompleted.
	ProcessingTimeMS *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Chunk is one embedded slice of a document's text.
// Seq is the 0-based position of the chunk within its document.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Seq        int
	Content    string
	Embedding  pgvector.Vector
}

// ScoredChunk is a retrieval hit with its cosine similarity to the query,
// in [-1, 1] with higher meaning closer.
type ScoredChunk struct {
	Chunk
	DocumentName string
	Similarity   float64
}
