package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// documentCols is the standard SELECT column list for scanDocuments.
const documentCols = `id, display_name, source_url, status, status_message, processing_time_ms, created_at, updated_at`

// Store manages documents and their embedded chunks in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a document Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// CreateDocument registers a new document in StatusPending.
// Returns ErrDuplicateName if the display name is already taken.
func (s *Store) CreateDocument(ctx context.Context, displayName, sourceURL string) (Document, error) {
	if displayName == "" {
		return Document{}, fmt.Errorf("display name is required")
	}
	if sourceURL == "" {
		return Document{}, fmt.Errorf("source URL is required")
	}

	row := s.pool.QueryRow(ctx, `INSERT INTO documents (display_name, source_url, status)
		VALUES ($1, $2, $3)
		RETURNING `+documentCols,
		displayName, sourceURL, StatusPending)

	doc, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return Document{}, fmt.Errorf("%w: %q", ErrDuplicateName, displayName)
		}
		return Document{}, fmt.Errorf("creating document: %w", err)
	}

	s.logger.Debug("created document", "id", doc.ID, "display_name", displayName)
	return doc, nil
}

// Document fetches a document by ID.
func (s *Store) Document(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentCols+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return Document{}, fmt.Errorf("fetching document: %w", err)
	}
	return doc, nil
}

// DocumentByName fetches a document by its display name.
func (s *Store) DocumentByName(ctx context.Context, displayName string) (Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentCols+` FROM documents WHERE display_name = $1`, displayName)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: %q", ErrDocumentNotFound, displayName)
		}
		return Document{}, fmt.Errorf("fetching document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+documentCols+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// DeleteDocument removes a document. Its chunks go with it via
// ON DELETE CASCADE. Returns ErrDocumentNotFound if the ID is unknown.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	s.logger.Debug("deleted document", "id", id)
	return nil
}

// SetStatus records a lifecycle transition.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	return s.setStatus(ctx, s.pool, id, status, "", nil)
}

// MarkFailed moves a document to StatusFailed with a human-readable reason.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.setStatus(ctx, s.pool, id, StatusFailed, reason, nil)
}

// setStatus writes the status, message and duration together. Every
// non-completed transition passes a nil duration, which keeps
// processing_time_ms set only while the document is COMPLETED.
func (s *Store) setStatus(ctx context.Context, q querier, id uuid.UUID, status Status, message string, elapsedMS *int64) error {
	tag, err := q.Exec(ctx, `UPDATE documents
		SET status = $2, status_message = $3, processing_time_ms = $4, updated_at = now()
		WHERE id = $1`,
		id, status, message, elapsedMS)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return nil
}

// BeginIngestion claims a document for a pipeline run by moving it to
// StatusFetching. The claim is a single compare-and-set so two concurrent
// runs can never both own the same document: the loser gets
// ErrAlreadyProcessing.
func (s *Store) BeginIngestion(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE documents
		SET status = $2, status_message = '', processing_time_ms = NULL, updated_at = now()
		WHERE id = $1 AND status NOT IN ($3, $4, $5, $6)`,
		id, StatusFetching,
		StatusFetching, StatusChunking, StatusEmbedding, StatusSaving)
	if err != nil {
		return fmt.Errorf("claiming document: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing document from a contested one.
	if _, err := s.Document(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrAlreadyProcessing, id)
}

// ResetForReingest drops a document's chunks and moves it to
// StatusPendingReingest in one transaction, so a crash between the two
// steps cannot leave stale chunks behind a pending status.
func (s *Store) ResetForReingest(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if err := s.setStatus(ctx, tx, id, StatusPendingReingest, "", nil); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("reset document for re-ingestion", "id", id)
	return nil
}

// CompleteIngestion persists the chunks and moves the document to
// StatusCompleted in one transaction, recording the run duration and
// clearing any failure message. Existing chunks for the document are
// replaced, which makes completion idempotent for re-ingestion runs.
func (s *Store) CompleteIngestion(ctx context.Context, id uuid.UUID, chunks []Chunk, elapsedMS int64) error {
	if elapsedMS < 0 {
		return fmt.Errorf("elapsed must be non-negative, got %d", elapsedMS)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("deleting existing chunks: %w", err)
	}

	rows := make([][]any, len(chunks))
	for i, c := range chunks {
		rows[i] = []any{id, c.Seq, c.Content, c.Embedding}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"document_chunks"},
		[]string{"document_id", "seq", "content", "embedding"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("inserting chunks: %w", err)
	}

	if err := s.setStatus(ctx, tx, id, StatusCompleted, "", &elapsedMS); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("completed ingestion", "id", id, "chunks", len(chunks), "elapsed_ms", elapsedMS)
	return nil
}

// CountChunks returns the number of stored chunks for a document.
func (s *Store) CountChunks(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM document_chunks WHERE document_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// NearestChunks returns the topK chunks closest to the query embedding by
// cosine distance, most similar first. Only chunks of completed documents
// participate.
func (s *Store) NearestChunks(ctx context.Context, embedding pgvector.Vector, topK int) ([]ScoredChunk, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	rows, err := s.pool.Query(ctx, `SELECT
			c.id, c.document_id, c.seq, c.content, d.display_name,
			1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.status = $2
		ORDER BY c.embedding <=> $1
		LIMIT $3`,
		embedding, StatusCompleted, topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var sc ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Seq, &sc.Content,
			&sc.DocumentName, &sc.Similarity); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return results, nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.DisplayName, &doc.SourceURL,
		&doc.Status, &doc.StatusMessage, &doc.ProcessingTimeMS,
		&doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

func scanDocuments(rows pgx.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	return docs, nil
}
