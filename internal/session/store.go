package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionCols = `app_name, user_id, session_id, history, created_at, updated_at`

// Store manages session persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a session Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create starts a new empty session.
// Returns ErrSessionExists when the key is already taken.
func (s *Store) Create(ctx context.Context, appName, userID, sessionID string) (Session, error) {
	if appName == "" || userID == "" || sessionID == "" {
		return Session{}, fmt.Errorf("app name, user ID and session ID are required")
	}

	row := s.pool.QueryRow(ctx, `INSERT INTO sessions (app_name, user_id, session_id)
		VALUES ($1, $2, $3)
		RETURNING `+sessionCols,
		appName, userID, sessionID)

	sess, err := scanSession(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return Session{}, fmt.Errorf("%w: %s/%s/%s", ErrSessionExists, appName, userID, sessionID)
		}
		return Session{}, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "app", appName, "user", userID, "session", sessionID)
	return sess, nil
}

// Get fetches a session with its full history.
func (s *Store) Get(ctx context.Context, appName, userID, sessionID string) (Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3`,
		appName, userID, sessionID)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, fmt.Errorf("%w: %s/%s/%s", ErrSessionNotFound, appName, userID, sessionID)
		}
		return Session{}, fmt.Errorf("fetching session: %w", err)
	}
	return sess, nil
}

// Delete removes a session and its history.
func (s *Store) Delete(ctx context.Context, appName, userID, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3`,
		appName, userID, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s/%s", ErrSessionNotFound, appName, userID, sessionID)
	}

	s.logger.Debug("deleted session", "app", appName, "user", userID, "session", sessionID)
	return nil
}

// AppendTurns appends turns to a session's history atomically. The JSONB
// concatenation happens server-side, so two concurrent appends interleave
// instead of overwriting each other.
func (s *Store) AppendTurns(ctx context.Context, appName, userID, sessionID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshaling turns: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE sessions
		SET history = history || $4::jsonb, updated_at = now()
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3`,
		appName, userID, sessionID, payload)
	if err != nil {
		return fmt.Errorf("appending turns: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s/%s", ErrSessionNotFound, appName, userID, sessionID)
	}
	return nil
}

// ListForUser returns a user's sessions, most recently active first.
func (s *Store) ListForUser(ctx context.Context, appName, userID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionCols+` FROM sessions
		WHERE app_name = $1 AND user_id = $2
		ORDER BY updated_at DESC`,
		appName, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var sess Session
	var history []byte
	if err := row.Scan(&sess.AppName, &sess.UserID, &sess.SessionID,
		&history, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal(history, &sess.History); err != nil {
		return Session{}, fmt.Errorf("decoding history: %w", err)
	}
	return sess, nil
}
