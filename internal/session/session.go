// Package session persists conversation history in PostgreSQL.
//
// Sessions are keyed by (app name, user ID, session ID) so one deployment
// can serve several frontends without history bleeding across them. History
// is stored as a JSONB array of turns and appended atomically.
package session

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a session with the same key already exists.
	ErrSessionExists = errors.New("session already exists")
)

// Turn roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is a stored conversation.
type Session struct {
	AppName   string
	UserID    string
	SessionID string
	History   []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}
