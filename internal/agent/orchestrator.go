// Package agent orchestrates question answering over the knowledge base.
//
// An Ask loads the session's history, lets the model call the retrieval
// tool for up to a bounded number of turns, and appends the exchange back
// to the session. Model selection goes through a fixed registry; unknown
// selectors fall back to the default model rather than failing the request.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/onlinetcs/support-assistant/internal/config"
	"github.com/onlinetcs/support-assistant/internal/session"
)

// DefaultMaxTurns bounds the tool-calling loop per request.
const DefaultMaxTurns = 5

// SessionStore is the session persistence the orchestrator needs.
type SessionStore interface {
	Get(ctx context.Context, appName, userID, sessionID string) (session.Session, error)
	AppendTurns(ctx context.Context, appName, userID, sessionID string, turns ...session.Turn) error
}

// generateFunc matches genkit.Generate with the instance bound.
type generateFunc func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)

// Orchestrator answers user questions.
//
// Orchestrator is safe for concurrent use by multiple goroutines.
type Orchestrator struct {
	sessions     SessionStore
	tool         ai.ToolRef
	models       map[string]config.ModelConfig
	defaultModel string
	appName      string
	maxTurns     int
	generate     generateFunc
	logger       *slog.Logger
}

// New creates an Orchestrator bound to a Genkit instance.
func New(g *genkit.Genkit, sessions SessionStore, tool ai.ToolRef, cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if tool == nil {
		return nil, fmt.Errorf("retrieval tool is required")
	}
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if _, ok := cfg.Models[cfg.DefaultModel]; !ok {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownModel, cfg.DefaultModel)
	}
	if logger == nil {
		logger = slog.Default()
	}

	maxTurns := cfg.MaxTurns
	if maxTurns < 1 {
		maxTurns = DefaultMaxTurns
	}

	return &Orchestrator{
		sessions:     sessions,
		tool:         tool,
		models:       cfg.Models,
		defaultModel: cfg.DefaultModel,
		appName:      cfg.AppName,
		maxTurns:     maxTurns,
		generate: func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
			return genkit.Generate(ctx, g, opts...)
		},
		logger: logger,
	}, nil
}

// ResolveModel maps a caller-facing selector to a registered model name.
// Empty or unknown selectors resolve to the default model; unknown ones are
// logged so a typo in a client does not silently change behavior.
func (o *Orchestrator) ResolveModel(selector string) string {
	if selector == "" {
		return o.models[o.defaultModel].Model
	}
	mc, ok := o.models[selector]
	if !ok {
		o.logger.Warn("unknown model selector, using default",
			"selector", selector, "default", o.defaultModel)
		return o.models[o.defaultModel].Model
	}
	return mc.Model
}

// Ask answers one question within a session.
//
// The session must exist: Ask returns session.ErrSessionNotFound rather
// than creating one implicitly. On success the user question and the
// model's answer are appended to the session history.
func (o *Orchestrator) Ask(ctx context.Context, userID, sessionID, modelSelector, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is empty")
	}

	sess, err := o.sessions.Get(ctx, o.appName, userID, sessionID)
	if err != nil {
		return "", err
	}

	modelName := o.ResolveModel(modelSelector)

	messages := make([]*ai.Message, 0, len(sess.History)+1)
	for _, turn := range sess.History {
		switch turn.Role {
		case session.RoleModel:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(question)))

	resp, err := o.generate(ctx,
		ai.WithModelName(modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(o.tool),
		ai.WithMaxTurns(o.maxTurns),
	)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", ErrNoFinalResponse
	}

	if err := o.sessions.AppendTurns(ctx, o.appName, userID, sessionID,
		session.Turn{Role: session.RoleUser, Content: question},
		session.Turn{Role: session.RoleModel, Content: answer},
	); err != nil {
		// The user already has their answer; losing one history write is
		// better than failing the request.
		o.logger.Warn("failed to append session history",
			"user", userID, "session", sessionID, "error", err)
	}

	o.logger.Info("question answered",
		"user", userID, "session", sessionID, "model", modelName,
		"history_turns", len(sess.History))
	return answer, nil
}
