package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/onlinetcs/support-assistant/internal/config"
	"github.com/onlinetcs/support-assistant/internal/log"
	"github.com/onlinetcs/support-assistant/internal/rag"
	"github.com/onlinetcs/support-assistant/internal/session"
)

type fakeSessions struct {
	sess      session.Session
	getErr    error
	appendErr error
	appended  []session.Turn
}

func (f *fakeSessions) Get(ctx context.Context, appName, userID, sessionID string) (session.Session, error) {
	if f.getErr != nil {
		return session.Session{}, f.getErr
	}
	return f.sess, nil
}

func (f *fakeSessions) AppendTurns(ctx context.Context, appName, userID, sessionID string, turns ...session.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, turns...)
	return nil
}

// capturedGenerate records the options passed to generate and returns a
// canned response.
type capturedGenerate struct {
	optCount int
	response string
	err      error
	calls    int
}

func (c *capturedGenerate) fn(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	c.calls++
	c.optCount = len(opts)
	if c.err != nil {
		return nil, c.err
	}
	return &ai.ModelResponse{
		Message: ai.NewModelMessage(ai.NewTextPart(c.response)),
	}, nil
}

func testOrchestrator(sessions SessionStore, gen generateFunc) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		tool:     ai.ToolName(rag.ToolName),
		models: map[string]config.ModelConfig{
			"gemini": {Model: "googleai/gemini-2.5-flash"},
			"openai": {Model: "openai/gpt-4o"},
		},
		defaultModel: "gemini",
		appName:      config.DefaultAppName,
		maxTurns:     DefaultMaxTurns,
		generate:     gen,
		logger:       log.NewNop(),
	}
}

func TestAskSuccess(t *testing.T) {
	sessions := &fakeSessions{sess: session.Session{SessionID: "s1"}}
	gen := &capturedGenerate{response: "Tuition is due on the first."}
	o := testOrchestrator(sessions, gen.fn)

	answer, err := o.Ask(context.Background(), "u1", "s1", "", "when is tuition due")
	if err != nil {
		t.Fatalf("Ask() unexpected error: %v", err)
	}
	if answer != "Tuition is due on the first." {
		t.Errorf("answer = %q", answer)
	}
	if gen.calls != 1 {
		t.Errorf("generate called %d times, want 1", gen.calls)
	}

	// Both sides of the exchange land in history.
	if len(sessions.appended) != 2 {
		t.Fatalf("appended %d turns, want 2", len(sessions.appended))
	}
	if sessions.appended[0].Role != session.RoleUser || sessions.appended[0].Content != "when is tuition due" {
		t.Errorf("first appended turn = %+v", sessions.appended[0])
	}
	if sessions.appended[1].Role != session.RoleModel || sessions.appended[1].Content != answer {
		t.Errorf("second appended turn = %+v", sessions.appended[1])
	}
}

func TestAskSessionNotFound(t *testing.T) {
	sessions := &fakeSessions{getErr: session.ErrSessionNotFound}
	gen := &capturedGenerate{response: "unused"}
	o := testOrchestrator(sessions, gen.fn)

	_, err := o.Ask(context.Background(), "u1", "missing", "", "a question")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Ask() error = %v, want ErrSessionNotFound", err)
	}
	if gen.calls != 0 {
		t.Errorf("generate called %d times for missing session, want 0", gen.calls)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	o := testOrchestrator(&fakeSessions{}, (&capturedGenerate{}).fn)
	if _, err := o.Ask(context.Background(), "u1", "s1", "", "  "); err == nil {
		t.Error("Ask() with blank question expected error")
	}
}

func TestAskNoFinalResponse(t *testing.T) {
	sessions := &fakeSessions{}
	gen := &capturedGenerate{response: "   "}
	o := testOrchestrator(sessions, gen.fn)

	_, err := o.Ask(context.Background(), "u1", "s1", "", "a question")
	if !errors.Is(err, ErrNoFinalResponse) {
		t.Errorf("Ask() error = %v, want ErrNoFinalResponse", err)
	}
	if len(sessions.appended) != 0 {
		t.Errorf("history written despite empty response: %+v", sessions.appended)
	}
}

func TestAskGenerateError(t *testing.T) {
	sessions := &fakeSessions{}
	gen := &capturedGenerate{err: errors.New("model unavailable")}
	o := testOrchestrator(sessions, gen.fn)

	_, err := o.Ask(context.Background(), "u1", "s1", "", "a question")
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("Ask() error = %v, want wrapped generate failure", err)
	}
}

func TestAskAppendFailureStillAnswers(t *testing.T) {
	sessions := &fakeSessions{appendErr: errors.New("connection reset")}
	gen := &capturedGenerate{response: "the answer"}
	o := testOrchestrator(sessions, gen.fn)

	answer, err := o.Ask(context.Background(), "u1", "s1", "", "a question")
	if err != nil {
		t.Fatalf("Ask() unexpected error: %v", err)
	}
	if answer != "the answer" {
		t.Errorf("answer = %q", answer)
	}
}

func TestResolveModel(t *testing.T) {
	o := testOrchestrator(&fakeSessions{}, (&capturedGenerate{}).fn)

	tests := []struct {
		name     string
		selector string
		want     string
	}{
		{name: "empty uses default", selector: "", want: "googleai/gemini-2.5-flash"},
		{name: "registered", selector: "openai", want: "openai/gpt-4o"},
		{name: "unknown falls back", selector: "claude", want: "googleai/gemini-2.5-flash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.ResolveModel(tt.selector); got != tt.want {
				t.Errorf("ResolveModel(%q) = %q, want %q", tt.selector, got, tt.want)
			}
		})
	}
}

func TestAskIncludesHistory(t *testing.T) {
	sessions := &fakeSessions{sess: session.Session{
		History: []session.Turn{
			{Role: session.RoleUser, Content: "earlier question"},
			{Role: session.RoleModel, Content: "earlier answer"},
		},
	}}
	gen := &capturedGenerate{response: "follow-up answer"}
	o := testOrchestrator(sessions, gen.fn)

	if _, err := o.Ask(context.Background(), "u1", "s1", "", "follow-up"); err != nil {
		t.Fatalf("Ask() unexpected error: %v", err)
	}
	// model + system + messages + tools + max turns
	if gen.optCount != 5 {
		t.Errorf("generate received %d options, want 5", gen.optCount)
	}
}
