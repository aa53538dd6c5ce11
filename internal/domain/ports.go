package domain

import (
	"context"
	"time"
)

// ModelClient is the only capability the engine needs from an LLM provider.
// Failures must be (or wrap) a transient or fatal provider error.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelClientFunc adapts a function to ModelClient.
type ModelClientFunc func(ctx context.Context, prompt string) (string, error)

func (f ModelClientFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// SessionSnapshot is the serializable state of a quiz session.
type SessionSnapshot struct {
	ID        string         `json:"id"`
	Quiz      Quiz           `json:"quiz"`
	State     SessionState   `json:"state"`
	Answers   []AnswerRecord `json:"answers"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SessionStore keeps session snapshots between HTTP requests.
// Get returns ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Get(ctx context.Context, id string) (*SessionSnapshot, error)
	Save(ctx context.Context, snapshot *SessionSnapshot) error
	Delete(ctx context.Context, id string) error
}
