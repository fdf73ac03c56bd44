package audit

import (
	"context"
	"time"
)

// LoginAttemptRecorded is published after an attempt has been persisted.
type LoginAttemptRecorded struct {
	EventID    string       `json:"event_id"`
	RecordedAt time.Time    `json:"recorded_at"`
	Attempt    LoginAttempt `json:"attempt"`
}

// Handler reacts to recorded login attempts.
type Handler interface {
	HandleLoginAttemptRecorded(ctx context.Context, event LoginAttemptRecorded) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event LoginAttemptRecorded) error

// HandleLoginAttemptRecorded calls f(ctx, event).
func (f HandlerFunc) HandleLoginAttemptRecorded(ctx context.Context, event LoginAttemptRecorded) error {
	return f(ctx, event)
}
