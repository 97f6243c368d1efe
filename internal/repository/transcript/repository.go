package transcript

import (
	"context"
	"time"

	"coursemart/internal/domain"
)

type Repository interface {
	// AppendMessage stores msg, creating the session row on first use.
	AppendMessage(ctx context.Context, sessionID, userID string, msg domain.ChatMessage) error
	// ListMessages returns the newest limit messages, oldest first.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	// SessionOwner returns the user id recorded for the session, "" when the
	// session has none yet, or domain.ErrNotFound.
	SessionOwner(ctx context.Context, sessionID string) (string, error)
	EndSession(ctx context.Context, sessionID string, at time.Time) error
	CreateHandoff(ctx context.Context, h domain.Handoff) error
}
