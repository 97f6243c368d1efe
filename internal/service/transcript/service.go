// Package transcript is the backend of the chat widget's transcript store.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursemart/internal/domain"
	transcriptrepo "coursemart/internal/repository/transcript"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Service struct {
	repo   transcriptrepo.Repository
	logger logrus.FieldLogger
	now    func() time.Time
	newID  func() string
}

func New(repo transcriptrepo.Repository, logger logrus.FieldLogger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.WithField("service", "transcript"),
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
}

// FetchMessages returns up to limit of the session's latest messages, oldest first.
func (s *Service) FetchMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId required", domain.ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return s.repo.ListMessages(ctx, sessionID, limit)
}

func (s *Service) SaveMessage(ctx context.Context, in domain.TranscriptEntry) (*domain.ChatMessage, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId required", domain.ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: text required", domain.ErrInvalidInput)
	}
	ts := in.TS
	if ts <= 0 {
		ts = s.now().UnixMilli()
	}
	msg := domain.ChatMessage{ID: s.newID(), Role: in.Role, Text: in.Text, TS: ts}
	if err := s.repo.AppendMessage(ctx, sessionID, strings.TrimSpace(in.UserID), msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &msg, nil
}

// Authorize reports whether userID may act on the session. Sessions owned by
// someone else look like missing ones. Unknown and unowned sessions are open to
// any caller; the first saved message claims them.
func (s *Service) Authorize(ctx context.Context, sessionID, userID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId required", domain.ErrInvalidInput)
	}
	owner, err := s.repo.SessionOwner(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("session owner: %w", err)
	case owner != "" && owner != userID:
		s.logger.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID}).Warn("session access denied")
		return domain.ErrNotFound
	}
	return nil
}

// EndSession marks the session ended. The transcript itself is kept.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: sessionId required", domain.ErrInvalidInput)
	}
	if err := s.repo.EndSession(ctx, sessionID, s.now().UTC()); err != nil {
		return err
	}
	s.logger.WithField("session_id", sessionID).Info("chat session ended")
	return nil
}

func (s *Service) CreateHandoff(ctx context.Context, sessionID, reason string) (*domain.Handoff, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId required", domain.ErrInvalidInput)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "requested"
	}
	h := domain.Handoff{ID: s.newID(), SessionID: sessionID, Reason: reason, CreatedAt: s.now().UTC()}
	if err := s.repo.CreateHandoff(ctx, h); err != nil {
		return nil, fmt.Errorf("create handoff: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"session_id": sessionID, "reason": reason}).Info("handoff created")
	return &h, nil
}
