package transcript

import (
	"context"
	"errors"
	"time"

	"coursemart/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, logger logrus.FieldLogger) Repository {
	return &postgresRepo{pool: pool, logger: logger.WithField("repo", "transcript")}
}

func (r *postgresRepo) AppendMessage(ctx context.Context, sessionID, userID string, msg domain.ChatMessage) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO chat_sessions (id, user_id)
VALUES ($1, NULLIF($2, ''))
ON CONFLICT (id) DO UPDATE
SET user_id = COALESCE(chat_sessions.user_id, EXCLUDED.user_id)
`, sessionID, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO chat_messages (id, session_id, user_id, role, text, ts)
VALUES ($1, $2, $3, $4, $5, $6)
`, msg.ID, sessionID, userID, string(msg.Role), msg.Text, msg.TS); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	const q = `
SELECT id, role, text, ts
FROM (
	SELECT id, role, text, ts
	FROM chat_messages
	WHERE session_id = $1
	ORDER BY ts DESC, id DESC
	LIMIT $2
) recent
ORDER BY ts ASC, id ASC
`
	rows, err := r.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		r.logger.WithError(err).WithField("session_id", sessionID).Error("list messages")
		return nil, err
	}
	defer rows.Close()

	result := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Text, &m.TS); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"session_id": sessionID, "count": len(result)}).Debug("list messages")
	return result, nil
}

func (r *postgresRepo) SessionOwner(ctx context.Context, sessionID string) (string, error) {
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(user_id, '') FROM chat_sessions WHERE id = $1`, sessionID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return owner, nil
}

func (r *postgresRepo) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE chat_sessions
SET ended_at = COALESCE(ended_at, $2)
WHERE id = $1
`, sessionID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) CreateHandoff(ctx context.Context, h domain.Handoff) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// A handoff can race the first message save, so make sure the session exists.
	if _, err := tx.Exec(ctx, `
INSERT INTO chat_sessions (id)
VALUES ($1)
ON CONFLICT (id) DO NOTHING
`, h.SessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO chat_handoffs (id, session_id, reason, created_at)
VALUES ($1, $2, $3, $4)
`, h.ID, h.SessionID, h.Reason, h.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return tx.Commit(ctx)
}
