package course

import (
	"context"
	"errors"

	"coursemart/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const courseColumns = `id::text, COALESCE(category_key, ''), key, title, COALESCE(description, ''), COALESCE(price, 0)::float8, currency, COALESCE(image, ''), created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgres(pool *pgxpool.Pool, logger logrus.FieldLogger) Repository {
	return &postgresRepo{pool: pool, logger: logger.WithField("repo", "course")}
}

// List returns every course, or only those in categoryKey when it is set.
func (r *postgresRepo) List(ctx context.Context, categoryKey string) ([]domain.Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses`
	var args []interface{}
	if categoryKey != "" {
		q += ` WHERE category_key = $1`
		args = append(args, categoryKey)
	}
	q += ` ORDER BY title ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.WithError(err).WithField("category", categoryKey).Error("list courses")
		return nil, err
	}
	defer rows.Close()

	result := []domain.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"category": categoryKey, "count": len(result)}).Debug("list courses")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id::text = $1`, id)
	c, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.WithError(err).WithField("id", id).Error("get course")
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.Course) (*domain.Course, error) {
	const q = `
INSERT INTO courses (category_key, key, title, description, price, currency, image)
VALUES (NULLIF($1, ''), $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''))
ON CONFLICT (key) DO UPDATE
SET category_key = EXCLUDED.category_key,
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    currency = EXCLUDED.currency,
    image = EXCLUDED.image
RETURNING ` + courseColumns
	out, err := scanCourse(r.pool.QueryRow(ctx, q, c.CategoryKey, c.Key, c.Title, c.Description, c.Price, c.Currency, c.Image))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func scanCourse(row pgx.Row) (domain.Course, error) {
	var c domain.Course
	err := row.Scan(&c.ID, &c.CategoryKey, &c.Key, &c.Title, &c.Description, &c.Price, &c.Currency, &c.Image, &c.CreatedAt)
	return c, err
}
