package category

import (
	"context"
	"fmt"

	"coursemart/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const listCategories = `
SELECT c.id::text, c.key, c.name, COALESCE(c.slug, ''), COALESCE(c.description, ''),
       COUNT(co.id)::int, c.created_at
FROM categories c
LEFT JOIN courses co ON co.category_key = c.key
GROUP BY c.id
ORDER BY c.name ASC, c.key ASC
`

func (r *postgresRepo) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, listCategories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Category, error) {
		var c domain.Category
		err := row.Scan(&c.ID, &c.Key, &c.Name, &c.Slug, &c.Description, &c.CourseCount, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	if out == nil {
		out = []domain.Category{}
	}
	return out, nil
}

// Upsert keeps the stored slug and description when the incoming ones are blank.
func (r *postgresRepo) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const q = `
INSERT INTO categories (key, name, slug, description)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
ON CONFLICT (key) DO UPDATE
SET name = EXCLUDED.name,
    slug = COALESCE(EXCLUDED.slug, categories.slug),
    description = COALESCE(EXCLUDED.description, categories.description)
RETURNING id::text, COALESCE(slug, ''), COALESCE(description, ''),
          (SELECT COUNT(*)::int FROM courses WHERE category_key = $1), created_at
`
	out := domain.Category{Key: c.Key, Name: c.Name}
	err := r.pool.QueryRow(ctx, q, c.Key, c.Name, c.Slug, c.Description).
		Scan(&out.ID, &out.Slug, &out.Description, &out.CourseCount, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert category %q: %w", c.Key, err)
	}
	return &out, nil
}
