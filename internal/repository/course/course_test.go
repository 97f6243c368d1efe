package course

import (
	"context"
	"errors"
	"os"
	"testing"

	"coursemart/internal/domain"
	"coursemart/internal/logging"
	"coursemart/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPostgres_UpsertListGet(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE courses, categories CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO categories (key, name) VALUES ('dev', 'Development')`); err != nil {
		t.Fatalf("insert category: %v", err)
	}

	repo := NewPostgres(pool, logging.Discard())
	created, err := repo.Upsert(ctx, domain.Course{CategoryKey: "dev", Key: "go-101", Title: "Go Basics", Price: 499, Currency: "INR"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.Upsert(ctx, domain.Course{Key: "figma", Title: "Figma", Price: 299, Currency: "INR"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.Upsert(ctx, domain.Course{CategoryKey: "nope", Key: "x", Title: "X", Currency: "INR"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown category, got %v", err)
	}

	all, err := repo.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("list all: %v %+v", err, all)
	}
	dev, err := repo.List(ctx, "dev")
	if err != nil || len(dev) != 1 || dev[0].Key != "go-101" {
		t.Fatalf("list dev: %v %+v", err, dev)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Price != 499 || got.Title != "Go Basics" {
		t.Fatalf("unexpected course %+v", got)
	}
	if _, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}
