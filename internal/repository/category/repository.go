package category

import (
	"context"

	"coursemart/internal/domain"
)

// Repository stores course categories keyed by their stable key.
type Repository interface {
	// List returns every category ordered by name, each with the number of
	// courses filed under it.
	List(ctx context.Context) ([]domain.Category, error)
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}
