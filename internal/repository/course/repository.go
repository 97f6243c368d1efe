package course

import (
	"context"

	"coursemart/internal/domain"
)

type Repository interface {
	List(ctx context.Context, categoryKey string) ([]domain.Course, error)
	GetByID(ctx context.Context, id string) (*domain.Course, error)
	Upsert(ctx context.Context, c domain.Course) (*domain.Course, error)
}
