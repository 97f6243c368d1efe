package course

import (
	"context"
	"strings"

	"coursemart/internal/domain"
	categoryrepo "coursemart/internal/repository/category"
	courserepo "coursemart/internal/repository/course"
)

type Service struct {
	courses    courserepo.Repository
	categories categoryrepo.Repository
}

func New(courses courserepo.Repository, categories categoryrepo.Repository) *Service {
	return &Service{courses: courses, categories: categories}
}

func (s *Service) ListCourses(ctx context.Context, categoryKey string) ([]domain.Course, error) {
	return s.courses.List(ctx, strings.TrimSpace(categoryKey))
}

func (s *Service) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.courses.GetByID(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

// UpsertCategory and UpsertCourse back the seed command.
func (s *Service) UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(c.Key) == "" || strings.TrimSpace(c.Name) == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.categories.Upsert(ctx, c)
}

func (s *Service) UpsertCourse(ctx context.Context, c domain.Course) (*domain.Course, error) {
	if strings.TrimSpace(c.Key) == "" || strings.TrimSpace(c.Title) == "" || c.Price < 0 {
		return nil, domain.ErrInvalidInput
	}
	if c.Currency == "" {
		c.Currency = "INR"
	}
	return s.courses.Upsert(ctx, c)
}
