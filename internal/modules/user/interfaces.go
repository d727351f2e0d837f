package user

import (
	"context"

	"learnhub/internal/domain"
)

// UserRepositoryInterface lists only the methods user management uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id int64) error
	ListByRole(ctx context.Context, role domain.UserRole) ([]*domain.User, error)
	CountByRole(ctx context.Context, role domain.UserRole) (int64, error)
	StudentsByAge(ctx context.Context) ([]domain.AgeCount, error)
	RecentByRole(ctx context.Context, role domain.UserRole, limit int) ([]*domain.User, error)
}

// CourseCounter reports the course total shown on the admin dashboard.
type CourseCounter interface {
	Count(ctx context.Context) (int64, error)
}
