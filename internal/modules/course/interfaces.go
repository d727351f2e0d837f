package course

import (
	"context"

	"learnhub/internal/domain"
)

type CourseRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Course) error
	GetByID(ctx context.Context, id int64) (*domain.Course, error)
	List(ctx context.Context, f domain.CourseFilter) ([]domain.Course, int64, error)
	Count(ctx context.Context) (int64, error)
	CountByCategory(ctx context.Context) ([]domain.CategoryCount, error)
	Enroll(ctx context.Context, courseID, studentID int64) (*domain.Enrollment, error)
	ListEnrolled(ctx context.Context, studentID int64) ([]domain.Course, error)
	CountEnrollments(ctx context.Context) (int64, error)
}

// TeacherDirectory resolves teacher profiles held by the user service.
type TeacherDirectory interface {
	Profile(ctx context.Context, id int64) (*domain.PublicUser, error)
}
