package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"learnhub/internal/domain"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/utils"
	"learnhub/internal/pkg/validator"
	"learnhub/internal/repository"
)

const recentStudentsLimit = 5

// Service contains user management on behalf of teachers and admins.
type Service struct {
	users   UserRepositoryInterface
	courses CourseCounter
}

func NewService(users UserRepositoryInterface, courses CourseCounter) *Service {
	return &Service{users: users, courses: courses}
}

// ListByRole lists students or teachers. Admin accounts are never listed.
func (s *Service) ListByRole(ctx context.Context, role domain.UserRole) ([]*domain.User, error) {
	if role != domain.RoleStudent && role != domain.RoleTeacher {
		return nil, ErrInvalidRole
	}
	return s.users.ListByRole(ctx, role)
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) PublicProfile(ctx context.Context, id int64) (*domain.PublicUser, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Public()
	return &p, nil
}

func (s *Service) Create(ctx context.Context, caller jwt.Identity, req CreateUserRequest) (*domain.User, error) {
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if isTeacher(caller) && req.Role != domain.RoleStudent {
		return nil, ErrTeacherScope
	}

	u := &domain.User{
		Name:  strings.TrimSpace(req.Name),
		Email: req.Email,
		Role:  req.Role,
	}
	if err := applyProfile(u, req.Age, req.GuardianInfo, req.Specialization); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, caller jwt.Identity, id int64, req UpdateUserRequest) (*domain.User, error) {
	if req.Role != "" && !req.Role.Valid() {
		return nil, ErrInvalidRole
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isTeacher(caller) {
		if u.Role != domain.RoleStudent || (req.Role != "" && req.Role != domain.RoleStudent) {
			return nil, ErrTeacherScope
		}
	}

	u.Name = strings.TrimSpace(req.Name)
	u.Email = req.Email
	if req.Role != "" {
		u.Role = req.Role
	}
	if err := applyProfile(u, req.Age, req.GuardianInfo, req.Specialization); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, caller jwt.Identity, id int64) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if isTeacher(caller) && u.Role != domain.RoleStudent {
		return ErrTeacherScope
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *Service) Analytics(ctx context.Context) (*AnalyticsResponse, error) {
	students, err := s.users.CountByRole(ctx, domain.RoleStudent)
	if err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	teachers, err := s.users.CountByRole(ctx, domain.RoleTeacher)
	if err != nil {
		return nil, fmt.Errorf("count teachers: %w", err)
	}
	courses, err := s.courses.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count courses: %w", err)
	}
	byAge, err := s.users.StudentsByAge(ctx)
	if err != nil {
		return nil, fmt.Errorf("students by age: %w", err)
	}
	recent, err := s.users.RecentByRole(ctx, domain.RoleStudent, recentStudentsLimit)
	if err != nil {
		return nil, fmt.Errorf("recent students: %w", err)
	}

	out := &AnalyticsResponse{
		TotalStudents:  students,
		TotalTeachers:  teachers,
		TotalCourses:   courses,
		StudentsByAge:  byAge,
		RecentStudents: make([]RecentStudent, 0, len(recent)),
	}
	if out.StudentsByAge == nil {
		out.StudentsByAge = []domain.AgeCount{}
	}
	for _, u := range recent {
		out.RecentStudents = append(out.RecentStudents, RecentStudent{Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt})
	}
	return out, nil
}

// applyProfile validates and sets the role-specific fields; fields that do not
// belong to the role are cleared.
func applyProfile(u *domain.User, age *int, guardian, specialization string) error {
	u.Age, u.GuardianInfo, u.Specialization = nil, "", ""

	switch u.Role {
	case domain.RoleStudent:
		p := studentProfile{Age: age, GuardianInfo: strings.TrimSpace(guardian)}
		if fields := validator.Validate(p); fields != nil {
			return &ValidationError{Fields: fields}
		}
		u.Age, u.GuardianInfo = p.Age, p.GuardianInfo
	case domain.RoleTeacher:
		p := teacherProfile{Specialization: strings.TrimSpace(specialization)}
		if fields := validator.Validate(p); fields != nil {
			return &ValidationError{Fields: fields}
		}
		u.Specialization = p.Specialization
	}
	return nil
}

func isTeacher(caller jwt.Identity) bool {
	return domain.UserRole(caller.Role) == domain.RoleTeacher
}
