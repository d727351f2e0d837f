package user

import (
	"time"

	"learnhub/internal/domain"
)

type CreateUserRequest struct {
	Name           string          `json:"name" binding:"required,min=2,max=100"`
	Email          string          `json:"email" binding:"required,email"`
	Password       string          `json:"password" binding:"required,min=6,max=72"`
	Role           domain.UserRole `json:"role" binding:"required"`
	Age            *int            `json:"age"`
	GuardianInfo   string          `json:"guardian_info"`
	Specialization string          `json:"specialization"`
}

// UpdateUserRequest replaces the editable profile. Omitted role keeps the
// current one.
type UpdateUserRequest struct {
	Name           string          `json:"name" binding:"required,min=2,max=100"`
	Email          string          `json:"email" binding:"required,email"`
	Role           domain.UserRole `json:"role"`
	Age            *int            `json:"age"`
	GuardianInfo   string          `json:"guardian_info"`
	Specialization string          `json:"specialization"`
}

// studentProfile and teacherProfile hold the rules that depend on the role.
type studentProfile struct {
	Age          *int   `json:"age" validate:"omitempty,gte=3,lte=120"`
	GuardianInfo string `json:"guardian_info" validate:"max=255"`
}

type teacherProfile struct {
	Specialization string `json:"specialization" validate:"max=100"`
}

type RecentStudent struct {
	Name      string    `json:"user_name"`
	Email     string    `json:"user_email"`
	CreatedAt time.Time `json:"created_at"`
}

type AnalyticsResponse struct {
	TotalStudents  int64             `json:"totalStudents"`
	TotalTeachers  int64             `json:"totalTeachers"`
	TotalCourses   int64             `json:"totalCourses"`
	StudentsByAge  []domain.AgeCount `json:"studentsByAge"`
	RecentStudents []RecentStudent   `json:"recentStudents"`
}
