package domain

import "time"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           UserRole  `json:"role"`
	Age            *int      `json:"age,omitempty"`
	GuardianInfo   string    `json:"guardian_info,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// RefreshTokenHash is the hash of the single live refresh token, empty when
	// the user has no session.
	RefreshTokenHash string     `json:"-"`
	RefreshExpiresAt *time.Time `json:"-"`
}

// PublicUser is the identity subset that may leave the user service.
type PublicUser struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Role           UserRole `json:"role"`
	Specialization string   `json:"specialization,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Role:           u.Role,
		Specialization: u.Specialization,
	}
}
