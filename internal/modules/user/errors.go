package user

import "errors"

var (
	ErrInvalidRole        = errors.New("invalid role specified")
	ErrNotFound           = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrTeacherScope       = errors.New("teachers can only manage students")
)

// ValidationError carries per-field failures from role-specific rules.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }
