package course

import "errors"

var (
	ErrInvalidSort     = errors.New("invalid sort")
	ErrTeacherRequired = errors.New("teacher_id is required")
	ErrUnknownTeacher  = errors.New("teacher not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrAlreadyEnrolled = errors.New("already enrolled")
	ErrForbidden       = errors.New("forbidden")
)
