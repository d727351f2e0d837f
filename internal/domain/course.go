package domain

import "time"

type Course struct {
	ID          int64     `json:"course_id"`
	Title       string    `json:"course_title"`
	Description string    `json:"course_description"`
	Category    string    `json:"course_category"`
	Rating      float64   `json:"course_rating"`
	TeacherID   int64     `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Enrollment struct {
	ID        int64     `json:"enrollment_id"`
	CourseID  int64     `json:"course_id"`
	StudentID int64     `json:"enrollment_student_id"`
	CreatedAt time.Time `json:"created_at"`
}
