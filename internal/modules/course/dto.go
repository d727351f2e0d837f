package course

import "learnhub/internal/domain"

type CreateCourseRequest struct {
	Title       string  `json:"course_title" binding:"required,min=2,max=200"`
	Description string  `json:"course_description" binding:"max=2000"`
	Category    string  `json:"course_category" binding:"required,max=100"`
	Rating      float64 `json:"course_rating" binding:"gte=0,lte=5"`
	TeacherID   int64   `json:"teacher_id"`
}

type CourseLinks struct {
	Self   string `json:"self"`
	Enroll string `json:"enroll"`
}

// CourseView is a listed course with its teacher resolved. Teacher is null
// when the user service could not be reached.
type CourseView struct {
	domain.Course
	Teacher *domain.PublicUser `json:"teacher"`
	Links   CourseLinks        `json:"links"`
}

type PageLinks struct {
	Self string  `json:"self"`
	Next *string `json:"next"`
	Prev *string `json:"prev"`
}

type ListResponse struct {
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"totalPages"`
	Links      PageLinks    `json:"links"`
	Courses    []CourseView `json:"courses"`
}

type Recommendation struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Level    string  `json:"level"`
	Rating   float64 `json:"rating"`
}

type AnalyticsResponse struct {
	TotalCourses      int64                  `json:"totalCourses"`
	TotalEnrollments  int64                  `json:"totalEnrollments"`
	CoursesByCategory []domain.CategoryCount `json:"coursesByCategory"`
}
