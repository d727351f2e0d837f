package course

import (
	"errors"
	"net/http"

	"learnhub/internal/domain"
	"learnhub/internal/middleware"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/rbac"
	"learnhub/internal/pkg/response"
	"learnhub/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
	log     logrus.FieldLogger
}

func NewHandler(service *Service, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) Routes() []middleware.Route {
	return []middleware.Route{
		{Method: http.MethodGet, Path: "/courses", Handler: h.List},
		{Method: http.MethodPost, Path: "/courses", Access: middleware.Access{Capability: rbac.CoursesWrite}, Handler: h.Create},
		{Method: http.MethodPost, Path: "/courses/:courseId/enroll", Access: middleware.Access{Capability: rbac.CoursesEnroll}, Handler: h.Enroll},
		{Method: http.MethodGet, Path: "/courses/recommendations", Access: middleware.Access{RateClass: middleware.RateRecommendations}, Handler: h.Recommendations},
		{Method: http.MethodGet, Path: "/courses/recommendations-async", Access: middleware.Access{RateClass: middleware.RateRecommendations}, Handler: h.Recommendations},
		{Method: http.MethodGet, Path: "/courses/analytics", Access: middleware.Access{Capability: rbac.CoursesAnalytics, APIKey: true}, Handler: h.Analytics},
		{Method: http.MethodGet, Path: "/courses/enrolled/:studentId", Access: middleware.Access{Capability: rbac.EnrollmentsRead}, Handler: h.Enrolled},
	}
}

// List returns a page of courses with their teachers.
// @Summary		List courses
// @Tags		Courses
// @Param		page		query	int		false	"page, 1-based"
// @Param		limit		query	int		false	"page size"
// @Param		category	query	string	false	"category filter"
// @Param		sort		query	string	false	"rating_desc or rating_asc"
// @Success		200	{object}	ListResponse
// @Router		/courses [GET]
func (h *Handler) List(c *gin.Context) {
	out, err := h.service.List(c.Request.Context(), domain.CourseFilter{
		Category: c.Query("category"),
		Sort:     domain.CourseSort(c.Query("sort")),
		Page:     utils.PositiveInt(c.Query("page"), 1, 0),
		Limit:    utils.PositiveInt(c.Query("limit"), DefaultPageLimit, MaxPageLimit),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// Create adds a course.
// @Summary		Create course
// @Tags		Courses
// @Security	BearerAuth
// @Param		request	body	CreateCourseRequest	true	"course; teacher_id is required for admins"
// @Success		201	{object}	domain.Course
// @Router		/courses [POST]
func (h *Handler) Create(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	course, err := h.service.Create(c.Request.Context(), *caller, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, course)
}

// Enroll enrolls the calling student.
// @Summary		Enroll in course
// @Tags		Courses
// @Security	BearerAuth
// @Param		courseId	path	int	true	"course id"
// @Success		201	{object}	domain.Enrollment
// @Failure		404	{object}	map[string]interface{}
// @Failure		409	{object}	map[string]interface{}
// @Router		/courses/{courseId}/enroll [POST]
func (h *Handler) Enroll(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	courseID, err := utils.ParseID(c.Param("courseId"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid course ID")
		return
	}

	e, err := h.service.Enroll(c.Request.Context(), *caller, courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, e)
}

// Recommendations returns the static catalog of suggested courses.
// @Summary		Course recommendations
// @Tags		Courses
// @Success		200	{array}		Recommendation
// @Failure		429	{string}	string
// @Router		/courses/recommendations [GET]
// @Router		/courses/recommendations-async [GET]
func (h *Handler) Recommendations(c *gin.Context) {
	response.Success(c, http.StatusOK, h.service.Recommendations())
}

// Analytics returns catalog figures for admins holding the service key.
// @Summary		Course analytics
// @Tags		Courses
// @Security	BearerAuth
// @Param		apiKey	query	string	true	"shared service key"
// @Success		200	{object}	AnalyticsResponse
// @Router		/courses/analytics [GET]
func (h *Handler) Analytics(c *gin.Context) {
	out, err := h.service.Analytics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// Enrolled lists the courses a student is enrolled in.
// @Summary		Enrolled courses
// @Tags		Courses
// @Security	BearerAuth
// @Param		studentId	path	int	true	"student id"
// @Success		200	{array}		domain.Course
// @Failure		403	{object}	map[string]interface{}
// @Router		/courses/enrolled/{studentId} [GET]
func (h *Handler) Enrolled(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	studentID, err := utils.ParseID(c.Param("studentId"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid student ID")
		return
	}

	courses, err := h.service.Enrolled(c.Request.Context(), *caller, studentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, courses)
}

func (h *Handler) caller(c *gin.Context) (*jwt.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		h.log.WithField("path", c.FullPath()).Error("handler reached without an authenticated identity")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return nil, false
	}
	return identity, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidSort):
		response.Error(c, http.StatusBadRequest, "INVALID_SORT", "sort must be rating_desc or rating_asc")
	case errors.Is(err, ErrTeacherRequired):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "teacher_id is required")
	case errors.Is(err, ErrUnknownTeacher):
		response.Error(c, http.StatusBadRequest, "UNKNOWN_TEACHER", "teacher_id does not name a teacher")
	case errors.Is(err, ErrCourseNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Course not found")
	case errors.Is(err, ErrAlreadyEnrolled):
		response.Error(c, http.StatusConflict, "ALREADY_ENROLLED", "Already enrolled in this course")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("course request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
