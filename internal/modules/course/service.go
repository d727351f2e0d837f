package course

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"learnhub/internal/clients/userservice"
	"learnhub/internal/domain"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageLimit = 5
	MaxPageLimit     = 50
	enrichmentLimit  = 8
)

//go:embed recommendations.json
var recommendationsJSON []byte

// Service contains the course catalog and enrollment logic.
type Service struct {
	courses         CourseRepositoryInterface
	teachers        TeacherDirectory
	log             logrus.FieldLogger
	recommendations []Recommendation
}

func NewService(courses CourseRepositoryInterface, teachers TeacherDirectory, log logrus.FieldLogger) (*Service, error) {
	var recs []Recommendation
	if err := json.Unmarshal(recommendationsJSON, &recs); err != nil {
		return nil, fmt.Errorf("load recommendations: %w", err)
	}
	return &Service{courses: courses, teachers: teachers, log: log, recommendations: recs}, nil
}

// List returns one page of courses with teacher details attached. A teacher
// lookup failure leaves that course's teacher null; the page still succeeds.
func (s *Service) List(ctx context.Context, f domain.CourseFilter) (*ListResponse, error) {
	switch f.Sort {
	case "", domain.SortRatingAsc, domain.SortRatingDesc:
	default:
		return nil, ErrInvalidSort
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	f.Category = strings.TrimSpace(f.Category)

	courses, total, err := s.courses.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	teachers := s.resolveTeachers(ctx, courses)
	views := make([]CourseView, 0, len(courses))
	for _, c := range courses {
		id := strconv.FormatInt(c.ID, 10)
		views = append(views, CourseView{
			Course:  c,
			Teacher: teachers[c.TeacherID],
			Links: CourseLinks{
				Self:   "/courses/" + id,
				Enroll: "/courses/" + id + "/enroll",
			},
		})
	}

	totalPages := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	return &ListResponse{
		Page:       f.Page,
		Limit:      f.Limit,
		Total:      total,
		TotalPages: totalPages,
		Links:      pageLinks(f, totalPages),
		Courses:    views,
	}, nil
}

// resolveTeachers looks up each distinct teacher once, at most
// enrichmentLimit at a time.
func (s *Service) resolveTeachers(ctx context.Context, courses []domain.Course) map[int64]*domain.PublicUser {
	out := make(map[int64]*domain.PublicUser)
	if s.teachers == nil {
		return out
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(enrichmentLimit)

	seen := make(map[int64]struct{})
	for _, c := range courses {
		if _, ok := seen[c.TeacherID]; ok || c.TeacherID <= 0 {
			continue
		}
		seen[c.TeacherID] = struct{}{}

		id := c.TeacherID
		g.Go(func() error {
			p, err := s.teachers.Profile(ctx, id)
			if err != nil {
				s.log.WithError(err).WithField("teacher_id", id).Warn("teacher lookup failed")
				return nil
			}
			mu.Lock()
			out[id] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func pageLinks(f domain.CourseFilter, totalPages int) PageLinks {
	link := func(page int) string {
		v := "/courses?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(f.Limit)
		if f.Category != "" {
			v += "&category=" + url.QueryEscape(f.Category)
		}
		if f.Sort != "" {
			v += "&sort=" + string(f.Sort)
		}
		return v
	}

	links := PageLinks{Self: link(f.Page)}
	if f.Page < totalPages {
		next := link(f.Page + 1)
		links.Next = &next
	}
	if f.Page > 1 {
		prev := link(f.Page - 1)
		links.Prev = &prev
	}
	return links
}

// Create adds a course. Teachers always own what they create; admins must
// name an existing teacher.
func (s *Service) Create(ctx context.Context, caller jwt.Identity, req CreateCourseRequest) (*domain.Course, error) {
	teacherID := req.TeacherID
	switch domain.UserRole(caller.Role) {
	case domain.RoleTeacher:
		teacherID = caller.ID
	default:
		if teacherID <= 0 {
			return nil, ErrTeacherRequired
		}
		if err := s.checkTeacher(ctx, teacherID); err != nil {
			return nil, err
		}
	}

	c := &domain.Course{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Rating:      req.Rating,
		TeacherID:   teacherID,
	}
	if err := s.courses.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

func (s *Service) checkTeacher(ctx context.Context, id int64) error {
	if s.teachers == nil {
		return nil
	}
	p, err := s.teachers.Profile(ctx, id)
	if err != nil {
		if errors.Is(err, userservice.ErrNotFound) {
			return ErrUnknownTeacher
		}
		return fmt.Errorf("look up teacher: %w", err)
	}
	if p.Role != domain.RoleTeacher {
		return ErrUnknownTeacher
	}
	return nil
}

// Enroll enrolls the calling student in courseID.
func (s *Service) Enroll(ctx context.Context, caller jwt.Identity, courseID int64) (*domain.Enrollment, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}

	e, err := s.courses.Enroll(ctx, courseID, caller.ID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("enroll: %w", err)
	}
	return e, nil
}

// Enrolled lists a student's courses. Students may only see their own.
func (s *Service) Enrolled(ctx context.Context, caller jwt.Identity, studentID int64) ([]domain.Course, error) {
	if domain.UserRole(caller.Role) == domain.RoleStudent && caller.ID != studentID {
		return nil, ErrForbidden
	}
	return s.courses.ListEnrolled(ctx, studentID)
}

func (s *Service) Recommendations() []Recommendation {
	return s.recommendations
}

func (s *Service) Analytics(ctx context.Context) (*AnalyticsResponse, error) {
	total, err := s.courses.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count courses: %w", err)
	}
	enrollments, err := s.courses.CountEnrollments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	byCategory, err := s.courses.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("courses by category: %w", err)
	}
	if byCategory == nil {
		byCategory = []domain.CategoryCount{}
	}
	return &AnalyticsResponse{
		TotalCourses:      total,
		TotalEnrollments:  enrollments,
		CoursesByCategory: byCategory,
	}, nil
}
