package repository

import (
	"context"
	"strings"
	"time"

	"learnhub/internal/domain"

	"gorm.io/gorm"
)

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

type courseModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string    `gorm:"column:title;size:200;not null"`
	Description string    `gorm:"column:description"`
	Category    string    `gorm:"column:category;size:80;index"`
	Rating      float64   `gorm:"column:rating"`
	TeacherID   int64     `gorm:"column:teacher_id;index;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (courseModel) TableName() string { return "courses" }

type enrollmentModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CourseID  int64     `gorm:"column:course_id;not null;uniqueIndex:idx_enrollment_course_student"`
	StudentID int64     `gorm:"column:student_id;not null;uniqueIndex:idx_enrollment_course_student;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (enrollmentModel) TableName() string { return "enrollments" }

func toDomainCourse(m courseModel) domain.Course {
	return domain.Course{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Category:    m.Category,
		Rating:      m.Rating,
		TeacherID:   m.TeacherID,
		CreatedAt:   m.CreatedAt,
	}
}

func (r *CourseRepository) Create(ctx context.Context, c *domain.Course) error {
	m := courseModel{
		Title:       strings.TrimSpace(c.Title),
		Description: c.Description,
		Category:    strings.TrimSpace(c.Category),
		Rating:      c.Rating,
		TeacherID:   c.TeacherID,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err)
	}
	*c = toDomainCourse(m)
	return nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*domain.Course, error) {
	var m courseModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	c := toDomainCourse(m)
	return &c, nil
}

// List returns one page of courses plus the total matching the category.
func (r *CourseRepository) List(ctx context.Context, f domain.CourseFilter) ([]domain.Course, int64, error) {
	base := r.db.WithContext(ctx).Model(&courseModel{})
	if f.Category != "" {
		base = base.Where("category = ?", f.Category)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base.Session(&gorm.Session{})
	switch f.Sort {
	case domain.SortRatingDesc:
		q = q.Order("rating DESC")
	case domain.SortRatingAsc:
		q = q.Order("rating ASC")
	}
	q = q.Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset((f.Page - 1) * f.Limit)
	}

	var rows []courseModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.Course, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainCourse(m))
	}
	return out, total, nil
}

func (r *CourseRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&courseModel{}).Count(&count).Error
	return count, err
}

func (r *CourseRepository) CountByCategory(ctx context.Context) ([]domain.CategoryCount, error) {
	var rows []domain.CategoryCount
	err := r.db.WithContext(ctx).Model(&courseModel{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("category").
		Scan(&rows).Error
	return rows, err
}

func (r *CourseRepository) Enroll(ctx context.Context, courseID, studentID int64) (*domain.Enrollment, error) {
	m := enrollmentModel{CourseID: courseID, StudentID: studentID}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &domain.Enrollment{
		ID:        m.ID,
		CourseID:  m.CourseID,
		StudentID: m.StudentID,
		CreatedAt: m.CreatedAt,
	}, nil
}

func (r *CourseRepository) ListEnrolled(ctx context.Context, studentID int64) ([]domain.Course, error) {
	var rows []courseModel
	err := r.db.WithContext(ctx).
		Table("courses").
		Select("courses.*").
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.student_id = ?", studentID).
		Order("courses.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Course, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainCourse(m))
	}
	return out, nil
}

func (r *CourseRepository) CountEnrollments(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&enrollmentModel{}).Count(&count).Error
	return count, err
}
