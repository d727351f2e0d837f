package main

import (
	"context"
	"errors"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/domain"
	"learnhub/internal/pkg/logger"
	"learnhub/internal/pkg/utils"
	"learnhub/internal/repository"

	"github.com/sirupsen/logrus"
)

type seedUser struct {
	name           string
	email          string
	password       string
	role           domain.UserRole
	age            int
	specialization string
}

var seedUsers = []seedUser{
	{name: "Administrator", email: "admin@learnhub.local", password: "admin123", role: domain.RoleAdmin},
	{name: "Tia Teacher", email: "teacher@learnhub.local", password: "teacher123", role: domain.RoleTeacher, specialization: "Programming"},
	{name: "Sam Student", email: "student@learnhub.local", password: "student123", role: domain.RoleStudent, age: 17},
}

var seedCourses = []domain.Course{
	{Title: "Go Fundamentals", Description: "Types, interfaces and goroutines.", Category: "programming", Rating: 4.7},
	{Title: "Web APIs with Gin", Description: "Routing, middleware and JSON APIs.", Category: "programming", Rating: 4.5},
	{Title: "Algebra I", Description: "Equations and functions.", Category: "math", Rating: 4.1},
	{Title: "Intro to Statistics", Description: "Distributions and sampling.", Category: "math", Rating: 3.9},
	{Title: "Academic Writing", Description: "Structure and argument.", Category: "language", Rating: 4.2},
}

// Seeds an admin, a teacher, a student and a handful of courses. Running it
// again leaves existing rows alone.
func main() {
	cfg, err := config.Load("4000")
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}
	log := logger.New("seed", cfg.LogLevel, cfg.AppEnv)

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("auto migrate failed")
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)

	var teacherID int64
	for _, su := range seedUsers {
		u, err := ensureUser(ctx, users, su)
		if err != nil {
			log.WithError(err).WithField("email", su.email).Fatal("seed user failed")
		}
		if u.Role == domain.RoleTeacher {
			teacherID = u.ID
		}
		log.WithFields(logrus.Fields{"email": su.email, "role": su.role}).Info("user ready")
	}

	existing, err := courses.Count(ctx)
	if err != nil {
		log.WithError(err).Fatal("count courses failed")
	}
	if existing > 0 {
		log.WithField("courses", existing).Info("courses already present, skipping")
		return
	}
	for _, c := range seedCourses {
		c.TeacherID = teacherID
		if err := courses.Create(ctx, &c); err != nil {
			log.WithError(err).WithField("title", c.Title).Fatal("seed course failed")
		}
	}
	log.WithField("courses", len(seedCourses)).Info("seed completed")
}

func ensureUser(ctx context.Context, users *repository.UserRepository, su seedUser) (*domain.User, error) {
	u, err := users.GetByEmail(ctx, su.email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(su.password)
	if err != nil {
		return nil, err
	}
	u = &domain.User{
		Name:           su.name,
		Email:          su.email,
		PasswordHash:   hash,
		Role:           su.role,
		Specialization: su.specialization,
	}
	if su.age > 0 {
		age := su.age
		u.Age = &age
	}
	if err := users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
