package main

import (
	"context"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/pkg/logger"
	"learnhub/internal/repository"

	"github.com/sirupsen/logrus"
)

// Clears refresh-token hashes whose expiry has passed. Meant to run from cron
// against the user service database.
func main() {
	cfg, err := config.Load("4000")
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}
	log := logger.New("auth-cleanup", cfg.LogLevel, cfg.AppEnv)

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cleared, err := repository.NewUserRepository(db).ClearExpiredRefreshTokens(ctx, time.Now())
	if err != nil {
		log.WithError(err).Fatal("cleanup refresh tokens failed")
	}
	log.WithField("refresh_tokens", cleared).Info("auth cleanup completed")
}
