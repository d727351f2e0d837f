package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"learnhub/internal/app"
	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/pkg/logger"
	"learnhub/internal/repository"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load("4000")
	if err != nil {
		logrus.WithError(err).Fatal("config load failed")
	}
	log := logger.New(config.ServiceUser, cfg.LogLevel, cfg.AppEnv)
	if err := cfg.Validate(config.ServiceUser); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("auto migrate failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.BuildUserService(ctx, cfg, db, log)
	if err != nil {
		log.WithError(err).Fatal("build user service failed")
	}
	defer svc.Close()

	if err := app.Run(ctx, ":"+cfg.Port, svc.Router, log); err != nil {
		log.WithError(err).Error("server stopped")
	}
}
