package main

import (
	"context"

	"coursemart/internal/config"
	"coursemart/internal/db"
	"coursemart/internal/logging"
	categoryrepo "coursemart/internal/repository/category"
	courserepo "coursemart/internal/repository/course"
	"coursemart/internal/seed"
	coursesvc "coursemart/internal/service/course"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log := logger.WithField("cmd", "seed")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{MaxConns: cfg.DBMaxConns}, log)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	svc := coursesvc.New(courserepo.NewPostgres(pool, log), categoryrepo.NewPostgres(pool))
	n, err := seed.Apply(ctx, svc, svc)
	if err != nil {
		log.Fatalf("seed apply: %v", err)
	}

	log.WithField("courses", n).Info("seed applied")
}
