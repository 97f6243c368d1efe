package main

import (
	"context"
	"flag"
	"os"
	"time"

	"coursemart/internal/config"
	"coursemart/internal/db"
	"coursemart/internal/importer"
	"coursemart/internal/logging"
	categoryrepo "coursemart/internal/repository/category"
	courserepo "coursemart/internal/repository/course"
	coursesvc "coursemart/internal/service/course"
	"github.com/sirupsen/logrus"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to course catalog CSV")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log := logger.WithField("cmd", "importer")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{MaxConns: cfg.DBMaxConns}, log)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	svc := coursesvc.New(courserepo.NewPostgres(pool, log), categoryrepo.NewPostgres(pool))
	imp := importer.NewCSVImporter(f, svc, svc)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		log.Fatalf("import failed after %d courses: %v", count, err)
	}

	log.WithFields(logrus.Fields{
		"courses": count,
		"file":    filePath,
		"took":    time.Since(start).Truncate(time.Millisecond),
	}).Info("catalog imported")
}
