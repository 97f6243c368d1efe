package main

import (
	"context"
	"flag"
	"os"

	"coursemart/internal/config"
	"coursemart/internal/db"
	"coursemart/internal/logging"
	"coursemart/internal/migrate"
	"github.com/sirupsen/logrus"
)

func main() {
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: migrate [up|down|version]\n")
	}
	flag.Parse()
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log := logger.WithField("cmd", "migrate")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{MaxConns: cfg.DBMaxConns}, log)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	switch cmd {
	case "up":
		if err := migrate.Apply(ctx, pool); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
		log.Info("migrations applied")
	case "down":
		if err := migrate.Rollback(ctx, pool); err != nil {
			log.Fatalf("rollback migration: %v", err)
		}
		log.Info("last migration rolled back")
	case "version":
		version, dirty, ok, err := migrate.Version(ctx, pool)
		if err != nil {
			log.Fatalf("read version: %v", err)
		}
		if !ok {
			log.Info("no migrations applied")
			return
		}
		log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("schema version")
	default:
		flag.Usage()
		os.Exit(2)
	}
}
