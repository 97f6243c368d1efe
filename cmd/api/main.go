package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coursemart/internal/chat/flow"
	"coursemart/internal/chat/sessions"
	"coursemart/internal/chat/widget"
	"coursemart/internal/config"
	"coursemart/internal/db"
	"coursemart/internal/httpserver"
	"coursemart/internal/kv"
	"coursemart/internal/logging"
	categoryrepo "coursemart/internal/repository/category"
	courserepo "coursemart/internal/repository/course"
	transcriptrepo "coursemart/internal/repository/transcript"
	coursesvc "coursemart/internal/service/course"
	"coursemart/internal/service/storefront"
	transcriptsvc "coursemart/internal/service/transcript"
	"coursemart/internal/service/visitor"
	"github.com/jackc/pgx/v5/pgxpool"
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
	log := logger.WithField("cmd", "api")

	ctx := context.Background()

	var (
		dbpool      *pgxpool.Pool
		store       kv.Store
		transcripts transcriptrepo.Repository
		catalog     httpserver.CatalogService
		ready       = map[string]httpserver.ReadinessCheck{}
	)
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		dbpool, err = db.Connect(ctx, cfg.DBConnString, db.Options{MaxConns: cfg.DBMaxConns}, log)
		if err != nil {
			log.Fatalf("connect to db: %v", err)
		}
		defer dbpool.Close()
		ready["postgres"] = dbpool.Ping
		store = kv.NewPostgres(dbpool)
		transcripts = transcriptrepo.NewPostgres(dbpool, logger)
		catalog = coursesvc.New(courserepo.NewPostgres(dbpool, logger), categoryrepo.NewPostgres(dbpool))
	case config.BackendSQLite:
		sqlite, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite store: %v", err)
		}
		defer sqlite.Close()
		ready["sqlite"] = sqlite.Ping
		store = sqlite
		transcripts = transcriptrepo.NewMemory(cfg.Chat.TranscriptMaxSessions, cfg.Chat.TranscriptTTL)
	default:
		store = kv.NewMemory()
		transcripts = transcriptrepo.NewMemory(cfg.Chat.TranscriptMaxSessions, cfg.Chat.TranscriptTTL)
	}
	log.WithField("backend", cfg.StorageBackend).Info("storage ready")

	transcriptService := transcriptsvc.New(transcripts, logger)
	registry := storefront.New(
		store,
		flow.New(nil),
		sessions.New(cfg.Chat.CallFlowMaxEntries, cfg.Chat.CallFlowTTL),
		transcriptService,
		logger,
		storefront.Options{
			TTL:        cfg.RegistryTTL,
			MaxEntries: cfg.RegistryMaxEntries,
			Widget: widget.Options{
				ReplyDelay:     cfg.Chat.ReplyDelay,
				ResetDelay:     cfg.Chat.ResetDelay,
				PersistTimeout: cfg.Chat.PersistTimeout,
				HistoryLimit:   cfg.Chat.HistoryLimit,
			},
		},
	)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Visitors:    visitor.New(cfg.VisitorTokenSecret, cfg.VisitorTokenTTL),
		Storefront:  registry,
		Catalog:     catalog,
		Transcripts: transcriptService,
		Ready:       ready,
	}, cfg.CORSOrigins)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Infof("received signal %s, shutting down", sig)
	case err := <-serverErr:
		log.Errorf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}

	// Let pending chat replies and transcript writes land before storage closes.
	drained := make(chan struct{})
	go func() {
		registry.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		log.Info("server stopped")
	case <-ctx.Done():
		log.Warn("shutdown timed out with chat work pending")
	}
}
