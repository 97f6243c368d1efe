package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Server wraps the HTTP server setup.
type Server struct {
	httpServer *http.Server
	logger     logrus.FieldLogger
}

// New builds a Server with every route wired.
func New(addr string, logger *logrus.Logger, deps Deps, corsOrigins []string) (*Server, error) {
	router, err := buildRouter(logger, deps, corsOrigins)
	if err != nil {
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: httpSrv,
		logger:     logger,
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadinessCheck reports whether a backing store can serve requests.
type ReadinessCheck func(ctx context.Context) error

// readyHandler runs every check with a one second budget. The response names
// each dependency and its state; any failure turns the whole probe into a 503.
func readyHandler(checks map[string]ReadinessCheck, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WithError(err).WithField("check", name).Warn("readiness check failed")
				report[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		if status != http.StatusOK {
			c.JSON(status, gin.H{"status": "unavailable", "checks": report})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": report})
	}
}
