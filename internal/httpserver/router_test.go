package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestVisitorMiddleware_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(visitorMiddleware(&stubVisitors{}))
	router.GET("/me/test", func(c *gin.Context) {
		if got := visitorFrom(c); got != "abc" {
			t.Fatalf("expected visitor abc in context, got %q", got)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me/test", nil)
	req.Header.Set("Authorization", "bearer token-abc")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestVisitorMiddleware_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
		svc    *stubVisitors
		want   int
	}{
		{name: "missing header", header: "", svc: &stubVisitors{}, want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic token-abc", svc: &stubVisitors{}, want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer   ", svc: &stubVisitors{}, want: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", svc: &stubVisitors{}, want: http.StatusUnauthorized},
		{name: "lookup failure", header: "Bearer token-abc", svc: &stubVisitors{lookupErr: errors.New("boom")}, want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(visitorMiddleware(tc.svc))
			router.GET("/me/test", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me/test", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestBuildRouter_RequiresCoreServices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if _, err := buildRouter(logDiscard(), Deps{}, nil); err == nil {
		t.Fatalf("expected error without services")
	}
	if _, err := buildRouter(logDiscard(), Deps{Visitors: &stubVisitors{}}, nil); err == nil {
		t.Fatalf("expected error without storefront")
	}
}

func TestHealthAndReady_WithoutDB(t *testing.T) {
	env := newTestEnv(t, nil)

	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/readyz", "", ""), http.StatusOK)
}

func TestReadyHandler_ReportsFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/readyz", readyHandler(map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"sqlite":   func(context.Context) error { return errors.New("disk gone") },
	}, logDiscard()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Checks["postgres"] != "ok" || body.Checks["sqlite"] != "unavailable" {
		t.Fatalf("unexpected checks %+v", body.Checks)
	}
}

func TestIssueVisitorToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/visitors/token", "", "")
	expectStatus(t, rec, http.StatusCreated)
	resp := decode[tokenResponse](t, rec)
	if resp.AccessToken != "token-v1" || resp.VisitorID != "v1" || resp.TokenType != "Bearer" || resp.ExpiresIn != 3600 {
		t.Fatalf("unexpected token response %+v", resp)
	}
}

func TestCatalogRoutes_AbsentWithoutCatalog(t *testing.T) {
	env := newTestEnv(t, nil)

	expectStatus(t, env.do(t, http.MethodGet, "/courses", "", ""), http.StatusNotFound)
}
