package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coursemart/internal/chat/flow"
	"coursemart/internal/chat/sessions"
	"coursemart/internal/chat/widget"
	"coursemart/internal/domain"
	"coursemart/internal/kv"
	"coursemart/internal/logging"
	transcriptrepo "coursemart/internal/repository/transcript"
	"coursemart/internal/service/storefront"
	transcriptsvc "coursemart/internal/service/transcript"
	"coursemart/internal/service/visitor"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func logDiscard() *logrus.Logger {
	return logging.Discard()
}

// stubVisitors accepts "token-<id>" as the token of visitor <id>.
type stubVisitors struct {
	issueErr  error
	lookupErr error
}

func (s *stubVisitors) Issue(_ context.Context) (string, string, error) {
	if s.issueErr != nil {
		return "", "", s.issueErr
	}
	return "token-v1", "v1", nil
}

func (s *stubVisitors) LookupByToken(_ context.Context, token string) (string, error) {
	if s.lookupErr != nil {
		return "", s.lookupErr
	}
	id, ok := strings.CutPrefix(token, "token-")
	if !ok || id == "" {
		return "", visitor.ErrInvalidToken
	}
	return id, nil
}

func (s *stubVisitors) AccessTTLSeconds() int {
	return 3600
}

type stubCatalog struct {
	courses    []domain.Course
	categories []domain.Category
	err        error
}

func (s *stubCatalog) ListCourses(_ context.Context, categoryKey string) ([]domain.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.Course{}
	for _, c := range s.courses {
		if categoryKey == "" || c.CategoryKey == categoryKey {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubCatalog) GetCourse(_ context.Context, id string) (*domain.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, c := range s.courses {
		if c.ID == id {
			clone := c
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubCatalog) ListCategories(_ context.Context) ([]domain.Category, error) {
	return s.categories, s.err
}

type testEnv struct {
	router      *gin.Engine
	registry    *storefront.Registry
	transcripts *transcriptrepo.Memory
}

// newTestEnv wires the real storefront and transcript service over in-memory
// storage. Chat replies run as soon as they are scheduled.
func newTestEnv(t *testing.T, catalog CatalogService) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := transcriptrepo.NewMemory(0, 0)
	transcripts := transcriptsvc.New(repo, logDiscard())
	registry := storefront.New(kv.NewMemory(), flow.New(nil), sessions.New(100, time.Hour), transcripts, logDiscard(), storefront.Options{
		Widget: widget.Options{Schedule: func(_ time.Duration, fn func()) { fn() }},
	})
	deps := Deps{
		Visitors:    &stubVisitors{},
		Storefront:  registry,
		Transcripts: transcripts,
	}
	if catalog != nil {
		deps.Catalog = catalog
	}
	router, err := buildRouter(logDiscard(), deps, nil)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &testEnv{router: router, registry: registry, transcripts: repo}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d body=%s", want, rec.Code, rec.Body.String())
	}
}

