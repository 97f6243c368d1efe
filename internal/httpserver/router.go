package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"coursemart/internal/chat/widget"
	"coursemart/internal/domain"
	"coursemart/internal/service/storefront"
	"coursemart/internal/service/visitor"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const visitorCtxKey ctxKey = "visitorID"

type VisitorService interface {
	Issue(ctx context.Context) (accessToken, visitorID string, err error)
	LookupByToken(ctx context.Context, token string) (string, error)
	AccessTTLSeconds() int
}

type CatalogService interface {
	ListCourses(ctx context.Context, categoryKey string) ([]domain.Course, error)
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// TranscriptService backs the transcript API. Authorize hides sessions owned
// by another visitor behind domain.ErrNotFound.
type TranscriptService interface {
	widget.TranscriptStore
	Authorize(ctx context.Context, sessionID, userID string) error
}

// Storefront hands out the live per-visitor cart and chat widget.
type Storefront interface {
	Cart(ctx context.Context, visitorID string) *storefront.CartEntry
	Widget(ctx context.Context, visitorID string) *widget.Widget
}

// Deps carries the services behind the routes. Catalog and Transcripts are
// optional; their routes are only registered when set.
type Deps struct {
	Visitors    VisitorService
	Storefront  Storefront
	Catalog     CatalogService
	Transcripts TranscriptService
	// Ready lists the readiness checks served on /readyz, keyed by name.
	Ready map[string]ReadinessCheck
}

// buildRouter wires routes for the API.
func buildRouter(logger *logrus.Logger, deps Deps, corsOrigins []string) (*gin.Engine, error) {
	if deps.Visitors == nil {
		return nil, errors.New("httpserver: visitor service required")
	}
	if deps.Storefront == nil {
		return nil, errors.New("httpserver: storefront required")
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(corsOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready, logger))

	router.POST("/visitors/token", issueVisitorTokenHandler(deps.Visitors))

	if deps.Catalog != nil {
		router.GET("/courses", listCoursesHandler(deps.Catalog))
		router.GET("/courses/:id", getCourseHandler(deps.Catalog))
		router.GET("/categories", listCategoriesHandler(deps.Catalog))
	}

	me := router.Group("/me", visitorMiddleware(deps.Visitors))
	me.GET("/cart", getCartHandler(deps.Storefront))
	me.DELETE("/cart", clearCartHandler(deps.Storefront))
	me.POST("/cart/items", addCartItemHandler(deps.Storefront, deps.Catalog))
	me.GET("/cart/items/:id", cartItemStatusHandler(deps.Storefront))
	me.DELETE("/cart/items/:id", removeCartItemHandler(deps.Storefront))
	me.POST("/cart/toggle", toggleCartHandler(deps.Storefront))

	me.GET("/chat", getChatHandler(deps.Storefront))
	me.POST("/chat/messages", sendChatMessageHandler(deps.Storefront))
	me.POST("/chat/open", openChatHandler(deps.Storefront))
	me.POST("/chat/close", closeChatHandler(deps.Storefront))

	if deps.Transcripts != nil {
		chat := router.Group("/chat", visitorMiddleware(deps.Visitors))
		chat.GET("/sessions/:sessionId/messages", fetchMessagesHandler(deps.Transcripts))
		chat.POST("/messages", saveMessageHandler(deps.Transcripts))
		chat.POST("/sessions/:sessionId/end", endSessionHandler(deps.Transcripts))
		chat.POST("/sessions/:sessionId/handoff", createHandoffHandler(deps.Transcripts))
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// visitorMiddleware resolves the bearer token to a visitor id and stores it
// on the request context.
func visitorMiddleware(visitors VisitorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		visitorID, err := visitors.LookupByToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, visitor.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		ctx := context.WithValue(c.Request.Context(), visitorCtxKey, visitorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func visitorFrom(c *gin.Context) string {
	id, _ := c.Request.Context().Value(visitorCtxKey).(string)
	return id
}

// writeError maps service errors onto status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, visitor.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
