package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"coursemart/internal/domain"
	"coursemart/internal/notify"
	"coursemart/internal/service/storefront"
	"github.com/gin-gonic/gin"
)

// addItemRequest either names a catalog course by CourseID or carries the
// item snapshot directly.
type addItemRequest struct {
	CourseID string   `json:"courseId"`
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Price    *float64 `json:"price"`
	Image    string   `json:"image"`
}

type cartResponse struct {
	Cart          domain.CartState      `json:"cart"`
	Summary       domain.CartSummary    `json:"summary"`
	Notifications []notify.Notification `json:"notifications"`
}

func toCartResponse(entry *storefront.CartEntry) cartResponse {
	return cartResponse{
		Cart:          entry.Manager.State(),
		Summary:       entry.Manager.Summary(),
		Notifications: entry.Inbox.Drain(),
	}
}

func getCartHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, toCartResponse(sf.Cart(c.Request.Context(), visitorFrom(c))))
	}
}

func addCartItemHandler(sf Storefront, catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		item, err := resolveItem(c, req, catalog)
		if err != nil {
			writeError(c, err)
			return
		}
		entry := sf.Cart(c.Request.Context(), visitorFrom(c))
		entry.Manager.Add(c.Request.Context(), item)
		c.JSON(http.StatusOK, toCartResponse(entry))
	}
}

func resolveItem(c *gin.Context, req addItemRequest, catalog CatalogService) (domain.CartItem, error) {
	if courseID := strings.TrimSpace(req.CourseID); courseID != "" {
		if catalog == nil {
			return domain.CartItem{}, fmt.Errorf("%w: catalog unavailable, send the item instead", domain.ErrInvalidInput)
		}
		course, err := catalog.GetCourse(c.Request.Context(), courseID)
		if err != nil {
			return domain.CartItem{}, err
		}
		return course.CartItem(), nil
	}

	item := domain.CartItem{
		ID:    strings.TrimSpace(req.ID),
		Title: strings.TrimSpace(req.Title),
		Image: strings.TrimSpace(req.Image),
	}
	if item.ID == "" || item.Title == "" {
		return domain.CartItem{}, fmt.Errorf("%w: id and title required", domain.ErrInvalidInput)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return domain.CartItem{}, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
		}
		item.Price = *req.Price
	}
	return item, nil
}

func removeCartItemHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := sf.Cart(c.Request.Context(), visitorFrom(c))
		entry.Manager.Remove(c.Request.Context(), c.Param("id"))
		c.JSON(http.StatusOK, toCartResponse(entry))
	}
}

func clearCartHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := sf.Cart(c.Request.Context(), visitorFrom(c))
		entry.Manager.Clear(c.Request.Context())
		c.JSON(http.StatusOK, toCartResponse(entry))
	}
}

func toggleCartHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := sf.Cart(c.Request.Context(), visitorFrom(c))
		entry.Manager.ToggleOpen()
		c.JSON(http.StatusOK, toCartResponse(entry))
	}
}

func cartItemStatusHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		entry := sf.Cart(c.Request.Context(), visitorFrom(c))
		c.JSON(http.StatusOK, gin.H{"id": id, "inCart": entry.Manager.IsInCart(id)})
	}
}
