package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	VisitorID   string `json:"visitor_id"`
}

func issueVisitorTokenHandler(visitors VisitorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, visitorID, err := visitors.Issue(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, tokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   visitors.AccessTTLSeconds(),
			VisitorID:   visitorID,
		})
	}
}
