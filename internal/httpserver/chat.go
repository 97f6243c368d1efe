package httpserver

import (
	"errors"
	"net/http"

	"coursemart/internal/chat/widget"
	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

func getChatHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sf.Widget(c.Request.Context(), visitorFrom(c)).View())
	}
}

// sendChatMessageHandler accepts the message and returns straight away; the
// bot's answer shows up on a later GET /me/chat.
func sendChatMessageHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		w := sf.Widget(c.Request.Context(), visitorFrom(c))
		msg, err := w.Send(c.Request.Context(), req.Text)
		if err != nil {
			if errors.Is(err, widget.ErrEmptyMessage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": msg, "chat": w.View()})
	}
}

func openChatHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sf.Widget(c.Request.Context(), visitorFrom(c)).Open(c.Request.Context()))
	}
}

func closeChatHandler(sf Storefront) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sf.Widget(c.Request.Context(), visitorFrom(c)).Close(c.Request.Context()))
	}
}
