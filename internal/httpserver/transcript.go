package httpserver

import (
	"net/http"
	"strconv"

	"coursemart/internal/domain"
	"github.com/gin-gonic/gin"
)

type handoffRequest struct {
	Reason string `json:"reason"`
}

func fetchMessagesHandler(store TranscriptService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		sessionID := c.Param("sessionId")
		if err := store.Authorize(c.Request.Context(), sessionID, visitorFrom(c)); err != nil {
			writeError(c, err)
			return
		}
		msgs, err := store.FetchMessages(c.Request.Context(), sessionID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		if msgs == nil {
			msgs = []domain.ChatMessage{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

func saveMessageHandler(store TranscriptService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req domain.TranscriptEntry
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		// The author is always the caller, whatever the body claims.
		req.UserID = visitorFrom(c)
		if err := store.Authorize(c.Request.Context(), req.SessionID, req.UserID); err != nil {
			writeError(c, err)
			return
		}
		msg, err := store.SaveMessage(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func endSessionHandler(store TranscriptService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if err := store.Authorize(c.Request.Context(), sessionID, visitorFrom(c)); err != nil {
			writeError(c, err)
			return
		}
		if err := store.EndSession(c.Request.Context(), sessionID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createHandoffHandler(store TranscriptService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req handoffRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
				return
			}
		}
		sessionID := c.Param("sessionId")
		if err := store.Authorize(c.Request.Context(), sessionID, visitorFrom(c)); err != nil {
			writeError(c, err)
			return
		}
		h, err := store.CreateHandoff(c.Request.Context(), sessionID, req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, h)
	}
}
