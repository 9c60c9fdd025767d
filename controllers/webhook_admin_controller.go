package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"training-management-api/services"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/admin/webhooks/dead-letter?limit=20&offset=0
func ListDeadLetterWebhooks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := services.DefaultWebhookService().ListDeadLetters(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "total": total, "events": events})
}

// POST /api/v1/admin/webhooks/:id/replay
func ReplayWebhookEvent(c *gin.Context) {
	id64, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid event id"})
		return
	}

	event, err := services.DefaultWebhookService().Replay(c.Request.Context(), uint(id64))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "event not found"})
		case errors.Is(err, services.ErrEventNotReplayable):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "event is not dead-lettered"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "event": event})
}
