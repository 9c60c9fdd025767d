package controllers

import (
	"io"
	"net/http"

	"training-management-api/models"
	"training-management-api/services"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20

// POST /webhooks/remote
// The remote system signs the raw body with X-Signature (hex HMAC-SHA256).
// The response must return quickly: processing happens out of the request
// path, only the pending event is persisted here.
func ReceiveRemoteWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to read request body"})
		return
	}

	svc := services.DefaultWebhookService()
	result, err := svc.Ingest(c.Request.Context(), rawBody, c.GetHeader("X-Signature"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to persist event"})
		return
	}

	if result.Status == models.WebhookStatusRejected {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"event_id":  result.EventID,
		"status":    result.Status,
		"duplicate": result.Duplicate,
	})
}
