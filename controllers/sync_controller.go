package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"training-management-api/models"
	"training-management-api/services"
	"training-management-api/utils"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/admin/sync/:entity_type?mode=incremental
func TriggerSync(c *gin.Context) {
	entityType := utils.SanitizeInput(c.Param("entity_type"))
	mode := utils.SanitizeInput(c.DefaultQuery("mode", models.SyncModeIncremental))

	orchestrator := services.NewSyncOrchestrator(nil, nil, nil)
	run, err := orchestrator.RunSync(c.Request.Context(), &services.SyncInput{
		EntityType:    entityType,
		Mode:          mode,
		TriggerSource: models.SyncTriggerManual,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSyncAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "sync already running for " + entityType})
		case errors.Is(err, services.ErrUnknownEntityType):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown entity type"})
		case errors.Is(err, services.ErrInvalidSyncMode):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			// The run record (aborted) is still returned for inspection.
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "run": run})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "run": run})
}

// GET /api/v1/admin/sync/:entity_type/status
func GetSyncStatus(c *gin.Context) {
	entityType := utils.SanitizeInput(c.Param("entity_type"))

	runSvc := services.NewSyncRunService(nil)
	running, err := runSvc.GetRunning(entityType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if running != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "running": true, "run": running})
		return
	}

	last, err := runSvc.GetLatestCompleted(entityType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "running": false, "run": last})
}

// GET /api/v1/admin/sync/:entity_type/runs?limit=20&offset=0
func ListSyncRuns(c *gin.Context) {
	entityType := utils.SanitizeInput(c.Param("entity_type"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	runs, total, err := services.NewSyncRunService(nil).List(entityType, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "total": total, "runs": runs})
}

// POST /api/v1/admin/:entity_type/:id/push
func PushEntityToRemote(c *gin.Context) {
	entityType := utils.SanitizeInput(c.Param("entity_type"))
	id64, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid id"})
		return
	}

	body, err := services.NewRemotePushService(nil, nil).PushToRemote(c.Request.Context(), entityType, uint(id64))
	if err != nil {
		if errors.Is(err, services.ErrUnknownEntityType) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown entity type"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "remote_response": string(body)})
}
