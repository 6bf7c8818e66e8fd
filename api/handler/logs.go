package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankscope/eventlog"
	"github.com/use-agent/rankscope/models"
)

// GetLogs returns a handler for GET /api/v1/logs, oldest event first.
func GetLogs(ring *eventlog.Ring) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.LogsResponse{
			Events:   ring.Snapshot(),
			Capacity: ring.Cap(),
		})
	}
}

// ClearLogs returns a handler for DELETE /api/v1/logs.
func ClearLogs(ring *eventlog.Ring) gin.HandlerFunc {
	return func(c *gin.Context) {
		ring.Clear()
		c.Status(http.StatusNoContent)
	}
}
