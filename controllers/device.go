package controllers

import (
	"net/http"
	"time"

	"slopesentry/config"

	"github.com/gin-gonic/gin"
)

// GET /device-config
func GetDeviceConfig(c *gin.Context) {
	on, start, reason := config.GetMaintenanceState()

	var startTimestamp int64
	if on {
		startTimestamp = start.Unix()
	}
	c.JSON(http.StatusOK, gin.H{
		"site_id":          Monitor.SiteID(),
		"maintenance_mode": on,
		"start_timestamp":  startTimestamp,
		"reason":           reason,
		"scoring_enabled":  !on,
	})
}

// POST /device-config/maintenance/start
func StartMaintenance(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// the body is optional
	_ = c.ShouldBindJSON(&req)

	start := time.Now()
	if err := config.SetMaintenanceState(config.DB, true, start, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start maintenance mode"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Maintenance mode activated. Readings will be stored without scoring.",
		"start_timestamp":  start.Unix(),
		"maintenance_mode": true,
	})
}

// POST /device-config/maintenance/stop
func StopMaintenance(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	if err := config.SetMaintenanceState(config.DB, false, time.Time{}, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop maintenance mode"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Maintenance mode stopped. Scoring resumed.",
		"maintenance_mode": false,
	})
}
