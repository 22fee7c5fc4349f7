package controllers

import (
	"net/http"

	"slopesentry/detector"
	"slopesentry/models"

	"github.com/gin-gonic/gin"
)

// GetDiagnostics returns the engine's rolling state for this site.
func GetDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, Monitor.Diagnostics())
}

// GetThresholds returns the fixed safety thresholds.
func GetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, detector.DefaultThresholds())
}

// CheckThresholds classifies a hypothetical reading against the thresholds
// without feeding it to the engine.
func CheckThresholds(c *gin.Context) {
	var payload models.ReadingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data format"})
		return
	}
	rain, soil, tilt, err := payload.Values()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, Monitor.CheckThresholds(detector.Reading{Rain: rain, Soil: soil, Tilt: tilt}))
}
