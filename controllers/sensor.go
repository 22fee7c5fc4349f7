package controllers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"slopesentry/config"
	"slopesentry/models"
	"slopesentry/monitor"
	"slopesentry/utils"

	"github.com/gin-gonic/gin"
)

// Monitor is the ingest pipeline for this station, set at startup.
var Monitor *monitor.Service

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// ReceiveData scores a reading posted by a station.
func ReceiveData(c *gin.Context) {
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

	res, err := Monitor.Ingest(c.Request.Context(), monitor.Input{
		Rain:   rain,
		Soil:   soil,
		Tilt:   tilt,
		Source: "http",
	})
	if errors.Is(err, monitor.ErrInvalidReading) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record reading"})
		return
	}

	if !res.Scored {
		c.JSON(http.StatusAccepted, gin.H{
			"status":  "accepted",
			"id":      res.Record.ID,
			"message": "Maintenance mode: reading stored without scoring",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":           "success",
		"id":               res.Record.ID,
		"risk_state":       res.Verdict.RiskState,
		"risk_percentage":  res.Verdict.RiskPercentage,
		"z_scores":         res.Verdict.ZScores,
		"threshold_status": res.Verdict.ThresholdStatus,
	})
}

// GetLatest returns the most recent reading, or an empty object.
func GetLatest(c *gin.Context) {
	var record models.SensorReading
	result := config.DB.Order("id desc").Limit(1).Find(&record)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch latest reading"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, record)
}

// paramID parses the :id path parameter, writing a 400 if it isn't a number.
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

// GetHistory returns recent readings, latest first.
func GetHistory(c *gin.Context) {
	var records []models.SensorReading
	query := config.DB.Order("id desc").Limit(queryLimit(c))
	if state := c.Query("risk_state"); state != "" {
		query = query.Where("risk_state = ?", state)
	}
	if err := query.Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetAlertCount returns the number of High verdicts on record.
func GetAlertCount(c *gin.Context) {
	var count int64
	if err := config.DB.Model(&models.SensorReading{}).Where("risk_state = ?", "High").Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GetAlertHistory returns High verdicts with the sensor that drove each one.
func GetAlertHistory(c *gin.Context) {
	var records []models.SensorReading
	if err := config.DB.Where("risk_state = ?", "High").Order("id desc").Limit(queryLimit(c)).Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := make([]gin.H, 0, len(records))
	for _, record := range records {
		if !utils.IsAlert(record) {
			continue
		}
		response = append(response, gin.H{
			"id":         record.ID,
			"timestamp":  record.Timestamp.In(config.Location).Format("2006-01-02 15:04:05"),
			"type":       utils.GetAlertType(record),
			"risk_score": record.RiskScore,
		})
	}

	c.JSON(http.StatusOK, response)
}

// DownloadCSV sends readings and verdicts as a CSV file.
func DownloadCSV(c *gin.Context) {
	var records []models.SensorReading
	if err := config.DB.Order("id desc").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch readings"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=slope_readings.csv")
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{
		"timestamp", "rain_value", "soil_moisture", "tilt_value",
		"risk_score", "risk_state", "z_rain", "z_soil", "z_tilt",
	})
	for _, record := range records {
		writer.Write([]string{
			record.Timestamp.In(config.Location).Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2f", record.RainValue),
			fmt.Sprintf("%.2f", record.SoilMoisture),
			fmt.Sprintf("%.2f", record.TiltValue),
			fmt.Sprintf("%.2f", record.RiskScore),
			record.RiskState,
			fmt.Sprintf("%.4f", record.ZScoreRain),
			fmt.Sprintf("%.4f", record.ZScoreSoil),
			fmt.Sprintf("%.4f", record.ZScoreTilt),
		})
	}
}

// DeleteRecord deletes a single reading (admin only).
func DeleteRecord(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	id, ok := paramID(c)
	if !ok {
		return
	}
	var record models.SensorReading
	if err := config.DB.First(&record, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	if err := config.DB.Delete(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

// DeleteAllRecords deletes all stored readings (admin only). The engine's
// in-memory history is not affected.
func DeleteAllRecords(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	result := config.DB.Where("1 = 1").Delete(&models.SensorReading{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete records"})
		return
	}
	if config.DB.Dialector.Name() == "postgres" {
		if err := config.DB.Exec("ALTER SEQUENCE sensor_readings_id_seq RESTART WITH 1").Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset primary key sequence"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "All records deleted successfully", "deleted_count": result.RowsAffected})
}

// Health reports that the service is up.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "Landslide IoT System"})
}
