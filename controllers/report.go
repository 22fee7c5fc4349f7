package controllers

import (
	"net/http"
	"time"

	"slopesentry/config"
	"slopesentry/models"

	"github.com/gin-gonic/gin"
)

type reportRequest struct {
	ReportType  string `json:"report_type" binding:"required"`
	Description string `json:"description" binding:"required"`
	Location    string `json:"location"`
	Severity    string `json:"severity" binding:"required,oneof=Low Medium High"`
}

type reportUpdateRequest struct {
	Status     string `json:"status" binding:"required,oneof=Pending Reviewed Resolved"`
	AdminNotes string `json:"admin_notes"`
}

// SubmitReport stores a field observation from the signed-in user.
func SubmitReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report"})
		return
	}

	report := models.Report{
		UserID:      user.ID,
		Timestamp:   time.Now(),
		UserName:    user.Username,
		UserEmail:   user.Email,
		ReportType:  req.ReportType,
		Description: req.Description,
		Location:    req.Location,
		Severity:    req.Severity,
		Status:      models.ReportPending,
	}
	if err := config.DB.Create(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
		return
	}
	c.JSON(http.StatusCreated, report)
}

// GetReports lists reports, newest first. Admins see every report,
// community members only their own.
func GetReports(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	query := config.DB.Order("timestamp desc").Limit(queryLimit(c))
	if user.Role != models.RoleAdmin {
		query = query.Where("user_id = ?", user.ID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var reports []models.Report
	if err := query.Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
		return
	}
	c.JSON(http.StatusOK, reports)
}

// GetReportStats counts reports by status and by severity.
func GetReportStats(c *gin.Context) {
	var reports []models.Report
	if err := config.DB.Select("status", "severity").Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
		return
	}

	stats := gin.H{"total": len(reports)}
	byStatus := map[string]int{models.ReportPending: 0, models.ReportReviewed: 0, models.ReportResolved: 0}
	bySeverity := map[string]int{"Low": 0, "Medium": 0, "High": 0}
	for _, r := range reports {
		byStatus[r.Status]++
		bySeverity[r.Severity]++
	}
	stats["pending"] = byStatus[models.ReportPending]
	stats["reviewed"] = byStatus[models.ReportReviewed]
	stats["resolved"] = byStatus[models.ReportResolved]
	stats["by_severity"] = bySeverity

	c.JSON(http.StatusOK, stats)
}

// UpdateReportStatus sets a report's review status (admin only).
func UpdateReportStatus(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	id, ok := paramID(c)
	if !ok {
		return
	}
	var report models.Report
	if err := config.DB.First(&report, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	var req reportUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	report.Status = req.Status
	if req.AdminNotes != "" {
		report.AdminNotes = req.AdminNotes
	}
	if err := config.DB.Save(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update report"})
		return
	}
	c.JSON(http.StatusOK, report)
}
