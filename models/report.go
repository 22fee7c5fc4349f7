package models

import "time"

const (
	ReportPending  = "Pending"
	ReportReviewed = "Reviewed"
	ReportResolved = "Resolved"
)

// Report is a field observation submitted by a community member,
// e.g. a ground crack or water seepage near the slope.
type Report struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index"`
	Timestamp   time.Time `json:"timestamp" gorm:"index"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	ReportType  string    `json:"report_type" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Location    string    `json:"location,omitempty"`
	Severity    string    `json:"severity" binding:"required,oneof=Low Medium High" gorm:"index"`
	Status      string    `json:"status" gorm:"index;default:Pending"`
	AdminNotes  string    `json:"admin_notes,omitempty"`
}
