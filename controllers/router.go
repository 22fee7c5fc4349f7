package controllers

import (
	"slopesentry/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every HTTP route. Monitor must be set before requests
// are served.
func NewRouter(allowOrigins []string, ingestRPS float64) *gin.Engine {
	r := gin.Default()
	if len(allowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	// Public routes
	r.GET("/health", Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/signup", Signup)
	r.POST("/login", Login)
	r.POST("/api/sensor-data", middlewares.RateLimit(ingestRPS), ReceiveData)

	// Protected routes using auth middleware
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	auth.GET("/ws", HandleWebSocket)
	auth.GET("/api/latest", GetLatest)
	auth.GET("/api/history", GetHistory)
	auth.GET("/api/alerts", GetAlertHistory)
	auth.GET("/api/alerts/count", GetAlertCount)
	auth.GET("/api/diagnostics", GetDiagnostics)
	auth.GET("/api/thresholds", GetThresholds)
	auth.POST("/api/thresholds/check", CheckThresholds)
	auth.GET("/download-csv", DownloadCSV)
	auth.GET("/device-config", GetDeviceConfig)
	auth.POST("/device-config/maintenance/start", StartMaintenance)
	auth.POST("/device-config/maintenance/stop", StopMaintenance)
	auth.DELETE("/delete/:id", DeleteRecord)
	auth.DELETE("/delete/all", DeleteAllRecords)
	auth.POST("/promote-admin", PromoteToAdmin)
	auth.GET("/profile", GetProfile)
	auth.GET("/users", GetUsers)
	auth.POST("/reports", SubmitReport)
	auth.GET("/reports", GetReports)
	auth.GET("/reports/stats", GetReportStats)
	auth.PATCH("/reports/:id", UpdateReportStatus)

	return r
}
