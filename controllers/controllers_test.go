package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slopesentry/config"
	"slopesentry/models"
	"slopesentry/monitor"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setup gives each test a fresh in-memory database, service and router.
func setup(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, MigrateModels(db))
	require.NoError(t, config.InitMaintenanceState(db))
	config.JWTSecret = []byte("test-secret")

	Monitor = monitor.NewService(monitor.Options{
		SiteID:        "hillside-a",
		Store:         monitor.GormStore{DB: db},
		Broadcaster:   LiveHub,
		InMaintenance: config.InMaintenance,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return NewRouter(nil, 0)
}

func createUser(t *testing.T, name, role string) string {
	t.Helper()
	user := models.User{Username: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, config.DB.Create(&user).Error)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(config.JWTSecret)
	require.NoError(t, err)
	return token
}

func do(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func reading(rain, soil, tilt float64) gin.H {
	return gin.H{"rain_value": rain, "soil_moisture": soil, "tilt_value": tilt}
}

// feedStableThenTilt posts four calm readings and a fifth with tilt in danger.
func feedStableThenTilt(t *testing.T, r http.Handler) {
	t.Helper()
	for i := 0; i < 4; i++ {
		w := do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 2))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 30))
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestHealth(t *testing.T) {
	r := setup(t)
	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"Landslide IoT System"}`, w.Body.String())
}

func TestReceiveData(t *testing.T) {
	r := setup(t)

	var first map[string]interface{}
	w := do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 2))
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &first)
	assert.Equal(t, "success", first["status"])
	assert.Equal(t, "Initializing", first["risk_state"])
	assert.Equal(t, 0.0, first["risk_percentage"])

	for i := 0; i < 3; i++ {
		do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 2))
	}
	var fifth map[string]interface{}
	w = do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 30))
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &fifth)
	assert.Equal(t, "High", fifth["risk_state"])
	assert.Equal(t, 100.0, fifth["risk_percentage"])

	var stored int64
	config.DB.Model(&models.SensorReading{}).Where("scored = ?", true).Count(&stored)
	assert.Equal(t, int64(5), stored)
}

func TestReceiveDataRejectsBadPayload(t *testing.T) {
	r := setup(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing tilt", `{"rain_value":1,"soil_moisture":2}`},
		{"not json", `rain=1`},
		{"string value", `{"rain_value":"wet","soil_moisture":2,"tilt_value":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sensor-data", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	assert.Equal(t, 0, Monitor.Diagnostics().HistoryLength, "rejected payloads never reach the engine")
}

func TestReceiveDataDuringMaintenance(t *testing.T) {
	r := setup(t)
	admin := createUser(t, "admin", models.RoleAdmin)

	w := do(r, http.MethodPost, "/device-config/maintenance/start", admin, gin.H{"reason": "recalibrating tilt"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 2))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 0, Monitor.Diagnostics().HistoryLength)

	var cfg map[string]interface{}
	decode(t, do(r, http.MethodGet, "/device-config", admin, nil), &cfg)
	assert.Equal(t, true, cfg["maintenance_mode"])
	assert.Equal(t, "recalibrating tilt", cfg["reason"])

	w = do(r, http.MethodPost, "/device-config/maintenance/stop", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 2))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, Monitor.Diagnostics().HistoryLength)
}

func TestMaintenanceRequiresAdmin(t *testing.T) {
	r := setup(t)
	user := createUser(t, "villager", models.RoleCommunity)

	w := do(r, http.MethodPost, "/device-config/maintenance/start", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, config.InMaintenance())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setup(t)
	for _, path := range []string{"/api/latest", "/api/history", "/api/alerts", "/api/diagnostics", "/profile", "/reports"} {
		w := do(r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestLatestAndHistory(t *testing.T) {
	r := setup(t)
	token := createUser(t, "viewer", models.RoleCommunity)

	w := do(r, http.MethodGet, "/api/latest", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	feedStableThenTilt(t, r)

	var latest models.SensorReading
	decode(t, do(r, http.MethodGet, "/api/latest", token, nil), &latest)
	assert.Equal(t, 30.0, latest.TiltValue)
	assert.Equal(t, "High", latest.RiskState)
	assert.Equal(t, "danger", latest.TiltStatus)
	assert.Equal(t, "hillside-a", latest.SiteID)

	var history []models.SensorReading
	decode(t, do(r, http.MethodGet, "/api/history?limit=3", token, nil), &history)
	require.Len(t, history, 3)
	assert.Equal(t, latest.ID, history[0].ID, "latest first")

	decode(t, do(r, http.MethodGet, "/api/history?risk_state=Initializing", token, nil), &history)
	assert.Len(t, history, 4)
}

func TestAlerts(t *testing.T) {
	r := setup(t)
	token := createUser(t, "viewer", models.RoleCommunity)
	feedStableThenTilt(t, r)

	var count map[string]int
	decode(t, do(r, http.MethodGet, "/api/alerts/count", token, nil), &count)
	assert.Equal(t, 1, count["count"])

	var alerts []map[string]interface{}
	decode(t, do(r, http.MethodGet, "/api/alerts", token, nil), &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Ground Tilt", alerts[0]["type"])
	assert.Equal(t, 100.0, alerts[0]["risk_score"])
}

func TestDiagnosticsAndThresholds(t *testing.T) {
	r := setup(t)
	token := createUser(t, "viewer", models.RoleCommunity)
	do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 2))
	do(r, http.MethodPost, "/api/sensor-data", "", reading(20, 60, 4))

	var diag monitor.Diagnostics
	decode(t, do(r, http.MethodGet, "/api/diagnostics", token, nil), &diag)
	assert.Equal(t, "hillside-a", diag.SiteID)
	assert.Equal(t, 20, diag.WindowSize)
	assert.Equal(t, 2, diag.HistoryLength)
	assert.InDelta(t, 15.0, diag.RollingMean.Rain, 1e-9)
	assert.InDelta(t, 50.0, diag.RollingMean.Soil, 1e-9)
	assert.InDelta(t, 3.0, diag.RollingMean.Tilt, 1e-9)

	w := do(r, http.MethodGet, "/api/thresholds", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"rain": {"warning": 50, "danger": 75, "unit": ""},
		"soil": {"warning": 70, "danger": 85, "unit": "%"},
		"tilt": {"warning": 15, "danger": 25, "unit": "°"}
	}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/thresholds/check", token, reading(10, 72, 25))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"rain": {"status": "normal", "level": "Low", "message": "Within normal range"},
		"soil": {"status": "warning", "level": "Moderate", "message": "Exceeds warning threshold (70.0%)"},
		"tilt": {"status": "danger", "level": "High", "message": "Exceeds danger threshold (25.0°)"}
	}`, w.Body.String())
	assert.Equal(t, 2, Monitor.Diagnostics().HistoryLength, "checking thresholds records nothing")
}

func TestDeleteRecords(t *testing.T) {
	r := setup(t)
	admin := createUser(t, "admin", models.RoleAdmin)
	user := createUser(t, "villager", models.RoleCommunity)
	feedStableThenTilt(t, r)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, "/delete/1", user, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/delete/abc", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/delete/999", admin, nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/delete/1", admin, nil).Code)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, "/delete/all", user, nil).Code)
	var res map[string]interface{}
	w := do(r, http.MethodDelete, "/delete/all", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Equal(t, 4.0, res["deleted_count"])

	var left int64
	config.DB.Model(&models.SensorReading{}).Count(&left)
	assert.Zero(t, left)
	assert.Equal(t, 5, Monitor.Diagnostics().HistoryLength, "engine history is kept")
}

func TestDownloadCSV(t *testing.T) {
	r := setup(t)
	token := createUser(t, "viewer", models.RoleCommunity)
	feedStableThenTilt(t, r)

	w := do(r, http.MethodGet, "/download-csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "timestamp,rain_value,soil_moisture,tilt_value,risk_score,risk_state,z_rain,z_soil,z_tilt", lines[0])
	assert.Contains(t, lines[1], ",30.00,100.00,High,")
}

func TestSignupAndLogin(t *testing.T) {
	r := setup(t)

	var res map[string]interface{}
	w := do(r, http.MethodPost, "/signup", "", gin.H{"username": "first", "email": "first@example.com", "password": "password1"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &res)
	assert.Equal(t, models.RoleAdmin, res["role"], "first account administers the station")

	w = do(r, http.MethodPost, "/signup", "", gin.H{"username": "second", "email": "second@example.com", "password": "password2"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &res)
	assert.Equal(t, models.RoleCommunity, res["role"])

	w = do(r, http.MethodPost, "/signup", "", gin.H{"username": "second", "email": "second@example.com", "password": "password2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/login", "", gin.H{"username": "second", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var login map[string]string
	w = do(r, http.MethodPost, "/login", "", gin.H{"username": "second", "password": "password2"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &login)
	require.NotEmpty(t, login["token"])

	var profile map[string]interface{}
	decode(t, do(r, http.MethodGet, "/profile", login["token"], nil), &profile)
	assert.Equal(t, "second", profile["username"])
	assert.NotContains(t, profile, "password")

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/users", login["token"], nil).Code)
}

func TestPromoteToAdmin(t *testing.T) {
	r := setup(t)
	admin := createUser(t, "admin", models.RoleAdmin)
	createUser(t, "villager", models.RoleCommunity)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/promote-admin", admin, gin.H{"email": "nobody@example.com"}).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/promote-admin", admin, gin.H{"email": "villager@example.com"}).Code)

	var user models.User
	require.NoError(t, config.DB.Where("username = ?", "villager").First(&user).Error)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestReports(t *testing.T) {
	r := setup(t)
	admin := createUser(t, "admin", models.RoleAdmin)
	user := createUser(t, "villager", models.RoleCommunity)
	other := createUser(t, "neighbour", models.RoleCommunity)

	var report models.Report
	w := do(r, http.MethodPost, "/reports", user, gin.H{
		"report_type": "Ground crack",
		"description": "New crack along the drain behind block C",
		"location":    "Block C",
		"severity":    "High",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &report)
	assert.Equal(t, models.ReportPending, report.Status)
	assert.Equal(t, "villager", report.UserName)

	w = do(r, http.MethodPost, "/reports", other, gin.H{"report_type": "Seepage", "description": "wet wall", "severity": "Extreme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/reports", other, gin.H{"report_type": "Seepage", "description": "wet wall", "severity": "Low"})
	require.Equal(t, http.StatusCreated, w.Code)

	var mine []models.Report
	decode(t, do(r, http.MethodGet, "/reports", user, nil), &mine)
	assert.Len(t, mine, 1)

	var all []models.Report
	decode(t, do(r, http.MethodGet, "/reports", admin, nil), &all)
	assert.Len(t, all, 2)

	path := "/reports/" + jsonNumber(report.ID)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPatch, path, user, gin.H{"status": "Resolved"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, path, admin, gin.H{"status": "Closed"}).Code)

	var updated models.Report
	w = do(r, http.MethodPatch, path, admin, gin.H{"status": "Reviewed", "admin_notes": "Engineer visiting Monday"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &updated)
	assert.Equal(t, models.ReportReviewed, updated.Status)
	assert.Equal(t, "Engineer visiting Monday", updated.AdminNotes)

	decode(t, do(r, http.MethodGet, "/reports?status=Pending", admin, nil), &all)
	assert.Len(t, all, 1)

	var stats struct {
		Total      int            `json:"total"`
		Pending    int            `json:"pending"`
		Reviewed   int            `json:"reviewed"`
		Resolved   int            `json:"resolved"`
		BySeverity map[string]int `json:"by_severity"`
	}
	decode(t, do(r, http.MethodGet, "/reports/stats", user, nil), &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Reviewed)
	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 1, stats.BySeverity["High"])
	assert.Equal(t, 1, stats.BySeverity["Low"])
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestWebSocketReceivesVerdicts(t *testing.T) {
	r := setup(t)
	token := createUser(t, "viewer", models.RoleCommunity)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return LiveHub.Len() == 1 }, time.Second, 10*time.Millisecond)

	for i := 0; i < 4; i++ {
		do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 2))
	}
	do(r, http.MethodPost, "/api/sensor-data", "", reading(10, 40, 30))

	var kinds []string
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(kinds) < 6 {
		var msg struct {
			Type       string               `json:"type"`
			Data       models.SensorReading `json:"data"`
			AlertCount int64                `json:"alert_count"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		kinds = append(kinds, msg.Type)
		if msg.Type == "alert" {
			assert.Equal(t, int64(1), msg.AlertCount)
			assert.Equal(t, "High", msg.Data.RiskState)
		}
	}
	assert.Equal(t, []string{"reading", "reading", "reading", "reading", "reading", "alert"}, kinds)

	conn.Close()
	require.Eventually(t, func() bool { return LiveHub.Len() == 0 }, time.Second, 10*time.Millisecond)
}
