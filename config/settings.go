package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"slopesentry/detector"

	"github.com/joho/godotenv"
)

// Runtime values shared by handlers and middleware, set once at startup.
var (
	JWTSecret = []byte("change-me")
	Location  = time.UTC
)

// Apply copies the settings that handlers read from package state.
func (s *Settings) Apply() {
	JWTSecret = []byte(s.JWTSecret)
	if s.Location != nil {
		Location = s.Location
	}
}

// Settings is the process configuration, read from the environment.
type Settings struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	SiteID      string
	WindowSize  int
	CORSOrigins []string
	LogLevel    string
	Location    *time.Location

	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string

	MQTTBroker string
	MQTTTopic  string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	RemoteBackendURL   string
	RemotePollInterval time.Duration

	IngestRateLimit float64
}

// Load reads a .env file if present and then the environment.
func Load() (*Settings, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	s := &Settings{
		Port:             getenv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SiteID:           getenv("SITE_ID", "default"),
		CORSOrigins:      splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       getenv("KAFKA_TOPIC", "slope.verdicts"),
		MQTTBroker:       os.Getenv("MQTT_BROKER"),
		MQTTTopic:        getenv("MQTT_TOPIC", "slopesentry/+/readings"),
		InfluxURL:        os.Getenv("INFLUX_URL"),
		InfluxToken:      os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:        os.Getenv("INFLUX_ORG"),
		InfluxBucket:     getenv("INFLUX_BUCKET", "slopesentry"),
		RemoteBackendURL: strings.TrimRight(os.Getenv("REMOTE_BACKEND_URL"), "/"),
	}

	var err error
	if s.WindowSize, err = getInt("WINDOW_SIZE", detector.DefaultWindowSize); err != nil {
		return nil, err
	}
	if s.WindowSize <= 0 {
		return nil, fmt.Errorf("WINDOW_SIZE must be positive, got %d", s.WindowSize)
	}
	if s.RemotePollInterval, err = getDuration("REMOTE_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if s.IngestRateLimit, err = getFloat("INGEST_RATE_LIMIT", 5); err != nil {
		return nil, err
	}

	tz := getenv("TIMEZONE", "Asia/Kuala_Lumpur")
	if s.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", tz, err)
	}

	if s.JWTSecret == "" {
		s.JWTSecret = "change-me"
	}
	return s, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
