package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"slopesentry/config"
	"slopesentry/ingest"
	"slopesentry/remote"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check configuration and connectivity to every configured dependency",
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

type check struct {
	name string
	// skip is set when the dependency is not configured
	skip string
	run  func(ctx context.Context) error
}

var errChecksFailed = errors.New("setup verification failed")

// runChecks runs each check in order and reports whether all passed.
func runChecks(ctx context.Context, out io.Writer, checks []check) bool {
	ok := true
	for _, c := range checks {
		if c.skip != "" {
			fmt.Fprintf(out, "  - %-12s skipped (%s)\n", c.name, c.skip)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := c.run(cctx)
		cancel()
		if err != nil {
			ok = false
			fmt.Fprintf(out, "  ✗ %-12s %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(out, "  ✓ %-12s ok\n", c.name)
	}
	return ok
}

func skipUnless(configured bool, env string) string {
	if configured {
		return ""
	}
	return env + " not set"
}

func verifyChecks(s *config.Settings) []check {
	return []check{
		{
			name: "database",
			skip: skipUnless(s.DatabaseURL != "", "DATABASE_URL"),
			run: func(ctx context.Context) error {
				db, err := config.OpenDB(s.DatabaseURL)
				if err != nil {
					return err
				}
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				defer sqlDB.Close()
				return sqlDB.PingContext(ctx)
			},
		},
		{
			name: "redis",
			skip: skipUnless(s.RedisAddr != "", "REDIS_ADDR"),
			run: func(ctx context.Context) error {
				rdb := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
				defer rdb.Close()
				return rdb.Ping(ctx).Err()
			},
		},
		{
			name: "kafka",
			skip: skipUnless(len(s.KafkaBrokers) > 0, "KAFKA_BROKERS"),
			run: func(ctx context.Context) error {
				conn, err := kafka.DialContext(ctx, "tcp", s.KafkaBrokers[0])
				if err != nil {
					return err
				}
				defer conn.Close()
				_, err = conn.Brokers()
				return err
			},
		},
		{
			name: "mqtt",
			skip: skipUnless(s.MQTTBroker != "", "MQTT_BROKER"),
			run: func(ctx context.Context) error {
				client, err := ingest.NewClient(s.MQTTBroker, "slopesentry-verify")
				if err != nil {
					return err
				}
				defer client.Disconnect(100)
				if !client.IsConnected() {
					return fmt.Errorf("not connected to %s", s.MQTTBroker)
				}
				return nil
			},
		},
		{
			name: "influxdb",
			skip: skipUnless(s.InfluxURL != "", "INFLUX_URL"),
			run: func(ctx context.Context) error {
				client := influxdb2.NewClient(s.InfluxURL, s.InfluxToken)
				defer client.Close()
				up, err := client.Ping(ctx)
				if err != nil {
					return err
				}
				if !up {
					return fmt.Errorf("%s is not ready", s.InfluxURL)
				}
				return nil
			},
		},
		{
			name: "remote",
			skip: skipUnless(s.RemoteBackendURL != "", "REMOTE_BACKEND_URL"),
			run: func(ctx context.Context) error {
				return remote.NewClient(s.RemoteBackendURL, nil).Health(ctx)
			},
		},
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration")
	s, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "  ✗ %v\n", err)
		return errChecksFailed
	}
	fmt.Fprintf(out, "  ✓ site=%s window=%d timezone=%s\n", s.SiteID, s.WindowSize, s.Location)
	if s.JWTSecret == "change-me" {
		fmt.Fprintln(out, "  ! JWT_SECRET not set, using the development default")
	}

	fmt.Fprintln(out, "Dependencies")
	if !runChecks(cmd.Context(), out, verifyChecks(s)) {
		return errChecksFailed
	}
	fmt.Fprintln(out, "All checks passed")
	return nil
}
