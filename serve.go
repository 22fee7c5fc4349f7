package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slopesentry/config"
	"slopesentry/controllers"
	"slopesentry/ingest"
	"slopesentry/monitor"
	"slopesentry/remote"
	"slopesentry/sinks"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, MQTT ingest and remote poller",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	settings.Apply()

	logger := config.NewLogger(os.Stderr, settings.LogLevel)
	slog.SetDefault(logger)

	// Connect to PostgreSQL database
	db, err := config.OpenDB(settings.DatabaseURL)
	if err != nil {
		return err
	}
	if err := controllers.MigrateModels(db); err != nil {
		return err
	}
	if err := config.InitMaintenanceState(db); err != nil {
		return err
	}

	var sinkList []monitor.Sink
	if len(settings.KafkaBrokers) > 0 {
		publisher := sinks.NewKafkaPublisher(sinks.NewKafkaWriter(settings.KafkaBrokers, settings.KafkaTopic))
		defer publisher.Close()
		sinkList = append(sinkList, publisher)
		logger.Info("publishing verdicts to kafka", "brokers", settings.KafkaBrokers, "topic", settings.KafkaTopic)
	}
	if settings.InfluxURL != "" {
		influx := influxdb2.NewClient(settings.InfluxURL, settings.InfluxToken)
		defer influx.Close()
		sinkList = append(sinkList, sinks.NewInfluxWriter(influx.WriteAPIBlocking(settings.InfluxOrg, settings.InfluxBucket)))
		logger.Info("writing readings to influxdb", "url", settings.InfluxURL, "bucket", settings.InfluxBucket)
	}

	var snapshots monitor.Snapshots
	if settings.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
		defer rdb.Close()
		snapshots = monitor.RedisSnapshots{Client: rdb}
	}

	svc := monitor.NewService(monitor.Options{
		SiteID:        settings.SiteID,
		WindowSize:    settings.WindowSize,
		Store:         monitor.GormStore{DB: db},
		Sinks:         sinkList,
		Snapshots:     snapshots,
		Broadcaster:   controllers.LiveHub,
		InMaintenance: config.InMaintenance,
		Logger:        logger,
		Now:           func() time.Time { return time.Now().In(config.Location) },
	})
	controllers.Monitor = svc

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Restore(ctx); err != nil {
		logger.Warn("starting with a cold engine", "err", err)
	}

	if settings.MQTTBroker != "" {
		client, err := ingest.NewClient(settings.MQTTBroker, "slopesentry-"+settings.SiteID+"-"+uuid.NewString()[:8])
		if err != nil {
			return err
		}
		sub := ingest.NewSubscriber(client, settings.MQTTTopic, svc, logger)
		if err := sub.Start(); err != nil {
			return err
		}
		defer sub.Stop()
	}

	if settings.RemoteBackendURL != "" {
		poller := &remote.Poller{
			Backend:  remote.NewClient(settings.RemoteBackendURL, nil),
			Scorer:   svc,
			Interval: settings.RemotePollInterval,
			Logger:   logger,
		}
		go poller.Run(ctx)
		logger.Info("polling remote backend", "url", settings.RemoteBackendURL, "interval", settings.RemotePollInterval)
	}

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: controllers.NewRouter(settings.CORSOrigins, settings.IngestRateLimit),
	}
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "site", settings.SiteID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
