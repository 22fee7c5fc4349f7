// Package ingest receives station readings over MQTT.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slopesentry/metrics"
	"slopesentry/models"
	"slopesentry/monitor"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Ingester scores a reading.
type Ingester interface {
	Ingest(ctx context.Context, in monitor.Input) (monitor.Result, error)
}

// NewClient connects to an MQTT broker.
func NewClient(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.WaitTimeout(15*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return c, nil
}

// Subscriber feeds readings published on a topic into the pipeline.
type Subscriber struct {
	client  mqtt.Client
	topic   string
	svc     Ingester
	log     *slog.Logger
	timeout time.Duration
}

func NewSubscriber(client mqtt.Client, topic string, svc Ingester, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{client: client, topic: topic, svc: svc, log: log, timeout: 10 * time.Second}
}

// Start subscribes with QoS 1.
func (s *Subscriber) Start() error {
	token := s.client.Subscribe(s.topic, 1, s.handle)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	s.log.Info("subscribed to readings", "topic", s.topic)
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	s.client.Unsubscribe(s.topic).WaitTimeout(2 * time.Second)
	s.client.Disconnect(250)
}

func (s *Subscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	var payload models.ReadingPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		metrics.RejectedTotal.WithLabelValues("malformed").Inc()
		s.log.Warn("dropping malformed mqtt payload", "topic", msg.Topic(), "err", err)
		return
	}
	rain, soil, tilt, err := payload.Values()
	if err != nil {
		metrics.RejectedTotal.WithLabelValues("missing_sensor").Inc()
		s.log.Warn("dropping incomplete mqtt payload", "topic", msg.Topic(), "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.svc.Ingest(ctx, monitor.Input{Rain: rain, Soil: soil, Tilt: tilt, Source: "mqtt"})
	switch {
	case errors.Is(err, monitor.ErrInvalidReading):
		s.log.Warn("dropping invalid mqtt reading", "topic", msg.Topic(), "err", err)
	case err != nil:
		s.log.Error("mqtt reading not ingested", "topic", msg.Topic(), "err", err)
	default:
		s.log.Debug("mqtt reading ingested", "topic", msg.Topic(), "id", res.Record.ID, "state", res.Record.RiskState)
	}
}
