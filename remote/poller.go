package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"slopesentry/metrics"
	"slopesentry/monitor"
)

// Backend is the part of Client the poller uses.
type Backend interface {
	GetUnprocessed(ctx context.Context) ([]SensorDoc, error)
	MarkProcessed(ctx context.Context, id string) error
	AddAnomalyResult(ctx context.Context, r AnomalyResult) error
}

// Scorer turns a raw reading into a verdict.
type Scorer interface {
	Ingest(ctx context.Context, in monitor.Input) (monitor.Result, error)
}

// Poller periodically scores unprocessed readings held by the backend.
type Poller struct {
	Backend  Backend
	Scorer   Scorer
	Interval time.Duration
	Logger   *slog.Logger
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger().Error("remote poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce processes every pending reading and returns how many were scored.
// A reading that fails to store locally is left unprocessed for the next
// cycle. Readings with invalid values are marked processed without scoring.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	docs, err := p.Backend.GetUnprocessed(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, doc := range docs {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}

		ts, err := time.Parse(time.RFC3339, doc.Timestamp)
		if err != nil {
			ts = time.Time{}
		}
		res, err := p.Scorer.Ingest(ctx, monitor.Input{
			Rain:      doc.RainValue,
			Soil:      doc.SoilMoisture,
			Tilt:      doc.TiltValue,
			Source:    "remote",
			Timestamp: ts,
		})
		if errors.Is(err, monitor.ErrInvalidReading) {
			p.logger().Warn("skipping invalid remote reading", "id", doc.ID, "err", err)
			if err := p.Backend.MarkProcessed(ctx, doc.ID); err != nil {
				p.logger().Error("mark processed failed", "id", doc.ID, "err", err)
			}
			continue
		}
		if err != nil {
			p.logger().Error("scoring remote reading failed", "id", doc.ID, "err", err)
			continue
		}

		if res.Scored {
			result := AnomalyResult{
				SensorDataID: doc.ID,
				Timestamp:    res.Record.Timestamp.UTC().Format(time.RFC3339),
				RainValue:    doc.RainValue,
				SoilMoisture: doc.SoilMoisture,
				TiltValue:    doc.TiltValue,
				RiskScore:    res.Verdict.RiskPercentage,
				RiskState:    string(res.Verdict.RiskState),
				ZScoreRain:   res.Verdict.ZScores.Rain,
				ZScoreSoil:   res.Verdict.ZScores.Soil,
				ZScoreTilt:   res.Verdict.ZScores.Tilt,
			}
			// the engine has already consumed the reading, so it is marked
			// processed even if the result cannot be written back
			if err := p.Backend.AddAnomalyResult(ctx, result); err != nil {
				p.logger().Error("writing anomaly result failed", "id", doc.ID, "err", err)
			}
		}
		if err := p.Backend.MarkProcessed(ctx, doc.ID); err != nil {
			p.logger().Error("mark processed failed", "id", doc.ID, "err", err)
			continue
		}
		done++
	}
	return done, nil
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
