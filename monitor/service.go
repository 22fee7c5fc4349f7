// Package monitor runs the ingest pipeline around the risk engine: it
// validates readings, scores them, stores them and fans the results out.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"slopesentry/detector"
	"slopesentry/metrics"
	"slopesentry/models"

	"github.com/google/uuid"
)

// ErrInvalidReading is returned for readings with NaN or infinite values.
var ErrInvalidReading = errors.New("invalid reading")

// Input is a raw reading as delivered by a transport.
type Input struct {
	Rain      float64
	Soil      float64
	Tilt      float64
	Source    string
	Timestamp time.Time
}

// Reading returns the three sensor values.
func (in Input) Reading() detector.Reading {
	return detector.Reading{Rain: in.Rain, Soil: in.Soil, Tilt: in.Tilt}
}

// Validate checks the engine's precondition that every value is finite.
func (in Input) Validate() error {
	r := in.Reading()
	for _, k := range detector.AllSensors {
		if v := r.Value(k); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidReading, k)
		}
	}
	return nil
}

// Result is what one ingest produced.
type Result struct {
	Record  models.SensorReading
	Verdict detector.Verdict
	Scored  bool
}

// Event is the message handed to sinks for every scored reading.
type Event struct {
	ID          string             `json:"id"`
	SiteID      string             `json:"site_id"`
	Source      string             `json:"source"`
	Timestamp   time.Time          `json:"timestamp"`
	Reading     detector.Reading   `json:"reading"`
	Verdict     detector.Verdict   `json:"verdict"`
	RollingMean detector.PerSensor `json:"rolling_mean"`
}

// Store persists readings.
type Store interface {
	SaveReading(ctx context.Context, rec *models.SensorReading) error
}

// Sink receives scored events. Failures are logged and never fail an ingest.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
}

// Snapshots keeps a copy of the engine history so a restart can resume
// scoring without another warm-up.
type Snapshots interface {
	Save(ctx context.Context, site string, h detector.History) error
	Load(ctx context.Context, site string) (detector.History, bool, error)
}

// Broadcaster pushes stored readings to live clients.
type Broadcaster interface {
	BroadcastVerdict(rec models.SensorReading)
	BroadcastAlert(rec models.SensorReading)
}

// Options configures a Service. Store is required.
type Options struct {
	SiteID        string
	WindowSize    int
	Store         Store
	Sinks         []Sink
	Snapshots     Snapshots
	Broadcaster   Broadcaster
	InMaintenance func() bool
	Logger        *slog.Logger
	Now           func() time.Time
}

// Service owns the risk engine for one site and serializes access to it.
type Service struct {
	mu     sync.Mutex
	engine *detector.Engine

	site          string
	windowSize    int
	store         Store
	sinks         []Sink
	snapshots     Snapshots
	hub           Broadcaster
	inMaintenance func() bool
	log           *slog.Logger
	now           func() time.Time
}

// NewService returns a Service with a cold engine.
func NewService(opts Options) *Service {
	s := &Service{
		engine:        detector.New(opts.WindowSize),
		site:          opts.SiteID,
		store:         opts.Store,
		sinks:         opts.Sinks,
		snapshots:     opts.Snapshots,
		hub:           opts.Broadcaster,
		inMaintenance: opts.InMaintenance,
		log:           opts.Logger,
		now:           opts.Now,
	}
	s.windowSize = s.engine.WindowSize()
	if s.site == "" {
		s.site = "default"
	}
	if s.inMaintenance == nil {
		s.inMaintenance = func() bool { return false }
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SiteID is the site this service scores for.
func (s *Service) SiteID() string { return s.site }

// Restore warms the engine from the snapshot store, if one is configured.
func (s *Service) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	h, ok, err := s.snapshots.Load(ctx, s.site)
	if err != nil {
		return fmt.Errorf("load history snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.engine = detector.Restore(s.windowSize, h)
	n := s.engine.Len()
	s.mu.Unlock()

	s.log.Info("restored engine history", "site", s.site, "readings", n)
	return nil
}

// Ingest validates, scores, stores and publishes one reading.
func (s *Service) Ingest(ctx context.Context, in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		metrics.RejectedTotal.WithLabelValues("non_finite").Inc()
		return Result{}, err
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}
	if in.Source == "" {
		in.Source = "unknown"
	}

	rec := models.SensorReading{
		SiteID:       s.site,
		Timestamp:    in.Timestamp,
		RainValue:    in.Rain,
		SoilMoisture: in.Soil,
		TiltValue:    in.Tilt,
	}

	if s.inMaintenance() {
		if err := s.store.SaveReading(ctx, &rec); err != nil {
			return Result{}, fmt.Errorf("save reading: %w", err)
		}
		metrics.ReadingsTotal.WithLabelValues(in.Source).Inc()
		s.log.Info("reading stored during maintenance", "id", rec.ID, "source", in.Source)
		return Result{Record: rec}, nil
	}

	s.mu.Lock()
	before := s.engine.History()
	verdict := s.engine.UpdateAndScore(in.Rain, in.Soil, in.Tilt)
	mean := s.engine.RollingMean()
	applyVerdict(&rec, verdict, mean)
	if err := s.store.SaveReading(ctx, &rec); err != nil {
		// an unsaved reading must not stay in the window, or a resend counts twice
		s.engine = detector.Restore(s.windowSize, before)
		s.mu.Unlock()
		return Result{}, fmt.Errorf("save reading: %w", err)
	}
	// saved under the lock so snapshots land in ingest order
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, s.site, s.engine.History()); err != nil {
			metrics.SinkErrors.WithLabelValues("snapshot").Inc()
			s.log.Warn("history snapshot failed", "err", err)
		}
	}
	s.mu.Unlock()

	metrics.ReadingsTotal.WithLabelValues(in.Source).Inc()
	metrics.VerdictsTotal.WithLabelValues(string(verdict.RiskState)).Inc()
	metrics.RiskPercentage.Set(verdict.RiskPercentage)
	for _, k := range detector.AllSensors {
		metrics.ZScore.WithLabelValues(k.String()).Set(verdict.ZScores.Get(k))
	}

	s.log.Info("reading scored",
		"id", rec.ID,
		"source", in.Source,
		"rain", in.Rain,
		"soil", in.Soil,
		"tilt", in.Tilt,
		"risk", verdict.RiskPercentage,
		"state", verdict.RiskState,
	)

	ev := Event{
		ID:          uuid.NewString(),
		SiteID:      s.site,
		Source:      in.Source,
		Timestamp:   in.Timestamp,
		Reading:     in.Reading(),
		Verdict:     verdict,
		RollingMean: mean,
	}
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			s.log.Warn("sink publish failed", "sink", sink.Name(), "err", err)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastVerdict(rec)
		if verdict.RiskState == detector.StateHigh {
			s.hub.BroadcastAlert(rec)
		}
	}

	return Result{Record: rec, Verdict: verdict, Scored: true}, nil
}

func applyVerdict(rec *models.SensorReading, v detector.Verdict, mean detector.PerSensor) {
	rec.Scored = true
	rec.RiskScore = v.RiskPercentage
	rec.RiskState = string(v.RiskState)
	rec.ZScoreRain = v.ZScores.Rain
	rec.ZScoreSoil = v.ZScores.Soil
	rec.ZScoreTilt = v.ZScores.Tilt
	rec.RainStatus = string(v.ThresholdStatus.Rain.Status)
	rec.SoilStatus = string(v.ThresholdStatus.Soil.Status)
	rec.TiltStatus = string(v.ThresholdStatus.Tilt.Status)
	rec.MeanRain = mean.Rain
	rec.MeanSoil = mean.Soil
	rec.MeanTilt = mean.Tilt
}

// Diagnostics is a read-only view of the engine state.
type Diagnostics struct {
	SiteID        string                  `json:"site_id"`
	WindowSize    int                     `json:"window_size"`
	HistoryLength int                     `json:"history_length"`
	RollingMean   detector.PerSensor      `json:"rolling_mean"`
	Thresholds    detector.ThresholdTable `json:"thresholds"`
	Maintenance   bool                    `json:"maintenance"`
}

// Diagnostics returns the current engine state without changing it.
func (s *Service) Diagnostics() Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Diagnostics{
		SiteID:        s.site,
		WindowSize:    s.engine.WindowSize(),
		HistoryLength: s.engine.Len(),
		RollingMean:   s.engine.RollingMean(),
		Thresholds:    s.engine.Thresholds(),
		Maintenance:   s.inMaintenance(),
	}
}

// CheckThresholds evaluates a hypothetical reading without recording it.
func (s *Service) CheckThresholds(r detector.Reading) detector.ThresholdReport {
	return detector.EvaluateAll(r)
}
