package sinks

import (
	"context"

	"slopesentry/detector"
	"slopesentry/monitor"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const measurement = "slope_readings"

// PointWriter is the subset of api.WriteAPIBlocking the writer needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxWriter stores each reading and its verdict as a time-series point.
type InfluxWriter struct {
	api PointWriter
}

func NewInfluxWriter(api PointWriter) *InfluxWriter {
	return &InfluxWriter{api: api}
}

func (w *InfluxWriter) Name() string { return "influx" }

func (w *InfluxWriter) Publish(ctx context.Context, ev monitor.Event) error {
	return w.api.WritePoint(ctx, eventPoint(ev))
}

func eventPoint(ev monitor.Event) *write.Point {
	fields := map[string]interface{}{
		"risk_percentage": ev.Verdict.RiskPercentage,
	}
	for _, k := range detector.AllSensors {
		name := k.String()
		fields[name] = ev.Reading.Value(k)
		fields["z_"+name] = ev.Verdict.ZScores.Get(k)
		fields["mean_"+name] = ev.RollingMean.Get(k)
	}
	return influxdb2.NewPoint(
		measurement,
		map[string]string{
			"site":       ev.SiteID,
			"risk_state": string(ev.Verdict.RiskState),
			"source":     ev.Source,
		},
		fields,
		ev.Timestamp,
	)
}
