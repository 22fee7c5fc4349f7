package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"slopesentry/monitor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingIngester struct {
	inputs []monitor.Input
	err    error
}

func (r *recordingIngester) Ingest(_ context.Context, in monitor.Input) (monitor.Result, error) {
	r.inputs = append(r.inputs, in)
	return monitor.Result{}, r.err
}

func newTestSubscriber(ing Ingester) *Subscriber {
	return NewSubscriber(nil, "slopesentry/+/readings", ing, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleValidPayload(t *testing.T) {
	ing := &recordingIngester{}
	s := newTestSubscriber(ing)

	s.handle(nil, fakeMessage{
		topic:   "slopesentry/esp32-001/readings",
		payload: []byte(`{"rain_value": 12.5, "soil_moisture": 0, "tilt_value": 3.1}`),
	})

	require.Len(t, ing.inputs, 1)
	assert.Equal(t, monitor.Input{Rain: 12.5, Soil: 0, Tilt: 3.1, Source: "mqtt"}, ing.inputs[0])
}

func TestHandleDropsBadPayloads(t *testing.T) {
	ing := &recordingIngester{}
	s := newTestSubscriber(ing)

	for _, body := range []string{
		`not json`,
		`{"rain_value": 1, "soil_moisture": 2}`,
		`{"rain_value": "wet", "soil_moisture": 2, "tilt_value": 3}`,
	} {
		s.handle(nil, fakeMessage{topic: "t", payload: []byte(body)})
	}
	assert.Empty(t, ing.inputs)
}

func TestHandleSurvivesIngestErrors(t *testing.T) {
	ing := &recordingIngester{err: errors.New("db down")}
	s := newTestSubscriber(ing)

	assert.NotPanics(t, func() {
		s.handle(nil, fakeMessage{topic: "t", payload: []byte(`{"rain_value":1,"soil_moisture":2,"tilt_value":3}`)})
	})
	assert.Len(t, ing.inputs, 1)
}
