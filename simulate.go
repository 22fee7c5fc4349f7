package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"slopesentry/ingest"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
)

var (
	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Act as a slope station and send random readings",
		Long: `Sends random rain, soil moisture and tilt readings at a fixed interval,
either to the HTTP ingest endpoint or to an MQTT broker. Useful for trying
the system without hardware.`,
		RunE: runSimulate,
	}
	simURL      string
	simBroker   string
	simTopic    string
	simInterval time.Duration
	simCount    int
	simSeed     int64
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simURL, "url", "http://localhost:8080", "Base URL of the slopesentry API")
	simulateCmd.Flags().StringVar(&simBroker, "mqtt", "", "Publish to this MQTT broker instead of HTTP (e.g. tcp://localhost:1883)")
	simulateCmd.Flags().StringVar(&simTopic, "topic", "slopesentry/station-1/readings", "MQTT topic to publish on")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 10*time.Second, "Time between readings")
	simulateCmd.Flags().IntVarP(&simCount, "count", "n", 0, "Number of readings to send (0 runs until interrupted)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (0 uses the clock)")
}

type stationReading struct {
	RainValue    float64 `json:"rain_value"`
	SoilMoisture float64 `json:"soil_moisture"`
	TiltValue    float64 `json:"tilt_value"`
}

// randomReading draws values over the full range the station reports:
// rain 0-100, soil 20-90 %, tilt 0-45 °.
func randomReading(rng *rand.Rand) stationReading {
	return stationReading{
		RainValue:    round2(rng.Float64() * 100),
		SoilMoisture: round2(20 + rng.Float64()*70),
		TiltValue:    round2(rng.Float64() * 45),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type sender interface {
	Send(ctx context.Context, r stationReading) (string, error)
}

type httpSender struct {
	url    string
	client *http.Client
}

func (s httpSender) Send(ctx context.Context, r stationReading) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/api/sensor-data", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	reply, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}
	return strings.TrimSpace(string(reply)), nil
}

type mqttSender struct {
	client mqtt.Client
	topic  string
}

func (s mqttSender) Send(_ context.Context, r stationReading) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	token := s.client.Publish(s.topic, 1, false, body)
	if !token.WaitTimeout(5 * time.Second) {
		return "", fmt.Errorf("publish to %s timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		return "", err
	}
	return "published to " + s.topic, nil
}

// simulate sends count readings (forever when count is 0) and returns how
// many were delivered.
func simulate(ctx context.Context, out io.Writer, s sender, rng *rand.Rand, interval time.Duration, count int) int {
	sent := 0
	for i := 1; count == 0 || i <= count; i++ {
		if ctx.Err() != nil {
			return sent
		}
		r := randomReading(rng)
		fmt.Fprintf(out, "[Reading #%d] %s rain=%.2f soil=%.2f tilt=%.2f\n",
			i, time.Now().Format("2006-01-02 15:04:05"), r.RainValue, r.SoilMoisture, r.TiltValue)
		if reply, err := s.Send(ctx, r); err != nil {
			fmt.Fprintf(out, "  failed: %v\n", err)
		} else {
			sent++
			fmt.Fprintf(out, "  response: %s\n", reply)
		}

		if count != 0 && i == count {
			break
		}
		select {
		case <-ctx.Done():
			return sent
		case <-time.After(interval):
		}
	}
	return sent
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var s sender
	if simBroker != "" {
		client, err := ingest.NewClient(simBroker, fmt.Sprintf("slopesentry-sim-%d", seed%100000))
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		s = mqttSender{client: client, topic: simTopic}
		fmt.Fprintf(cmd.OutOrStdout(), "Publishing to %s on %s every %s\n", simTopic, simBroker, simInterval)
	} else {
		url := strings.TrimRight(simURL, "/")
		s = httpSender{url: url, client: &http.Client{Timeout: 10 * time.Second}}
		fmt.Fprintf(cmd.OutOrStdout(), "Posting to %s/api/sensor-data every %s\n", url, simInterval)
	}

	sent := simulate(ctx, cmd.OutOrStdout(), s, rng, simInterval, simCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Total readings sent: %d\n", sent)
	return nil
}
