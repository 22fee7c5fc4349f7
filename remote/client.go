// Package remote talks to the hosted document backend that devices can
// post readings to directly. Readings land there unprocessed; the poller
// scores them here and writes the results back.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnexpectedStatus is returned when the backend answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("unexpected status from remote backend")

// SensorDoc is a raw reading stored in the remote backend.
type SensorDoc struct {
	ID           string  `json:"_id"`
	Timestamp    string  `json:"timestamp"`
	RainValue    float64 `json:"rainValue"`
	SoilMoisture float64 `json:"soilMoisture"`
	TiltValue    float64 `json:"tiltValue"`
	Processed    bool    `json:"processed"`
}

// AnomalyResult is the scored record written back to the remote backend.
type AnomalyResult struct {
	SensorDataID string  `json:"sensorDataId"`
	Timestamp    string  `json:"timestamp"`
	RainValue    float64 `json:"rainValue"`
	SoilMoisture float64 `json:"soilMoisture"`
	TiltValue    float64 `json:"tiltValue"`
	RiskScore    float64 `json:"riskScore"`
	RiskState    string  `json:"riskState"`
	ZScoreRain   float64 `json:"zScoreRain"`
	ZScoreSoil   float64 `json:"zScoreSoil"`
	ZScoreTilt   float64 `json:"zScoreTilt"`
}

// HTTPClient allows injecting a custom transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls query and mutation functions on the remote backend.
type Client struct {
	baseURL string
	http    HTTPClient
}

// NewClient returns a client for the deployment at baseURL.
func NewClient(baseURL string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type functionCall struct {
	Path string      `json:"path"`
	Args interface{} `json:"args"`
}

type functionReply struct {
	Status       string          `json:"status"`
	Value        json.RawMessage `json:"value"`
	ErrorMessage string          `json:"errorMessage"`
}

func (c *Client) call(ctx context.Context, kind, path string, args interface{}, out interface{}) error {
	if args == nil {
		args = struct{}{}
	}
	body, err := json.Marshal(functionCall{Path: path, Args: args})
	if err != nil {
		return fmt.Errorf("failed to encode %s args: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+kind, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnexpectedStatus, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var reply functionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	if reply.Status == "error" {
		return fmt.Errorf("%s failed: %s", path, reply.ErrorMessage)
	}
	if out != nil && len(reply.Value) > 0 {
		if err := json.Unmarshal(reply.Value, out); err != nil {
			return fmt.Errorf("failed to decode %s value: %w", path, err)
		}
	}
	return nil
}

// GetUnprocessed returns readings that have not been scored yet.
func (c *Client) GetUnprocessed(ctx context.Context) ([]SensorDoc, error) {
	var docs []SensorDoc
	if err := c.call(ctx, "query", "sensorData:getUnprocessedData", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// MarkProcessed flags a reading as scored.
func (c *Client) MarkProcessed(ctx context.Context, id string) error {
	return c.call(ctx, "mutation", "sensorData:markAsProcessed", map[string]string{"id": id}, nil)
}

// AddAnomalyResult stores a scored result.
func (c *Client) AddAnomalyResult(ctx context.Context, r AnomalyResult) error {
	return c.call(ctx, "mutation", "sensorData:addAnomalyResult", r, nil)
}

// GetRecent returns the most recent raw readings, newest first.
func (c *Client) GetRecent(ctx context.Context, limit int) ([]SensorDoc, error) {
	var docs []SensorDoc
	if err := c.call(ctx, "query", "sensorData:getAllSensorData", map[string]int{"limit": limit}, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Health checks the backend's HTTP health route.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}
