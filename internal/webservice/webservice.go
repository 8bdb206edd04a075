// Package webservice fetches live node data from the external services
// that back webservice layers.
package webservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrNoEndpoint is returned when a layer has no webservice URL
var ErrNoEndpoint = errors.New("webservice: no endpoint")

// Loader loads data for a node from a layer's webservice
type Loader interface {
	Load(ctx context.Context, req Request) (map[string]interface{}, error)
}

// Request identifies what to fetch and where from
type Request struct {
	URL     string
	LayerID int64
	NodeID  string
	Data    map[string]interface{}
}

type payload struct {
	LayerID int64                  `json:"layer_id"`
	NodeID  string                 `json:"node_id"`
	Data    map[string]interface{} `json:"data"`
}

// StatusError is returned when the webservice answers with a non-2xx status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webservice %s returned status %d", e.URL, e.StatusCode)
}

// HTTPLoader posts node data as JSON and decodes the JSON reply
type HTTPLoader struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPLoader creates a loader. Timeouts come from the caller's context;
// the client timeout is only an upper bound.
func NewHTTPLoader(client *http.Client, logger *zap.Logger) *HTTPLoader {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPLoader{client: client, logger: logger.Named("webservice")}
}

// Load implements Loader
func (l *HTTPLoader) Load(ctx context.Context, req Request) (map[string]interface{}, error) {
	if req.URL == "" {
		return nil, ErrNoEndpoint
	}

	body, err := json.Marshal(payload{LayerID: req.LayerID, NodeID: req.NodeID, Data: req.Data})
	if err != nil {
		return nil, fmt.Errorf("webservice: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webservice: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := l.client.Do(httpReq)
	if err != nil {
		l.logger.Warn("webservice request failed",
			zap.String("url", req.URL),
			zap.Int64("layer_id", req.LayerID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("webservice: %w", err)
	}
	defer resp.Body.Close()

	l.logger.Debug("webservice responded",
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("webservice: decoding response: %w", err)
	}
	return out, nil
}
