package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
)

// SumoSink posts single JSON event bodies to a Sumo Logic HTTP collector
// with a category header.
type SumoSink struct {
	endpoint string
	category string
	client   *http.Client
}

func NewSumoSink(cfg config.SumoConfig) *SumoSink {
	return &SumoSink{
		endpoint: cfg.Endpoint,
		category: cfg.Category,
		client:   &http.Client{},
	}
}

func (s *SumoSink) Name() string { return "sumologic" }

func (s *SumoSink) Send(ctx context.Context, evt *model.SecurityEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode sumo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sumo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sumo-Category", s.category)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sumo request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sumo returned status %d", resp.StatusCode)
	}
	return nil
}
