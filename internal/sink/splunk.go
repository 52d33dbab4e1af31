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

// SplunkSink writes events to a Splunk HTTP Event Collector endpoint as a
// bulk index write: {event, index, sourcetype}.
type SplunkSink struct {
	endpoint string
	token    string
	index    string
	client   *http.Client
}

func NewSplunkSink(cfg config.SplunkConfig) *SplunkSink {
	return &SplunkSink{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		index:    cfg.Index,
		client:   &http.Client{},
	}
}

func (s *SplunkSink) Name() string { return "splunk" }

func (s *SplunkSink) Send(ctx context.Context, evt *model.SecurityEvent) error {
	payload := map[string]interface{}{
		"event":      evt,
		"index":      s.index,
		"sourcetype": "security_event",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode splunk payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoint+"/services/collector/event", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build splunk request: %w", err)
	}
	req.Header.Set("Authorization", "Splunk "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("splunk request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("splunk returned status %d", resp.StatusCode)
	}
	return nil
}
