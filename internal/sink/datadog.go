package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
)

// DatadogSink wraps each event in the Datadog logs envelope:
// {ddsource, ddtags, hostname, message, service}.
type DatadogSink struct {
	endpoint string
	apiKey   string
	service  string
	hostname string
	client   *http.Client
}

func NewDatadogSink(cfg config.DatadogConfig) *DatadogSink {
	hostname, _ := os.Hostname()
	return &DatadogSink{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		service:  cfg.Service,
		hostname: hostname,
		client:   &http.Client{},
	}
}

func (s *DatadogSink) Name() string { return "datadog" }

type datadogEnvelope struct {
	Source   string `json:"ddsource"`
	Tags     string `json:"ddtags"`
	Hostname string `json:"hostname"`
	Message  string `json:"message"`
	Service  string `json:"service"`
}

func (s *DatadogSink) Send(ctx context.Context, evt *model.SecurityEvent) error {
	message, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode datadog message: %w", err)
	}

	envelope := datadogEnvelope{
		Source:   "security-monitor",
		Tags:     fmt.Sprintf("kind:%s,severity:%s", evt.Kind, evt.Severity),
		Hostname: s.hostname,
		Message:  string(message),
		Service:  s.service,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode datadog payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build datadog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("datadog request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("datadog returned status %d", resp.StatusCode)
	}
	return nil
}
