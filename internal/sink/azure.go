package sink

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
)

// AzureSink posts events to an Azure Log Analytics data collector
// endpoint: an array-wrapped batch with a Log-Type header and a
// SharedKey-signed Authorization header.
type AzureSink struct {
	endpoint    string
	workspaceID string
	sharedKey   string
	logType     string
	client      *http.Client
}

func NewAzureSink(cfg config.AzureConfig) *AzureSink {
	return &AzureSink{
		endpoint:    cfg.Endpoint,
		workspaceID: cfg.WorkspaceID,
		sharedKey:   cfg.SharedKey,
		logType:     cfg.LogType,
		client:      &http.Client{},
	}
}

func (s *AzureSink) Name() string { return "azure" }

func (s *AzureSink) Send(ctx context.Context, evt *model.SecurityEvent) error {
	body, err := json.Marshal([]*model.SecurityEvent{evt})
	if err != nil {
		return fmt.Errorf("failed to encode azure payload: %w", err)
	}

	date := time.Now().UTC().Format(http.TimeFormat)
	auth, err := s.signature(len(body), date)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build azure request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Log-Type", s.logType)
	req.Header.Set("Authorization", auth)
	req.Header.Set("x-ms-date", date)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("azure request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("azure returned status %d", resp.StatusCode)
	}
	return nil
}

// signature builds the SharedKey authorization value the data collector
// API expects: HMAC-SHA256 over the canonical request string.
func (s *AzureSink) signature(contentLength int, date string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(s.sharedKey)
	if err != nil {
		return "", fmt.Errorf("invalid azure shared key: %w", err)
	}

	stringToSign := "POST\n" + strconv.Itoa(contentLength) +
		"\napplication/json\nx-ms-date:" + date + "\n/api/logs"

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))
	signed := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedKey %s:%s", s.workspaceID, signed), nil
}
