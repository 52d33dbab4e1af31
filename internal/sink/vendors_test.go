package sink

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-monitor/internal/config"
)

func TestSplunkPayloadShape(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/collector/event", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSplunkSink(config.SplunkConfig{
		Endpoint: srv.URL,
		Token:    "hec-token",
		Index:    "security_events",
	})
	require.NoError(t, s.Send(context.Background(), testEvent()))

	assert.Equal(t, "Splunk hec-token", gotAuth)
	assert.Equal(t, "security_events", gotBody["index"])
	assert.Equal(t, "security_event", gotBody["sourcetype"])
	event, ok := gotBody["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "evt-123", event["id"])
}

func TestSplunkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSplunkSink(config.SplunkConfig{Endpoint: srv.URL, Token: "t"})
	err := s.Send(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestAzurePayloadShape(t *testing.T) {
	var gotLogType, gotAuth, gotDate string
	var gotBody []map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLogType = r.Header.Get("Log-Type")
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("x-ms-date")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewAzureSink(config.AzureConfig{
		Endpoint:    srv.URL,
		WorkspaceID: "ws-1",
		SharedKey:   base64.StdEncoding.EncodeToString([]byte("shared")),
		LogType:     "SecurityEvent",
	})
	require.NoError(t, s.Send(context.Background(), testEvent()))

	assert.Equal(t, "SecurityEvent", gotLogType)
	assert.True(t, strings.HasPrefix(gotAuth, "SharedKey ws-1:"))
	assert.NotEmpty(t, gotDate)
	require.Len(t, gotBody, 1)
	assert.Equal(t, "evt-123", gotBody[0]["id"])
}

func TestAzureRejectsBadKey(t *testing.T) {
	s := NewAzureSink(config.AzureConfig{
		Endpoint:    "http://127.0.0.1:0",
		WorkspaceID: "ws-1",
		SharedKey:   "not base64!!",
	})
	err := s.Send(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared key")
}

func TestSumoCategoryHeader(t *testing.T) {
	var gotCategory string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCategory = r.Header.Get("X-Sumo-Category")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSumoSink(config.SumoConfig{Endpoint: srv.URL, Category: "security/events"})
	require.NoError(t, s.Send(context.Background(), testEvent()))

	assert.Equal(t, "security/events", gotCategory)
	assert.Equal(t, "evt-123", gotBody["id"])
}

func TestDatadogEnvelope(t *testing.T) {
	var gotKey string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("DD-API-KEY")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewDatadogSink(config.DatadogConfig{
		Endpoint: srv.URL,
		APIKey:   "dd-key",
		Service:  "security-monitor",
	})
	require.NoError(t, s.Send(context.Background(), testEvent()))

	assert.Equal(t, "dd-key", gotKey)
	assert.Equal(t, "security-monitor", gotBody["ddsource"])
	assert.Equal(t, "kind:auth_failure,severity:medium", gotBody["ddtags"])
	assert.Equal(t, "security-monitor", gotBody["service"])

	message, ok := gotBody["message"].(string)
	require.True(t, ok)
	var inner map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(message), &inner))
	assert.Equal(t, "evt-123", inner["id"])
}

func TestSinkHonorsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	s := NewSumoSink(config.SumoConfig{Endpoint: srv.URL, Category: "c"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, testEvent())
	require.Error(t, err)
}
