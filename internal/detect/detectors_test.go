package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
)

func testConfig() config.DetectionConfig {
	return config.DetectionConfig{
		BruteForceThreshold: 5,
		BruteForceWindow:    5 * time.Minute,
		RateLimitThreshold:  100,
		RateLimitWindow:     time.Minute,
		SessionConcurrency:  3,
		HighRiskCountries:   []string{"CN", "RU", "KP", "IR"},
		CounterShards:       4,
	}
}

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(4, 5*time.Minute, time.Minute)
	t.Cleanup(store.Close)
	return NewEngine(testConfig(), store, NewSuspiciousIPs(nil)), store
}

func authFailure(ip, user string) *model.SecurityEvent {
	return &model.SecurityEvent{
		ID:        "evt-1",
		Kind:      model.KindAuthFailure,
		Severity:  model.SeverityMedium,
		IP:        ip,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		UserID:    user,
		Outcome:   model.OutcomeFailure,
		Details:   map[string]interface{}{"referer": "https://app.example/login"},
	}
}

func emittedKinds(emitted []*model.PartialEvent) []model.EventKind {
	kinds := make([]model.EventKind, 0, len(emitted))
	for _, p := range emitted {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}

func filterKind(emitted []*model.PartialEvent, kind model.EventKind) []*model.PartialEvent {
	var out []*model.PartialEvent
	for _, p := range emitted {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func TestBruteForceThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// failures 1..4: nothing
	for i := 0; i < 4; i++ {
		emitted := engine.Process(ctx, authFailure("203.0.113.7", "alice"), true)
		assert.Empty(t, filterKind(emitted, model.KindBruteForceAttempt),
			"failure %d must not trip", i+1)
	}

	// 5th trips with attempts == 5 and flags the ip
	emitted := engine.Process(ctx, authFailure("203.0.113.7", "alice"), true)
	alerts := filterKind(emitted, model.KindBruteForceAttempt)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, model.OutcomeFailure, alerts[0].Outcome)
	assert.Equal(t, 5, alerts[0].Details["attempts"])
	assert.Equal(t, "5 minutes", alerts[0].Details["time_window"])
	assert.True(t, engine.Suspicious().Contains("203.0.113.7"))

	// 6th inside the same window trips again (documented re-trigger)
	emitted = engine.Process(ctx, authFailure("203.0.113.7", "alice"), true)
	alerts = filterKind(emitted, model.KindBruteForceAttempt)
	require.Len(t, alerts, 1)
	assert.Equal(t, 6, alerts[0].Details["attempts"])
}

func TestBruteForceKeysAreIndependent(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		engine.Process(ctx, authFailure("203.0.113.7", "alice"), true)
	}
	// different user on the same ip has its own counter
	emitted := engine.Process(ctx, authFailure("203.0.113.7", "bob"), true)
	assert.Empty(t, filterKind(emitted, model.KindBruteForceAttempt))

	// anonymous failures key on ip:anonymous
	for i := 0; i < 5; i++ {
		emitted = engine.Process(ctx, authFailure("198.51.100.2", ""), true)
	}
	require.Len(t, filterKind(emitted, model.KindBruteForceAttempt), 1)
}

func TestBruteForceWindowExpiry(t *testing.T) {
	store := NewMemoryStore(4, 5*time.Minute, time.Minute)
	t.Cleanup(store.Close)
	engine := NewEngine(testConfig(), store, NewSuspiciousIPs(nil))
	ctx := context.Background()

	now := time.Now()
	store.clock = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		engine.Process(ctx, authFailure("203.0.113.7", "alice"), true)
	}

	// window anchored to the first failure has elapsed; count restarts
	now = now.Add(5*time.Minute + time.Second)
	emitted := engine.Process(ctx, authFailure("203.0.113.7", "alice"), true)
	assert.Empty(t, filterKind(emitted, model.KindBruteForceAttempt))
}

func TestRateLimitThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	evt := func() *model.SecurityEvent {
		return &model.SecurityEvent{
			Kind:      model.KindDataAccess,
			IP:        "203.0.113.9",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
			Details:   map[string]interface{}{"referer": "https://app.example/"},
		}
	}

	for i := 0; i < 100; i++ {
		emitted := engine.Process(ctx, evt(), true)
		assert.Empty(t, filterKind(emitted, model.KindAPIAbuse), "request %d must not trip", i+1)
	}

	emitted := engine.Process(ctx, evt(), true)
	alerts := filterKind(emitted, model.KindAPIAbuse)
	require.Len(t, alerts, 1)
	assert.Equal(t, 101, alerts[0].Details["request_count"])
	assert.Equal(t, "1 minute", alerts[0].Details["time_window"])
	assert.Equal(t, 100, alerts[0].Details["threshold"])
}

func TestRateLimitIgnoresSecondaryEvents(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	secondary := &model.SecurityEvent{
		Kind:      model.KindBruteForceAttempt,
		IP:        "203.0.113.9",
		UserAgent: "curl/8.4.0",
	}
	emitted := engine.Process(ctx, secondary, false)
	assert.Empty(t, filterKind(emitted, model.KindAPIAbuse))

	// secondary processing did not append to the request window
	count, err := store.RecordRequest(ctx, "203.0.113.9", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInjectionDetection(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	evt := &model.SecurityEvent{
		Kind:      model.KindDataAccess,
		IP:        "203.0.113.5",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		Details: map[string]interface{}{
			"query":   "user=' OR 1=1",
			"referer": "https://app.example/",
		},
	}

	emitted := engine.Process(ctx, evt, true)
	alerts := filterKind(emitted, model.KindInjectionAttempt)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "sql_injection", alerts[0].Details["pattern"])
	assert.Contains(t, alerts[0].Details["suspicious_content"], "OR 1=1")
}

func TestInjectionBenignQuery(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	evt := &model.SecurityEvent{
		Kind:      model.KindDataAccess,
		IP:        "203.0.113.5",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		Details: map[string]interface{}{
			"query":   "page=2&sort=name",
			"referer": "https://app.example/",
		},
	}

	emitted := engine.Process(ctx, evt, true)
	assert.Empty(t, filterKind(emitted, model.KindInjectionAttempt))
}

func TestInjectionEvidenceIsTruncated(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	long := "q=' OR 1=1 "
	for len(long) < 2000 {
		long += "AAAAAAAAAA"
	}
	evt := &model.SecurityEvent{
		Kind:      model.KindDataAccess,
		IP:        "203.0.113.5",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		Details:   map[string]interface{}{"query": long, "referer": "x"},
	}

	emitted := engine.Process(ctx, evt, true)
	alerts := filterKind(emitted, model.KindInjectionAttempt)
	require.Len(t, alerts, 1)
	content, ok := alerts[0].Details["suspicious_content"].(string)
	require.True(t, ok)
	assert.LessOrEqual(t, len(content), 500)
}

func TestAnomalyUserAgentSignature(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	evt := &model.SecurityEvent{
		Kind:      model.KindDataAccess,
		IP:        "203.0.113.4",
		UserAgent: "curl/8.4.0 something long enough",
		Details:   map[string]interface{}{"referer": "https://app.example/"},
	}

	emitted := engine.Process(ctx, evt, true)
	alerts := filterKind(emitted, model.KindSuspiciousActivity)
	require.Len(t, alerts, 1)
	assert.Equal(t, "suspicious_user_agent", alerts[0].Details["anomaly"])
	assert.Equal(t, "automation_tool", alerts[0].Details["signature"])
}

func TestAnomalyBotScore(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// short user agent + missing referer = 2 of 4 signals
	evt := &model.SecurityEvent{
		Kind:      model.KindDataAccess,
		IP:        "203.0.113.4",
		UserAgent: "Opera/9",
		Details:   map[string]interface{}{},
	}

	emitted := engine.Process(ctx, evt, true)
	alerts := filterKind(emitted, model.KindSuspiciousActivity)
	require.Len(t, alerts, 1)
	assert.Equal(t, "bot_like_behavior", alerts[0].Details["anomaly"])
	assert.ElementsMatch(t, []string{"short_user_agent", "missing_referer"},
		alerts[0].Details["signals"])
}

func TestAnomalySingleSignalDoesNotTrip(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// only missing referer
	evt := &model.SecurityEvent{
		Kind:      model.KindDataAccess,
		IP:        "203.0.113.4",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		Details:   map[string]interface{}{},
	}

	emitted := engine.Process(ctx, evt, true)
	assert.Empty(t, filterKind(emitted, model.KindSuspiciousActivity))
}

func TestGeoHighRiskCountry(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	evt := &model.SecurityEvent{
		Kind:        model.KindAuthSuccess,
		IP:          "203.0.113.3",
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		UserID:      "u-1",
		Geolocation: &model.GeoLocation{Country: "KP"},
		Details:     map[string]interface{}{"referer": "https://app.example/"},
	}

	emitted := engine.Process(ctx, evt, true)
	alerts := filterKind(emitted, model.KindSuspiciousActivity)
	require.Len(t, alerts, 1)
	assert.Equal(t, "high_risk_country", alerts[0].Details["anomaly"])
	assert.Equal(t, "KP", alerts[0].Details["country"])
}

func TestGeoRequiresUserAndCountry(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// no user id
	evt := &model.SecurityEvent{
		Kind:        model.KindAuthSuccess,
		IP:          "203.0.113.3",
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		Geolocation: &model.GeoLocation{Country: "RU"},
		Details:     map[string]interface{}{"referer": "x"},
	}
	assert.Empty(t, emittedKinds(engine.Process(ctx, evt, true)))

	// safe country
	evt.UserID = "u-1"
	evt.Geolocation = &model.GeoLocation{Country: "DE"}
	assert.Empty(t, emittedKinds(engine.Process(ctx, evt, true)))
}

func TestSessionConcurrency(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	evt := &model.SecurityEvent{
		Kind:      model.KindDataAccess,
		IP:        "203.0.113.2",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/122.0",
		SessionID: "sess-1",
		Details: map[string]interface{}{
			"session_concurrency": 4,
			"referer":             "https://app.example/",
		},
	}

	emitted := engine.Process(ctx, evt, true)
	alerts := filterKind(emitted, model.KindSessionAnomaly)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, 4, alerts[0].Details["concurrent_sessions"])

	// at the ceiling: fine
	evt.Details["session_concurrency"] = 3
	emitted = engine.Process(ctx, evt, true)
	assert.Empty(t, filterKind(emitted, model.KindSessionAnomaly))
}

func TestPanickingDetectorIsIsolated(t *testing.T) {
	store := NewMemoryStore(4, 5*time.Minute, time.Minute)
	t.Cleanup(store.Close)
	engine := NewEngine(testConfig(), store, NewSuspiciousIPs(nil))
	engine.detectors = append([]Detector{panicDetector{}}, engine.detectors...)
	ctx := context.Background()

	// the panicking detector must not stop brute force from evaluating
	var emitted []*model.PartialEvent
	for i := 0; i < 5; i++ {
		emitted = engine.Process(ctx, authFailure("203.0.113.1", "alice"), true)
	}
	require.Len(t, filterKind(emitted, model.KindBruteForceAttempt), 1)
}

type panicDetector struct{}

func (panicDetector) Name() string { return "panic" }
func (panicDetector) Evaluate(context.Context, *model.SecurityEvent, *Observation) []*model.PartialEvent {
	panic("boom")
}
