package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
	"security-monitor/internal/pattern"
	"security-monitor/internal/util"
)

// BruteForceDetector counts failed logins per (ip, user) inside a rolling
// window. The window is anchored to the first failure and is not reset
// when the threshold trips, so every further failure inside the same
// window raises the alert again.
type BruteForceDetector struct {
	cfg        config.DetectionConfig
	store      CounterStore
	suspicious *SuspiciousIPs
}

func NewBruteForceDetector(cfg config.DetectionConfig, store CounterStore, suspicious *SuspiciousIPs) *BruteForceDetector {
	return &BruteForceDetector{cfg: cfg, store: store, suspicious: suspicious}
}

func (d *BruteForceDetector) Name() string { return "brute_force" }

func (d *BruteForceDetector) Evaluate(ctx context.Context, evt *model.SecurityEvent, _ *Observation) []*model.PartialEvent {
	if evt.Kind != model.KindAuthFailure {
		return nil
	}

	user := evt.UserID
	if user == "" {
		user = "anonymous"
	}
	key := evt.IP + ":" + user

	count, err := d.store.IncrFailures(ctx, key, d.cfg.BruteForceWindow)
	if err != nil {
		util.Warn("Failed to increment failure counter",
			util.String("key", key),
			util.ErrorField(err),
		)
		return nil
	}
	if count < d.cfg.BruteForceThreshold {
		return nil
	}

	d.suspicious.Add(ctx, evt.IP)

	return []*model.PartialEvent{{
		Kind:      model.KindBruteForceAttempt,
		Severity:  model.SeverityHigh,
		Outcome:   model.OutcomeFailure,
		IP:        evt.IP,
		UserAgent: evt.UserAgent,
		UserID:    evt.UserID,
		Details: map[string]interface{}{
			"attempts":    count,
			"time_window": windowLabel(d.cfg.BruteForceWindow),
		},
	}}
}

// RateLimitDetector flags IPs whose request window exceeds the threshold.
// The engine records the window; this detector only judges the count, so
// secondary events never inflate it.
type RateLimitDetector struct {
	cfg config.DetectionConfig
}

func NewRateLimitDetector(cfg config.DetectionConfig) *RateLimitDetector {
	return &RateLimitDetector{cfg: cfg}
}

func (d *RateLimitDetector) Name() string { return "rate_limit" }

func (d *RateLimitDetector) Evaluate(_ context.Context, evt *model.SecurityEvent, obs *Observation) []*model.PartialEvent {
	if !obs.Primary || obs.RequestCount <= d.cfg.RateLimitThreshold {
		return nil
	}

	return []*model.PartialEvent{{
		Kind:      model.KindAPIAbuse,
		Severity:  model.SeverityMedium,
		Outcome:   model.OutcomeWarning,
		IP:        evt.IP,
		UserAgent: evt.UserAgent,
		Details: map[string]interface{}{
			"request_count": obs.RequestCount,
			"time_window":   windowLabel(d.cfg.RateLimitWindow),
			"threshold":     d.cfg.RateLimitThreshold,
		},
	}}
}

// InjectionDetector matches the query/body/params detail fields against
// the pattern library. First match wins.
type InjectionDetector struct{}

func NewInjectionDetector() *InjectionDetector { return &InjectionDetector{} }

func (d *InjectionDetector) Name() string { return "injection" }

func (d *InjectionDetector) Evaluate(_ context.Context, evt *model.SecurityEvent, _ *Observation) []*model.PartialEvent {
	content := collectContent(evt.Details, "query", "body", "params")
	if content == "" {
		return nil
	}

	name, matched := pattern.MatchInjection(content)
	if !matched {
		return nil
	}

	return []*model.PartialEvent{{
		Kind:      model.KindInjectionAttempt,
		Severity:  model.SeverityHigh,
		Outcome:   model.OutcomeFailure,
		IP:        evt.IP,
		UserAgent: evt.UserAgent,
		UserID:    evt.UserID,
		Details: map[string]interface{}{
			"pattern":            name,
			"suspicious_content": util.Truncate(content, 500),
		},
	}}
}

// AnomalyDetector runs two independent checks on primary events: known
// automation/scanner user agents, and a composite bot-likeness score over
// request timing, user-agent length, referer presence and request volume.
type AnomalyDetector struct {
	cfg config.DetectionConfig
}

func NewAnomalyDetector(cfg config.DetectionConfig) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg}
}

func (d *AnomalyDetector) Name() string { return "anomaly" }

func (d *AnomalyDetector) Evaluate(_ context.Context, evt *model.SecurityEvent, obs *Observation) []*model.PartialEvent {
	if !obs.Primary {
		return nil
	}

	var emitted []*model.PartialEvent

	if sig, ok := pattern.MatchUserAgent(evt.UserAgent); ok {
		emitted = append(emitted, &model.PartialEvent{
			Kind:      model.KindSuspiciousActivity,
			Severity:  model.SeverityMedium,
			Outcome:   model.OutcomeWarning,
			IP:        evt.IP,
			UserAgent: evt.UserAgent,
			Details: map[string]interface{}{
				"anomaly":    "suspicious_user_agent",
				"signature":  sig,
				"user_agent": evt.UserAgent,
			},
		})
	}

	signals := d.botSignals(evt, obs)
	if len(signals) >= 2 {
		emitted = append(emitted, &model.PartialEvent{
			Kind:      model.KindSuspiciousActivity,
			Severity:  model.SeverityMedium,
			Outcome:   model.OutcomeWarning,
			IP:        evt.IP,
			UserAgent: evt.UserAgent,
			Details: map[string]interface{}{
				"anomaly": "bot_like_behavior",
				"signals": signals,
			},
		})
	}

	return emitted
}

func (d *AnomalyDetector) botSignals(evt *model.SecurityEvent, obs *Observation) []string {
	var signals []string

	if ms, ok := detailInt(evt.Details, "request_time_ms"); ok && ms < 100 {
		signals = append(signals, "fast_request")
	}
	if len(evt.UserAgent) < 10 {
		signals = append(signals, "short_user_agent")
	}
	if _, ok := evt.Details["referer"]; !ok {
		signals = append(signals, "missing_referer")
	}
	if obs.RequestCount > 50 {
		signals = append(signals, "high_request_volume")
	}

	return signals
}

// GeoDetector flags authenticated activity resolved to a high-risk
// country.
type GeoDetector struct {
	cfg config.DetectionConfig
}

func NewGeoDetector(cfg config.DetectionConfig) *GeoDetector {
	return &GeoDetector{cfg: cfg}
}

func (d *GeoDetector) Name() string { return "geographic" }

func (d *GeoDetector) Evaluate(_ context.Context, evt *model.SecurityEvent, obs *Observation) []*model.PartialEvent {
	if !obs.Primary || evt.UserID == "" || evt.Geolocation == nil || evt.Geolocation.Country == "" {
		return nil
	}

	country := evt.Geolocation.Country
	risky := false
	for _, c := range d.cfg.HighRiskCountries {
		if strings.EqualFold(c, country) {
			risky = true
			break
		}
	}
	if !risky {
		return nil
	}

	return []*model.PartialEvent{{
		Kind:      model.KindSuspiciousActivity,
		Severity:  model.SeverityMedium,
		Outcome:   model.OutcomeWarning,
		IP:        evt.IP,
		UserAgent: evt.UserAgent,
		Details: map[string]interface{}{
			"anomaly": "high_risk_country",
			"country": country,
		},
	}}
}

// SessionDetector flags sessions with more concurrent holders than the
// configured ceiling. Concurrency arrives as a caller-supplied detail;
// session bookkeeping itself lives outside this subsystem.
type SessionDetector struct {
	cfg config.DetectionConfig
}

func NewSessionDetector(cfg config.DetectionConfig) *SessionDetector {
	return &SessionDetector{cfg: cfg}
}

func (d *SessionDetector) Name() string { return "session" }

func (d *SessionDetector) Evaluate(_ context.Context, evt *model.SecurityEvent, _ *Observation) []*model.PartialEvent {
	if evt.SessionID == "" {
		return nil
	}
	concurrency, ok := detailInt(evt.Details, "session_concurrency")
	if !ok || concurrency <= d.cfg.SessionConcurrency {
		return nil
	}

	return []*model.PartialEvent{{
		Kind:      model.KindSessionAnomaly,
		Severity:  model.SeverityHigh,
		Outcome:   model.OutcomeWarning,
		IP:        evt.IP,
		UserAgent: evt.UserAgent,
		UserID:    evt.UserID,
		SessionID: evt.SessionID,
		Details: map[string]interface{}{
			"anomaly":             "concurrent_sessions",
			"concurrent_sessions": concurrency,
		},
	}}
}

// Helpers

func windowLabel(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// collectContent serializes the named detail fields into one string for
// pattern matching. Non-string values are JSON-encoded.
func collectContent(details map[string]interface{}, keys ...string) string {
	if details == nil {
		return ""
	}
	var b strings.Builder
	for _, key := range keys {
		v, ok := details[key]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		switch val := v.(type) {
		case string:
			b.WriteString(val)
		default:
			if encoded, err := json.Marshal(val); err == nil {
				b.Write(encoded)
			}
		}
	}
	return b.String()
}

func detailInt(details map[string]interface{}, key string) (int, bool) {
	if details == nil {
		return 0, false
	}
	switch v := details[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}
