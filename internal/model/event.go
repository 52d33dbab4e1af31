package model

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed set of categories a security event can carry.
type EventKind string

const (
	KindAuthFailure         EventKind = "auth_failure"
	KindAuthSuccess         EventKind = "auth_success"
	KindAuthzFailure        EventKind = "authz_failure"
	KindSuspiciousActivity  EventKind = "suspicious_activity"
	KindDataAccess          EventKind = "data_access"
	KindDataModification    EventKind = "data_modification"
	KindPrivilegeEscalation EventKind = "privilege_escalation"
	KindBruteForceAttempt   EventKind = "brute_force_attempt"
	KindInjectionAttempt    EventKind = "injection_attempt"
	KindAccountLockout      EventKind = "account_lockout"
	KindPasswordReset       EventKind = "password_reset"
	KindSessionAnomaly      EventKind = "session_anomaly"
	KindFileUpload          EventKind = "file_upload"
	KindAPIAbuse            EventKind = "api_abuse"
	KindConfigChange        EventKind = "config_change"
)

// IsValid reports whether k is one of the defined event kinds.
func (k EventKind) IsValid() bool {
	switch k {
	case KindAuthFailure, KindAuthSuccess, KindAuthzFailure,
		KindSuspiciousActivity, KindDataAccess, KindDataModification,
		KindPrivilegeEscalation, KindBruteForceAttempt, KindInjectionAttempt,
		KindAccountLockout, KindPasswordReset, KindSessionAnomaly,
		KindFileUpload, KindAPIAbuse, KindConfigChange:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeWarning Outcome = "warning"
)

type GeoLocation struct {
	Country string  `json:"country,omitempty"`
	Region  string  `json:"region,omitempty"`
	City    string  `json:"city,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

type DeviceInfo struct {
	Type    string `json:"type"`
	OS      string `json:"os"`
	Browser string `json:"browser"`
}

// SecurityEvent is the fully-enriched record dispatched to every sink.
// Once built it is treated as immutable; detectors and sinks must not
// modify it.
type SecurityEvent struct {
	ID          string                 `json:"id"`
	Timestamp   string                 `json:"timestamp"`
	Kind        EventKind              `json:"kind"`
	Severity    Severity               `json:"severity"`
	Source      string                 `json:"source"`
	IP          string                 `json:"ip"`
	UserAgent   string                 `json:"user_agent"`
	UserID      string                 `json:"user_id,omitempty"`
	SessionID   string                 `json:"session_id,omitempty"`
	Outcome     Outcome                `json:"outcome"`
	Details     map[string]interface{} `json:"details,omitempty"`
	RiskScore   float64                `json:"risk_score"`
	Geolocation *GeoLocation           `json:"geolocation,omitempty"`
	DeviceInfo  *DeviceInfo            `json:"device_info,omitempty"`
}

// NewEventID generates a unique event identifier: creation time in
// nanoseconds plus a random suffix, never reused.
func NewEventID(now time.Time) string {
	raw := uuid.New()
	return fmt.Sprintf("%x-%s", now.UnixNano(), hex.EncodeToString(raw[:6]))
}

// PartialEvent is the caller-supplied description handed to enrichment.
// Every field is optional; enrichment fills the gaps. IP and UserAgent
// let detector-emitted secondary events keep the offender's attribution
// without carrying a full request context.
type PartialEvent struct {
	Kind      EventKind
	Severity  Severity
	Outcome   Outcome
	IP        string
	UserAgent string
	UserID    string
	SessionID string
	RiskScore float64
	HasRisk   bool
	Details   map[string]interface{}
}

// RequestContext carries the ambient HTTP request data enrichment merges
// into an event.
type RequestContext struct {
	Method    string
	URL       string
	Query     string
	Body      string
	IP        string
	UserAgent string
	Referer   string
	Headers   map[string]string
	UserID    string
	SessionID string

	// RequestDuration is the observed handler latency, used by the
	// bot-likeness heuristic.
	RequestDuration time.Duration
}
