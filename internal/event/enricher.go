// Package event builds fully-populated security events out of partial
// descriptions and ambient request context, and owns the pure risk scorer
// and device parsing that feed into them.
package event

import (
	"context"
	"fmt"
	"time"

	"security-monitor/internal/geo"
	"security-monitor/internal/model"
	"security-monitor/internal/util"
)

// Enricher assembles immutable SecurityEvents. It never returns an error:
// optional fields degrade to unset when a collaborator fails.
type Enricher struct {
	source   string
	resolver geo.Resolver
}

func NewEnricher(source string, resolver geo.Resolver) *Enricher {
	if resolver == nil {
		resolver = geo.NoopResolver{}
	}
	return &Enricher{
		source:   source,
		resolver: resolver,
	}
}

// Enrich builds a complete event. Either argument may be nil; missing
// pieces fall back to defaults (suspicious_activity / medium / warning).
func (e *Enricher) Enrich(ctx context.Context, partial *model.PartialEvent, reqCtx *model.RequestContext) *model.SecurityEvent {
	if partial == nil {
		partial = &model.PartialEvent{}
	}
	now := time.Now().UTC()

	evt := &model.SecurityEvent{
		ID:        model.NewEventID(now),
		Timestamp: now.Format(time.RFC3339Nano),
		Kind:      partial.Kind,
		Severity:  partial.Severity,
		Outcome:   partial.Outcome,
		Source:    e.source,
		IP:        "unknown",
		UserAgent: "unknown",
		UserID:    partial.UserID,
		SessionID: partial.SessionID,
	}

	if evt.Kind == "" || !evt.Kind.IsValid() {
		evt.Kind = model.KindSuspiciousActivity
	}
	if evt.Severity == "" || !evt.Severity.IsValid() {
		evt.Severity = model.SeverityMedium
	}
	if evt.Outcome == "" {
		evt.Outcome = model.OutcomeWarning
	}

	if partial.HasRisk {
		evt.RiskScore = clamp(partial.RiskScore)
	} else {
		evt.RiskScore = RiskScore(evt.Kind, evt.Severity)
	}

	if partial.IP != "" {
		evt.IP = partial.IP
	}
	if partial.UserAgent != "" {
		evt.UserAgent = partial.UserAgent
	}
	if reqCtx != nil {
		if evt.IP == "unknown" && reqCtx.IP != "" {
			evt.IP = reqCtx.IP
		}
		if evt.UserAgent == "unknown" && reqCtx.UserAgent != "" {
			evt.UserAgent = reqCtx.UserAgent
		}
		if evt.UserID == "" {
			evt.UserID = reqCtx.UserID
		}
		if evt.SessionID == "" {
			evt.SessionID = reqCtx.SessionID
		}
	}

	evt.Details = mergeDetails(partial.Details, reqCtx)

	if evt.IP != "unknown" {
		loc, err := e.resolver.Resolve(ctx, evt.IP)
		if err != nil {
			util.Debug("Geolocation lookup failed",
				util.String("ip", evt.IP),
				util.ErrorField(err),
			)
		} else {
			evt.Geolocation = loc
		}
	}

	if evt.UserAgent != "unknown" {
		evt.DeviceInfo = ParseDevice(evt.UserAgent)
	}

	return evt
}

// mergeDetails layers request context under the caller-supplied details;
// caller keys win on collision. Credential-bearing headers are stripped
// before anything reaches the bag.
func mergeDetails(supplied map[string]interface{}, reqCtx *model.RequestContext) map[string]interface{} {
	details := make(map[string]interface{})

	if reqCtx != nil {
		if reqCtx.Method != "" {
			details["method"] = reqCtx.Method
		}
		if reqCtx.URL != "" {
			details["url"] = reqCtx.URL
		}
		if reqCtx.Query != "" {
			details["query"] = reqCtx.Query
		}
		if reqCtx.Body != "" {
			details["body"] = reqCtx.Body
		}
		if reqCtx.Referer != "" {
			details["referer"] = reqCtx.Referer
		}
		if reqCtx.RequestDuration > 0 {
			details["request_time_ms"] = reqCtx.RequestDuration.Milliseconds()
		}
		if sanitized := util.SanitizeHeaders(reqCtx.Headers); len(sanitized) > 0 {
			details["headers"] = sanitized
		}
	}

	for k, v := range supplied {
		details[k] = v
	}
	if headers, ok := details["headers"]; ok {
		details["headers"] = sanitizeHeaderValue(headers)
	}

	if len(details) == 0 {
		return nil
	}
	return details
}

// sanitizeHeaderValue strips credential-bearing keys from a headers value
// regardless of how the caller shaped it. Callers reporting events over
// the API supply details verbatim, so a headers map arriving there must
// go through the same filter as request-context headers.
func sanitizeHeaderValue(v interface{}) interface{} {
	switch headers := v.(type) {
	case map[string]string:
		return util.SanitizeHeaders(headers)
	case map[string]interface{}:
		flat := make(map[string]string, len(headers))
		for k, hv := range headers {
			if s, ok := hv.(string); ok {
				flat[k] = s
			} else {
				flat[k] = fmt.Sprintf("%v", hv)
			}
		}
		return util.SanitizeHeaders(flat)
	default:
		return v
	}
}

func clamp(score float64) float64 {
	if score > 10.0 {
		return 10.0
	}
	if score < 0 {
		return 0
	}
	return score
}
