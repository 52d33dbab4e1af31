// Package detect evaluates enriched security events against stateful
// heuristics and emits secondary events for the pipeline to re-process.
package detect

import (
	"context"

	"security-monitor/internal/config"
	"security-monitor/internal/metrics"
	"security-monitor/internal/model"
	"security-monitor/internal/util"
)

// Observation carries per-evaluation inputs that are not part of the
// event record itself.
type Observation struct {
	// Primary is false for detector-emitted secondary events. Detectors
	// whose signals are request-shaped (rate, anomaly, geographic) only
	// evaluate primary events; the rest trigger off event kinds that
	// secondaries never carry.
	Primary bool

	// RequestCount is the pruned per-IP request-window length, populated
	// for primary events.
	RequestCount int
}

// Detector inspects one enriched event and may return partial events to
// feed back into the pipeline. Implementations must be safe for
// concurrent Evaluate calls and must not modify the event.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, evt *model.SecurityEvent, obs *Observation) []*model.PartialEvent
}

// Engine runs every registered detector against an event. A detector
// failing or panicking is logged and skipped; it never stops the other
// detectors or the event's own dispatch.
type Engine struct {
	cfg        config.DetectionConfig
	store      CounterStore
	suspicious *SuspiciousIPs
	detectors  []Detector
}

func NewEngine(cfg config.DetectionConfig, store CounterStore, suspicious *SuspiciousIPs) *Engine {
	e := &Engine{
		cfg:        cfg,
		store:      store,
		suspicious: suspicious,
	}
	e.detectors = []Detector{
		NewBruteForceDetector(cfg, store, suspicious),
		NewRateLimitDetector(cfg),
		NewInjectionDetector(),
		NewAnomalyDetector(cfg),
		NewGeoDetector(cfg),
		NewSessionDetector(cfg),
	}
	return e
}

// Process evaluates evt against all detectors and returns the secondary
// events they emitted. primary marks events that originate from a real
// request rather than from a detector.
func (e *Engine) Process(ctx context.Context, evt *model.SecurityEvent, primary bool) []*model.PartialEvent {
	obs := &Observation{Primary: primary}

	if primary && evt.IP != "" && evt.IP != "unknown" {
		count, err := e.store.RecordRequest(ctx, evt.IP, e.cfg.RateLimitWindow)
		if err != nil {
			util.Warn("Failed to record request window",
				util.String("ip", evt.IP),
				util.ErrorField(err),
			)
		} else {
			obs.RequestCount = count
		}
	}

	var emitted []*model.PartialEvent
	for _, d := range e.detectors {
		found := e.evaluate(ctx, d, evt, obs)
		if len(found) > 0 {
			metrics.DetectionsTotal.WithLabelValues(d.Name()).Add(float64(len(found)))
			emitted = append(emitted, found...)
		}
	}
	return emitted
}

// evaluate isolates a single detector run so one panicking detector
// cannot take down the event's dispatch path.
func (e *Engine) evaluate(ctx context.Context, d Detector, evt *model.SecurityEvent, obs *Observation) (found []*model.PartialEvent) {
	defer func() {
		if r := recover(); r != nil {
			util.Error("Detector panicked",
				util.String("detector", d.Name()),
				util.String("event_id", evt.ID),
				util.Any("panic", r),
			)
			found = nil
		}
	}()
	return d.Evaluate(ctx, evt, obs)
}

// Suspicious exposes the flagged-IP set to collaborators outside the
// detection path (blocking middleware, admin queries).
func (e *Engine) Suspicious() *SuspiciousIPs {
	return e.suspicious
}
