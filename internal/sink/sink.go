// Package sink fans finished security events out to external log
// backends. Delivery is best-effort: every sink gets its own goroutine
// and timeout, and no sink failure is allowed to touch another sink or
// the caller.
package sink

import (
	"context"
	"sync"
	"time"

	"security-monitor/internal/metrics"
	"security-monitor/internal/model"
	"security-monitor/internal/util"
)

// Sink delivers one event to one backend. Send must honor ctx and return
// an error on any delivery problem; the dispatcher handles logging and
// isolation.
type Sink interface {
	Name() string
	Send(ctx context.Context, evt *model.SecurityEvent) error
}

// Dispatcher invokes every configured sink in parallel and then writes
// the always-on local audit record. With no sinks configured it is just
// the audit write.
type Dispatcher struct {
	sinks   []Sink
	audit   *AuditLog
	timeout time.Duration
}

func NewDispatcher(sinks []Sink, audit *AuditLog, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		audit:   audit,
		timeout: timeout,
	}
}

// Dispatch sends evt everywhere. It blocks until all sinks settle (each
// bounded by its own timeout) and never returns an error: a failed sink
// is logged, counted, and forgotten.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *model.SecurityEvent) {
	if len(d.sinks) > 0 {
		var wg sync.WaitGroup
		for _, s := range d.sinks {
			wg.Add(1)
			go func(s Sink) {
				defer wg.Done()
				d.deliver(ctx, s, evt)
			}(s)
		}
		wg.Wait()
	}

	if d.audit != nil {
		d.audit.Write(evt)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, evt *model.SecurityEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SinkFailuresTotal.WithLabelValues(s.Name()).Inc()
			util.Error("Sink panicked",
				util.String("sink", s.Name()),
				util.String("event_id", evt.ID),
				util.Any("panic", r),
			)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := s.Send(sendCtx, evt); err != nil {
		metrics.SinkFailuresTotal.WithLabelValues(s.Name()).Inc()
		util.Error("Failed to deliver event to sink",
			util.String("sink", s.Name()),
			util.String("event_id", evt.ID),
			util.ErrorField(err),
		)
		return
	}

	metrics.SinkDeliveriesTotal.WithLabelValues(s.Name()).Inc()
	util.Debug("Event delivered",
		util.String("sink", s.Name()),
		util.String("event_id", evt.ID),
	)
}

// Sinks returns the configured sink names, mostly for startup logging.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}
