// Package monitor is the subsystem facade: it accepts partial event
// descriptions from the rest of the service, runs them through
// enrichment, detection and sink dispatch, and feeds detector-emitted
// secondary events back through the same pipeline asynchronously.
package monitor

import (
	"context"
	"sync"

	"security-monitor/internal/config"
	"security-monitor/internal/detect"
	"security-monitor/internal/event"
	"security-monitor/internal/metrics"
	"security-monitor/internal/model"
	"security-monitor/internal/sink"
	"security-monitor/internal/util"
)

type job struct {
	partial *model.PartialEvent
	reqCtx  *model.RequestContext
	depth   int
}

// Monitor owns the enrich -> detect -> dispatch pipeline. Submission is
// fire-and-forget: LogSecurityEvent never blocks on sink I/O and never
// surfaces an error to the instrumented request path.
type Monitor struct {
	enricher   *event.Enricher
	engine     *detect.Engine
	dispatcher *sink.Dispatcher

	queue    chan job
	maxDepth int
	workers  int

	wg sync.WaitGroup

	// mu orders submissions against Close: a send never races the
	// channel close.
	mu     sync.RWMutex
	closed bool
}

func New(cfg config.DetectionConfig, enricher *event.Enricher, engine *detect.Engine, dispatcher *sink.Dispatcher) *Monitor {
	workers := cfg.SecondaryWorkers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.SecondaryQueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	m := &Monitor{
		enricher:   enricher,
		engine:     engine,
		dispatcher: dispatcher,
		queue:      make(chan job, queueSize),
		maxDepth:   cfg.MaxSecondaryDepth,
		workers:    workers,
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	return m
}

// LogSecurityEvent is the one entry point the rest of the system calls to
// report activity. It never panics and never returns an error; all
// internal failures are logged and swallowed.
func (m *Monitor) LogSecurityEvent(partial *model.PartialEvent, reqCtx *model.RequestContext) {
	defer func() {
		if r := recover(); r != nil {
			util.Error("Security event submission panicked", util.Any("panic", r))
		}
	}()
	m.submit(job{partial: partial, reqCtx: reqCtx})
}

// Suspicious reports whether an address has been flagged by the
// brute-force detector. Blocking middleware consults this.
func (m *Monitor) Suspicious(ip string) bool {
	return m.engine.Suspicious().Contains(ip)
}

// SuspiciousIPs returns a snapshot of all flagged addresses.
func (m *Monitor) SuspiciousIPs() []string {
	return m.engine.Suspicious().All()
}

// Close drains in-flight events and stops the workers.
func (m *Monitor) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Monitor) submit(j job) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- j:
	default:
		// Logging must never delay the request it instruments. Under
		// overload the event is dropped, not queued unbounded.
		metrics.QueueDroppedTotal.Inc()
		util.Warn("Event queue full, dropping event",
			util.Int("depth", j.depth),
		)
	}
}

func (m *Monitor) worker() {
	defer m.wg.Done()
	for j := range m.queue {
		m.process(j)
	}
}

func (m *Monitor) process(j job) {
	defer func() {
		if r := recover(); r != nil {
			util.Error("Event processing panicked", util.Any("panic", r))
		}
	}()

	ctx := context.Background()

	evt := m.enricher.Enrich(ctx, j.partial, j.reqCtx)
	metrics.EventsTotal.WithLabelValues(string(evt.Kind), string(evt.Severity)).Inc()

	if j.depth < m.maxDepth {
		for _, secondary := range m.engine.Process(ctx, evt, j.depth == 0) {
			m.submit(job{partial: secondary, depth: j.depth + 1})
		}
	}

	m.dispatcher.Dispatch(ctx, evt)
}
