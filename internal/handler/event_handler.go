package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"security-monitor/internal/model"
	"security-monitor/internal/monitor"
)

const maxObservedBody = 8 << 10

// EventHandler exposes the monitor to HTTP callers: a manual report
// endpoint, suspicious-IP queries, and the middleware that turns every
// inbound request into a security-event observation.
type EventHandler struct {
	monitor *monitor.Monitor
	logger  *zap.Logger
}

func NewEventHandler(m *monitor.Monitor, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		monitor: m,
		logger:  logger,
	}
}

func (h *EventHandler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.ReportEvent)
	r.Get("/suspicious", h.ListSuspicious)
	r.Get("/suspicious/{ip}", h.CheckSuspicious)
}

type reportRequest struct {
	Kind      string                 `json:"kind"`
	Severity  string                 `json:"severity"`
	Outcome   string                 `json:"outcome"`
	UserID    string                 `json:"user_id"`
	SessionID string                 `json:"session_id"`
	RiskScore *float64               `json:"risk_score"`
	Details   map[string]interface{} `json:"details"`
}

// ReportEvent lets in-process collaborators (auth middleware, upload
// handlers) report activity over HTTP. Always answers 202: event intake
// is best-effort by contract.
func (h *EventHandler) ReportEvent(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Rejected malformed event report",
			zap.String("ip", clientIP(r)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	partial := &model.PartialEvent{
		Kind:      model.EventKind(req.Kind),
		Severity:  model.Severity(req.Severity),
		Outcome:   model.Outcome(req.Outcome),
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Details:   req.Details,
	}
	if req.RiskScore != nil {
		partial.RiskScore = *req.RiskScore
		partial.HasRisk = true
	}

	h.monitor.LogSecurityEvent(partial, requestContext(r, 0, ""))

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *EventHandler) ListSuspicious(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suspicious_ips": h.monitor.SuspiciousIPs(),
	})
}

func (h *EventHandler) CheckSuspicious(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ip":         ip,
		"suspicious": h.monitor.Suspicious(ip),
	})
}

// BlockSuspicious rejects requests from addresses the brute-force
// detector has flagged. The detection subsystem itself only populates the
// set; this is the blocking collaborator acting on it.
func (h *EventHandler) BlockSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := clientIP(r); h.monitor.Suspicious(ip) {
			h.logger.Warn("Blocked request from suspicious address",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Observe reports every inbound request to the monitor after the handler
// finishes, mapping the response status onto an event kind. This is what
// feeds the rate, injection and anomaly detectors their raw material.
func (h *EventHandler) Observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var body string
		if r.Body != nil && r.ContentLength != 0 && observableMethod(r.Method) {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxObservedBody))
			if err == nil {
				body = string(raw)
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
			}
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		partial := &model.PartialEvent{}
		switch {
		case ww.Status() == http.StatusUnauthorized:
			partial.Kind = model.KindAuthFailure
			partial.Outcome = model.OutcomeFailure
		case ww.Status() == http.StatusForbidden:
			partial.Kind = model.KindAuthzFailure
			partial.Outcome = model.OutcomeFailure
		case ww.Status() >= 400:
			partial.Kind = model.KindSuspiciousActivity
		default:
			partial.Kind = model.KindDataAccess
			partial.Severity = model.SeverityLow
			partial.Outcome = model.OutcomeSuccess
		}

		h.monitor.LogSecurityEvent(partial, requestContext(r, time.Since(start), body))
	})
}

// requestContext extracts the ambient request data enrichment needs.
// Authenticated identity arrives from the upstream auth layer via
// X-User-ID / X-Session-ID.
func requestContext(r *http.Request, duration time.Duration, body string) *model.RequestContext {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &model.RequestContext{
		Method:          r.Method,
		URL:             r.URL.String(),
		Query:           r.URL.RawQuery,
		Body:            body,
		IP:              clientIP(r),
		UserAgent:       r.UserAgent(),
		Referer:         r.Referer(),
		Headers:         headers,
		UserID:          r.Header.Get("X-User-ID"),
		SessionID:       r.Header.Get("X-Session-ID"),
		RequestDuration: duration,
	}
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from forwarding headers
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func observableMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
