package sink

import (
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/blake2b"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
)

// AuditLog is the always-on local fallback: every dispatched event is
// appended as one JSON line regardless of sink availability. With
// pseudonymization enabled, ip and user id are replaced by keyed blake2b
// digests so the file can be retained without holding raw identifiers.
type AuditLog struct {
	logger       *zap.Logger
	pseudonymize bool
	hashKey      []byte
}

func NewAuditLog(cfg config.AuditConfig) (*AuditLog, error) {
	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "logged_at"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(file),
		zapcore.InfoLevel,
	)

	return &AuditLog{
		logger:       zap.New(core),
		pseudonymize: cfg.Pseudonymize,
		hashKey:      []byte(cfg.HashKey),
	}, nil
}

// Write appends the event. Errors surface through zap's internal error
// output; the dispatch path does not depend on the write succeeding.
func (a *AuditLog) Write(evt *model.SecurityEvent) {
	ip := evt.IP
	userID := evt.UserID
	if a.pseudonymize {
		ip = a.digest(ip)
		userID = a.digest(userID)
	}

	fields := []zap.Field{
		zap.String("event_id", evt.ID),
		zap.String("timestamp", evt.Timestamp),
		zap.String("kind", string(evt.Kind)),
		zap.String("severity", string(evt.Severity)),
		zap.String("source", evt.Source),
		zap.String("ip", ip),
		zap.String("user_agent", evt.UserAgent),
		zap.String("outcome", string(evt.Outcome)),
		zap.Float64("risk_score", evt.RiskScore),
	}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	if evt.SessionID != "" {
		fields = append(fields, zap.String("session_id", evt.SessionID))
	}
	if evt.Geolocation != nil {
		fields = append(fields, zap.String("country", evt.Geolocation.Country))
	}
	if len(evt.Details) > 0 {
		fields = append(fields, zap.Any("details", evt.Details))
	}

	a.logger.Info("security_event", fields...)
}

func (a *AuditLog) Close() {
	_ = a.logger.Sync()
}

func (a *AuditLog) digest(value string) string {
	if value == "" || value == "unknown" {
		return value
	}
	h, err := blake2b.New256(a.keyOrNil())
	if err != nil {
		return value
	}
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (a *AuditLog) keyOrNil() []byte {
	if len(a.hashKey) == 0 {
		return nil
	}
	// blake2b keys are capped at 64 bytes
	if len(a.hashKey) > 64 {
		return a.hashKey[:64]
	}
	return a.hashKey
}
