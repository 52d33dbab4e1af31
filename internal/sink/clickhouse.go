package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
	"security-monitor/internal/util"
)

// ClickHouseSink archives events into a columnar table for later
// analytical queries. Schema:
//
//	CREATE TABLE security_events (
//	    id String, event_time DateTime64(9),
//	    kind LowCardinality(String), severity LowCardinality(String),
//	    source String, ip String, user_agent String,
//	    user_id String, session_id String,
//	    outcome LowCardinality(String), risk_score Float64,
//	    country String, details String
//	) ENGINE = MergeTree ORDER BY (kind, event_time)
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

func NewClickHouseSink(cfg config.ClickhouseConfig) (*ClickHouseSink, error) {
	conn, err := ch.Open(&ch.Options{
		Addr: []string{hostPort(cfg.URL)},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:  10 * time.Second,
		MaxOpenConns: 20,
		MaxIdleConns: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	util.Info("ClickHouse sink initialized",
		util.String("url", cfg.URL),
		util.String("database", cfg.Database),
		util.String("table", cfg.Table),
	)

	return &ClickHouseSink{
		conn:  conn,
		table: cfg.Table,
	}, nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Send(ctx context.Context, evt *model.SecurityEvent) error {
	ts, err := time.Parse(time.RFC3339Nano, evt.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	country := ""
	if evt.Geolocation != nil {
		country = evt.Geolocation.Country
	}

	details := ""
	if evt.Details != nil {
		if encoded, err := json.Marshal(evt.Details); err == nil {
			details = string(encoded)
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, event_time, kind, severity, source, ip, user_agent,
		 user_id, session_id, outcome, risk_score, country, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	if err := s.conn.Exec(ctx, query,
		evt.ID, ts, string(evt.Kind), string(evt.Severity), evt.Source,
		evt.IP, evt.UserAgent, evt.UserID, evt.SessionID,
		string(evt.Outcome), evt.RiskScore, country, details,
	); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func hostPort(url string) string {
	clean := strings.TrimPrefix(url, "clickhouse://")
	clean = strings.TrimPrefix(clean, "tcp://")
	if !strings.Contains(clean, ":") {
		return clean + ":9000"
	}
	return clean
}
