package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	ServiceName string

	Server     ServerConfig
	Detection  DetectionConfig
	Geo        GeoConfig
	Audit      AuditConfig
	Sinks      SinksConfig
	Kafka      KafkaConfig
	Clickhouse ClickhouseConfig
	Redis      RedisConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLS          TLSConfig
}

// TLSConfig selects how the listener terminates TLS: Let's Encrypt
// autocert for a public domain, file-based certificates, or a generated
// self-signed pair for development. Disabled means plain HTTP.
type TLSConfig struct {
	Enabled     bool
	AutoCert    bool
	Domain      string
	CertFile    string
	KeyFile     string
	AutoCertDir string
	Email       string
}

// DetectionConfig carries the thresholds and windows for the threat
// detection engine. Defaults mirror the documented heuristics: 5 failed
// logins per 5 minutes, 100 requests per minute.
type DetectionConfig struct {
	BruteForceThreshold int
	BruteForceWindow    time.Duration
	RateLimitThreshold  int
	RateLimitWindow     time.Duration
	SessionConcurrency  int
	HighRiskCountries   []string
	CounterStore        string // "memory" or "redis"
	CounterShards       int
	SecondaryQueueSize  int
	SecondaryWorkers    int
	MaxSecondaryDepth   int
}

type GeoConfig struct {
	Endpoint string // empty disables geolocation lookups
	Timeout  time.Duration
}

type AuditConfig struct {
	Path         string
	Pseudonymize bool
	HashKey      string
}

// SinksConfig groups every external log-ingestion endpoint. A sink with an
// empty endpoint is disabled.
type SinksConfig struct {
	Splunk  SplunkConfig
	Elastic ElasticConfig
	Azure   AzureConfig
	Sumo    SumoConfig
	Datadog DatadogConfig
	Timeout time.Duration
}

type SplunkConfig struct {
	Endpoint string
	Token    string
	Index    string
}

type ElasticConfig struct {
	URL         string
	Username    string
	Password    string
	IndexPrefix string
}

type AzureConfig struct {
	Endpoint    string
	WorkspaceID string
	SharedKey   string
	LogType     string
}

type SumoConfig struct {
	Endpoint string
	Category string
}

type DatadogConfig struct {
	Endpoint string
	APIKey   string
	Service  string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Username string
	Password string
	Table    string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

var (
	globalConfig *Config
	once         sync.Once
)

// LoadConfig reads configuration from the environment, loading .env first
// when present. The first call wins; later calls return the same instance.
func LoadConfig() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		globalConfig = &Config{
			Environment: getEnv("ENVIRONMENT", "development"),
			ServiceName: getEnv("SERVICE_NAME", "security-monitor"),
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getEnvInt("SERVER_PORT", 8080),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
				TLS: TLSConfig{
					Enabled:     getEnvBool("TLS_ENABLED", false),
					AutoCert:    getEnvBool("TLS_AUTOCERT", false),
					Domain:      getEnv("TLS_DOMAIN", "localhost"),
					CertFile:    getEnv("TLS_CERT_FILE", ""),
					KeyFile:     getEnv("TLS_KEY_FILE", ""),
					AutoCertDir: getEnv("TLS_AUTOCERT_DIR", "./certs"),
					Email:       getEnv("TLS_EMAIL", ""),
				},
			},
			Detection: DetectionConfig{
				BruteForceThreshold: getEnvInt("DETECTION_BRUTE_FORCE_THRESHOLD", 5),
				BruteForceWindow:    getEnvDuration("DETECTION_BRUTE_FORCE_WINDOW", 5*time.Minute),
				RateLimitThreshold:  getEnvInt("DETECTION_RATE_LIMIT_THRESHOLD", 100),
				RateLimitWindow:     getEnvDuration("DETECTION_RATE_LIMIT_WINDOW", time.Minute),
				SessionConcurrency:  getEnvInt("DETECTION_SESSION_CONCURRENCY", 3),
				HighRiskCountries:   getEnvSlice("DETECTION_HIGH_RISK_COUNTRIES", []string{"CN", "RU", "KP", "IR"}),
				CounterStore:        getEnv("DETECTION_COUNTER_STORE", "memory"),
				CounterShards:       getEnvInt("DETECTION_COUNTER_SHARDS", 16),
				SecondaryQueueSize:  getEnvInt("DETECTION_SECONDARY_QUEUE_SIZE", 1024),
				SecondaryWorkers:    getEnvInt("DETECTION_SECONDARY_WORKERS", 4),
				MaxSecondaryDepth:   getEnvInt("DETECTION_MAX_SECONDARY_DEPTH", 2),
			},
			Geo: GeoConfig{
				Endpoint: getEnv("GEO_ENDPOINT", ""),
				Timeout:  getEnvDuration("GEO_TIMEOUT", 3*time.Second),
			},
			Audit: AuditConfig{
				Path:         getEnv("AUDIT_LOG_PATH", "security-audit.log"),
				Pseudonymize: getEnvBool("AUDIT_PSEUDONYMIZE", false),
				HashKey:      getEnv("AUDIT_HASH_KEY", ""),
			},
			Sinks: SinksConfig{
				Timeout: getEnvDuration("SINK_TIMEOUT", 5*time.Second),
				Splunk: SplunkConfig{
					Endpoint: getEnv("SPLUNK_HEC_ENDPOINT", ""),
					Token:    getEnv("SPLUNK_HEC_TOKEN", ""),
					Index:    getEnv("SPLUNK_INDEX", "security_events"),
				},
				Elastic: ElasticConfig{
					URL:         getEnv("ELASTICSEARCH_URL", ""),
					Username:    getEnv("ELASTICSEARCH_USERNAME", ""),
					Password:    getEnv("ELASTICSEARCH_PASSWORD", ""),
					IndexPrefix: getEnv("ELASTICSEARCH_INDEX_PREFIX", "security-events"),
				},
				Azure: AzureConfig{
					Endpoint:    getEnv("AZURE_LOG_ENDPOINT", ""),
					WorkspaceID: getEnv("AZURE_WORKSPACE_ID", ""),
					SharedKey:   getEnv("AZURE_SHARED_KEY", ""),
					LogType:     getEnv("AZURE_LOG_TYPE", "SecurityEvent"),
				},
				Sumo: SumoConfig{
					Endpoint: getEnv("SUMO_ENDPOINT", ""),
					Category: getEnv("SUMO_CATEGORY", "security/events"),
				},
				Datadog: DatadogConfig{
					Endpoint: getEnv("DATADOG_ENDPOINT", ""),
					APIKey:   getEnv("DATADOG_API_KEY", ""),
					Service:  getEnv("DATADOG_SERVICE", "security-monitor"),
				},
			},
			Kafka: KafkaConfig{
				Brokers: getEnvSlice("KAFKA_BROKERS", nil),
				Topic:   getEnv("KAFKA_TOPIC", "security-events"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", ""),
				Database: getEnv("CLICKHOUSE_DATABASE", "security"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Table:    getEnv("CLICKHOUSE_TABLE", "security_events"),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", ""),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
			},
		}
	})

	return globalConfig
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	if globalConfig == nil {
		return LoadConfig()
	}
	return globalConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
