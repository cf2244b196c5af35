package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"0"` // 0 means one worker per CPU

	// Pipeline
	ParserFormat     string `env:"PARSER_FORMAT" envDefault:"standard"` // standard | unix
	IncidentKeywords string `env:"INCIDENT_KEYWORDS" envDefault:"FAILED,timeout,panic"`
	RedactionTokens  string `env:"REDACTION_TOKENS" envDefault:""`
	ChunkSize        int    `env:"CHUNK_SIZE_BYTES" envDefault:"65536"`

	// Source
	SourceType     string `env:"SOURCE_TYPE" envDefault:"file"` // file | tail | redis
	SourcePath     string `env:"SOURCE_PATH" envDefault:""`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:""`
	RedisStream    string `env:"REDIS_STREAM" envDefault:"log_chunks"`
	CheckpointPath string `env:"CHECKPOINT_PATH" envDefault:"checkpoints.json"`

	// Incident reporting
	PostgresURL   string        `env:"POSTGRES_URL" envDefault:""`
	ReportRetries int           `env:"REPORT_RETRIES" envDefault:"3"`
	ReportBackoff time.Duration `env:"REPORT_BACKOFF" envDefault:"1s"`
	ReportQueue   int           `env:"REPORT_QUEUE_SIZE" envDefault:"256"`

	// Supervision
	SnapshotInterval    time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"1s"`
	AggregationInterval time.Duration `env:"AGGREGATION_INTERVAL" envDefault:"2s"`
	HealthTimeout       time.Duration `env:"HEALTH_TIMEOUT" envDefault:"10s"`
	DrainTimeout        time.Duration `env:"DRAIN_TIMEOUT" envDefault:"30s"`
	MaxRestarts         int           `env:"MAX_RESTARTS" envDefault:"5"`

	// Event bus
	SubscriberBuffer int `env:"SUBSCRIBER_BUFFER" envDefault:"64"`

	// HTTP
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9091"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Keywords returns the configured incident keywords in priority order.
func (c *Config) Keywords() []string {
	return splitList(c.IncidentKeywords)
}

// Redactions returns the configured sensitive tokens to mask in messages.
func (c *Config) Redactions() []string {
	return splitList(c.RedactionTokens)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
