package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// defaultAdminSecretHash is the bcrypt hash of "changeme".
const defaultAdminSecretHash = "$2a$10$trCdqP4npsbw0R1vQxVwXeT1HebzRmP01SXaNGPz1eSAZ7mpcL0Uu"

type Config struct {
	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath    string     `env:"DB_PATH" envDefault:"data/pubconquest.db"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"json"`

	AdminSecretHash string `env:"ADMIN_SECRET_HASH" envDefault:"$2a$10$trCdqP4npsbw0R1vQxVwXeT1HebzRmP01SXaNGPz1eSAZ7mpcL0Uu"`

	// Redis and Kafka are optional. Empty values disable them.
	RedisURL     string   `env:"REDIS_URL"`
	RedisChannel string   `env:"REDIS_CHANNEL" envDefault:"pubconquest:events"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"pubconquest.changes"`

	SeedFile           string   `env:"SEED_FILE"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	SubmitRatePerMinute  int `env:"SUBMIT_RATE_PER_MINUTE" envDefault:"30"`
	SnapshotHistoryLimit int `env:"SNAPSHOT_HISTORY_LIMIT" envDefault:"50"`
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}
	return &cfg, nil
}

// DefaultAdminSecret reports whether the admin secret was left at its
// shipped value.
func (c *Config) DefaultAdminSecret() bool {
	return c.AdminSecretHash == defaultAdminSecretHash
}
