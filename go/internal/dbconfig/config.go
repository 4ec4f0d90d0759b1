package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the Postgres settings of the timer journal. URL, when set from
// TIMER_JOURNAL_DSN or DATABASE_URL, takes precedence over the DB_* parts.
type Config struct {
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

// NewConfigFromEnv reads the journal database settings from the environment
func NewConfigFromEnv() Config {
	return Config{
		URL:            getEnv("TIMER_JOURNAL_DSN", os.Getenv("DATABASE_URL")),
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           getEnvAsInt("DB_PORT", 5432),
		User:           getEnv("DB_USER", "postgres"),
		Password:       getEnv("DB_PASSWORD", "postgres"),
		Database:       getEnv("DB_NAME", "eventclock"),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MaxConns:       int32(getEnvAsInt("DB_MAX_CONNS", 4)),
		MinConns:       int32(getEnvAsInt("DB_MIN_CONNS", 0)),
		ConnectTimeout: getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
	}
}

// DSN returns the connection URL. Credentials are escaped.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// PoolConfig parses the DSN and applies the pool sizing. The journal writes
// from a single goroutine, so a small pool is enough.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse journal database config: %w", err)
	}

	if c.MaxConns > 0 {
		poolCfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 && c.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = c.MinConns
	}
	if c.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}
	return poolCfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
