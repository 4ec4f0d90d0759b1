package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/eventclock/go/internal/timer"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of the server. Environment variables
// override values from the optional YAML file.
type Config struct {
	Port              string
	BroadcastInterval time.Duration
	LogLevel          string
	LogFile           string

	NATSURL     string
	NATSSubject string

	JournalEnabled bool

	WSWriteTimeout time.Duration
	WSReadTimeout  time.Duration
	WSPingInterval time.Duration

	Presets map[string]timer.StartRequest
}

type fileConfig struct {
	Timer struct {
		BroadcastInterval time.Duration                 `yaml:"broadcast_interval"`
		Presets           map[string]timer.StartRequest `yaml:"presets"`
	} `yaml:"timer"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config fileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// loadConfig builds the configuration from path (may be empty) and the environment
func loadConfig(path string) (*Config, error) {
	cfg := &Config{
		BroadcastInterval: 500 * time.Millisecond,
		Presets:           make(map[string]timer.StartRequest),
	}

	if path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return nil, err
		}
		if fc.Timer.BroadcastInterval > 0 {
			cfg.BroadcastInterval = fc.Timer.BroadcastInterval
		}
		for name, preset := range fc.Timer.Presets {
			if _, err := preset.ToConfig(); err != nil {
				return nil, fmt.Errorf("preset %q: %w", name, err)
			}
			cfg.Presets[name] = preset
		}
	}

	cfg.Port = getEnv("PORT", "8080")
	cfg.BroadcastInterval = getEnvAsDuration("TIMER_BROADCAST_INTERVAL", cfg.BroadcastInterval)
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getEnv("NATS_SUBJECT", "eventclock.timer.update")
	cfg.JournalEnabled = getEnvAsBool("TIMER_JOURNAL", false)
	cfg.WSWriteTimeout = getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second)
	cfg.WSReadTimeout = getEnvAsDuration("WS_READ_TIMEOUT", 60*time.Second)
	cfg.WSPingInterval = getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second)

	if cfg.BroadcastInterval <= 0 {
		return nil, fmt.Errorf("broadcast interval must be positive, got %s", cfg.BroadcastInterval)
	}

	return cfg, nil
}
