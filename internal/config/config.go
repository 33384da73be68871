package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Transport selects the realtime channel implementation.
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

type Config struct {
	APIBaseURL         string `env:"WALINK_API_URL" envDefault:"http://localhost:8080"`
	WSBaseURL          string `env:"WALINK_WS_URL" envDefault:""`
	Transport          string `env:"WALINK_TRANSPORT" envDefault:"websocket"`
	ArtifactTTLSeconds int    `env:"WALINK_ARTIFACT_TTL_SECONDS" envDefault:"45"`
	RequestTimeoutSecs int    `env:"WALINK_REQUEST_TIMEOUT_SECONDS" envDefault:"15"`
	LogLevel           string `env:"WALINK_LOG_LEVEL" envDefault:"info"`
}

func (c *Config) ArtifactTTL() time.Duration {
	return time.Duration(c.ArtifactTTLSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

func (c *Config) Validate() error {
	if c.Transport != TransportWebSocket && c.Transport != TransportSSE {
		return fmt.Errorf("WALINK_TRANSPORT must be %q or %q, got %q",
			TransportWebSocket, TransportSSE, c.Transport)
	}
	if c.ArtifactTTLSeconds <= 0 {
		return fmt.Errorf("WALINK_ARTIFACT_TTL_SECONDS must be positive, got %d", c.ArtifactTTLSeconds)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
