package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DevServerConfig configures the local mock backend.
type DevServerConfig struct {
	Port               int      `env:"PORT" envDefault:"8080"`
	ArtifactTTLSeconds int      `env:"WALINK_ARTIFACT_TTL_SECONDS" envDefault:"45"`
	AutoScanSeconds    int      `env:"DEVSERVER_AUTO_SCAN_SECONDS" envDefault:"0"`
	AutoScanNumber     string   `env:"DEVSERVER_AUTO_SCAN_NUMBER" envDefault:"+15550000001"`
	SeedInstances      []string `env:"DEVSERVER_SEED_INSTANCES" envSeparator:","`
	LogLevel           string   `env:"WALINK_LOG_LEVEL" envDefault:"debug"`
}

func (c *DevServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *DevServerConfig) ArtifactTTL() time.Duration {
	return time.Duration(c.ArtifactTTLSeconds) * time.Second
}

func (c *DevServerConfig) AutoScanAfter() time.Duration {
	return time.Duration(c.AutoScanSeconds) * time.Second
}

func LoadDevServer() (*DevServerConfig, error) {
	var cfg DevServerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
