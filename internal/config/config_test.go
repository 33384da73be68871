package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
		assert.Equal(t, TransportWebSocket, cfg.Transport)
		assert.Equal(t, 45*time.Second, cfg.ArtifactTTL())
		assert.Equal(t, "info", cfg.LogLevel)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("WALINK_API_URL", "https://api.example.com")
		t.Setenv("WALINK_TRANSPORT", "sse")
		t.Setenv("WALINK_ARTIFACT_TTL_SECONDS", "60")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
		assert.Equal(t, TransportSSE, cfg.Transport)
		assert.Equal(t, 60*time.Second, cfg.ArtifactTTL())
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown transport", func(t *testing.T) {
		cfg := &Config{Transport: "carrier-pigeon", ArtifactTTLSeconds: 45}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "WALINK_TRANSPORT")
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		cfg := &Config{Transport: TransportWebSocket, ArtifactTTLSeconds: 0}
		assert.Error(t, cfg.Validate())
	})
}
