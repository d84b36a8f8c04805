package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/graphql", cfg.RegistryURL)
	assert.Equal(t, 30*time.Second, cfg.RegistryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.FetchTimeout)
	assert.True(t, cfg.VerifyChecksums)
	assert.True(t, cfg.VerifyPDF)
	assert.Equal(t, 3, cfg.TransportRetries)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 22, cfg.BookStreamPort)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISSEM_REGISTRY_URL", "https://registry.example.org/graphql")
	t.Setenv("DISSEM_CONCURRENCY", "12")
	t.Setenv("DISSEM_VERIFY_PDF", "off")
	t.Setenv("DISSEM_RETRY_BASE_DELAY", "500ms")
	t.Setenv("DISSEM_BOOKSTREAM_PORT", "2222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://registry.example.org/graphql", cfg.RegistryURL)
	assert.Equal(t, 12, cfg.Concurrency)
	assert.False(t, cfg.VerifyPDF)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 2222, cfg.BookStreamPort)
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("DISSEM_CONCURRENCY", "not-a-number")
	t.Setenv("DISSEM_VERIFY_CHECKSUMS", "maybe")
	t.Setenv("DISSEM_TRANSPORT_RETRIES", "-2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.VerifyChecksums)
	assert.Equal(t, 0, cfg.TransportRetries, "negative retries clamp to zero")
}
