package tlsutil

import (
	"crypto/tls"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTLSConfig(t *testing.T) {
	cfg := DefaultTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	require.NotEmpty(t, cfg.CipherSuites)
	for _, cs := range cfg.CipherSuites {
		assert.True(t, slices.Contains(aeadSuites, cs), "non-AEAD suite %d", cs)
	}

	cfg.CipherSuites[0] = 0
	assert.NotEqual(t, uint16(0), DefaultTLSConfig().CipherSuites[0], "each call returns a fresh slice")
}

func TestClientTLSConfig(t *testing.T) {
	assert.Equal(t, "redis.internal", ClientTLSConfig("redis.internal:6380").ServerName)
	assert.Equal(t, "redis.internal", ClientTLSConfig("redis.internal").ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), ClientTLSConfig("x:1").MinVersion)
}

func TestSecureHTTPClient(t *testing.T) {
	client := SecureHTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, client.Timeout)

	tr := SecureTransport()
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.ForceAttemptHTTP2)
	assert.Equal(t, 16, tr.MaxIdleConnsPerHost)
}
