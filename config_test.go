package tremotesf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerConfigURLDefaults(t *testing.T) {
	cfg := ServerConfig{Address: "localhost"}
	require.Equal(t, "http://localhost:9091/transmission/rpc", cfg.url())
}

func TestServerConfigURLHonorsOverrides(t *testing.T) {
	cfg := ServerConfig{Address: "example.com", Port: 443, HTTPS: true, APIPath: "/rpc"}
	require.Equal(t, "https://example.com:443/rpc", cfg.url())
}

func TestServerConfigRetryAttemptsDefault(t *testing.T) {
	var cfg ServerConfig
	require.Equal(t, 2, cfg.retryAttempts())
	cfg.RetryAttempts = 5
	require.Equal(t, 5, cfg.retryAttempts())
}

func TestServerConfigTimeoutDefault(t *testing.T) {
	var cfg ServerConfig
	require.Equal(t, 30*time.Second, cfg.timeout())
	cfg.Timeout = 5 * time.Second
	require.Equal(t, 5*time.Second, cfg.timeout())
}
