package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"UNRAID_API_URL",
	"UNRAID_API_KEY",
	"UNRAID_VERIFY_SSL",
	"UNRAID_TLS_FINGERPRINT",
	"UNRAID_API_TIMEOUT",
	"UNRAID_MCP_HOST",
	"UNRAID_MCP_PORT",
	"UNRAID_MCP_TRANSPORT",
	"UNRAID_MCP_LOG_LEVEL",
	"UNRAID_MCP_LOG_FORMAT",
	"UNRAID_MCP_LOG_FILE",
	"UNRAID_MCP_METRICS_ADDR",
	"UNRAID_MCP_ENV_FILE",
}

// clearEnv blanks every config variable for the test and runs it from an
// empty directory so a developer's .env does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.VerifySSL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 6970, cfg.Port)
	assert.Equal(t, TransportStreamableHTTP, cfg.Transport)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.True(t, cfg.MetricsEnabled())
	assert.Equal(t, "0.0.0.0:6970", cfg.ListenAddr())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("UNRAID_API_URL", "https://tower.local/graphql")
	t.Setenv("UNRAID_API_KEY", "secret-key")
	t.Setenv("UNRAID_VERIFY_SSL", "false")
	t.Setenv("UNRAID_API_TIMEOUT", "45")
	t.Setenv("UNRAID_MCP_PORT", "7000")
	t.Setenv("UNRAID_MCP_TRANSPORT", "STDIO")
	t.Setenv("UNRAID_MCP_LOG_LEVEL", "DEBUG")
	t.Setenv("UNRAID_MCP_METRICS_ADDR", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://tower.local/graphql", cfg.APIURL)
	assert.Equal(t, "secret-key", cfg.APIKey)
	assert.False(t, cfg.VerifySSL)
	assert.Equal(t, 45*time.Second, cfg.APITimeout)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.MetricsEnabled())
}

func TestLoadReportsAllMissingVariables(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNRAID_API_URL, UNRAID_API_KEY")
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("UNRAID_MCP_PORT", "http")
	t.Setenv("UNRAID_VERIFY_SSL", "maybe")
	t.Setenv("UNRAID_API_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNRAID_MCP_PORT")
	assert.Contains(t, err.Error(), "UNRAID_VERIFY_SSL")
	assert.Contains(t, err.Error(), "UNRAID_API_TIMEOUT")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIURL:      "http://10.0.0.2/graphql",
			APIKey:      "k",
			APITimeout:  time.Second,
			Port:        6970,
			Transport:   TransportSSE,
			LogFormat:   "json",
			MetricsAddr: "127.0.0.1:9091",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "scheme", mutate: func(c *Config) { c.APIURL = "tower.local/graphql" }, want: "http or https"},
		{name: "port", mutate: func(c *Config) { c.Port = 70000 }, want: "UNRAID_MCP_PORT"},
		{name: "timeout", mutate: func(c *Config) { c.APITimeout = 0 }, want: "UNRAID_API_TIMEOUT"},
		{name: "transport", mutate: func(c *Config) { c.Transport = "websocket" }, want: "UNRAID_MCP_TRANSPORT"},
		{name: "log format", mutate: func(c *Config) { c.LogFormat = "xml" }, want: "UNRAID_MCP_LOG_FORMAT"},
		{name: "metrics addr", mutate: func(c *Config) { c.MetricsAddr = "9091" }, want: "UNRAID_MCP_METRICS_ADDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "unraid.env")
	content := strings.Join([]string{
		"UNRAID_API_URL=https://nas.example/graphql",
		"UNRAID_API_KEY=from-file",
		"UNRAID_MCP_PORT=7100",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("UNRAID_MCP_ENV_FILE", path)
	t.Setenv("UNRAID_MCP_PORT", "7200")
	t.Cleanup(func() {
		_ = os.Unsetenv("UNRAID_API_URL")
		_ = os.Unsetenv("UNRAID_API_KEY")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://nas.example/graphql", cfg.APIURL)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, 7200, cfg.Port, "environment wins over the env file")
	assert.Equal(t, path, cfg.EnvFile)
}

func TestLoadEnvFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("UNRAID_MCP_ENV_FILE", filepath.Join(t.TempDir(), "nope.env"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load env file")
}

func TestRedacted(t *testing.T) {
	cfg := &Config{APIURL: "https://tower/graphql", APIKey: "super-secret"}

	redacted := cfg.Redacted()
	assert.Equal(t, "********", redacted.APIKey)
	assert.Equal(t, "super-secret", cfg.APIKey)
	assert.Equal(t, cfg.APIURL, redacted.APIURL)

	assert.Empty(t, (&Config{}).Redacted().APIKey)

	var nilConfig *Config
	assert.Equal(t, Config{}, nilConfig.Redacted())
}
