package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/unraid-mcp/internal/config"
	"github.com/rcourtman/unraid-mcp/internal/mcp"
)

var envKeys = []string{
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

func setupEnv(t *testing.T, values map[string]string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("UNRAID_MCP_LOG_LEVEL", "error")
	t.Setenv("UNRAID_MCP_LOG_FORMAT", "json")
	for key, value := range values {
		t.Setenv(key, value)
	}
}

func runCommand(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	code := execute(context.Background(), args)
	return out.String(), code
}

func graphQLServer(t *testing.T, data string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":`+data+`}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestVersionCmd(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := Version, BuildTime, GitCommit
	defer func() {
		Version, BuildTime, GitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	Version = "1.2.3"
	BuildTime = "2026-01-01"
	GitCommit = "abcdef"

	output, code := runCommand(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, output, "unraid-mcp 1.2.3")
	assert.Contains(t, output, "Built: 2026-01-01")
	assert.Contains(t, output, "Commit: abcdef")

	BuildTime = "unknown"
	GitCommit = "unknown"
	output, _ = runCommand(t, "version")
	assert.NotContains(t, output, "Built:")
	assert.NotContains(t, output, "Commit:")
}

func TestToolsCmd(t *testing.T) {
	output, code := runCommand(t, "tools")
	assert.Equal(t, 0, code)
	assert.Contains(t, output, "health_check")
	assert.Contains(t, output, "list_rclone_remotes")
	assert.Len(t, strings.Split(strings.TrimSpace(output), "\n"), 12)
}

func TestConfigCmdMasksAPIKey(t *testing.T) {
	setupEnv(t, map[string]string{
		"UNRAID_API_URL":     "https://tower.local/graphql",
		"UNRAID_API_KEY":     "secret-key",
		"UNRAID_API_TIMEOUT": "45",
	})

	output, code := runCommand(t, "config")
	require.Equal(t, 0, code)
	assert.NotContains(t, output, "secret-key")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	assert.Equal(t, "********", decoded["api_key"])
	assert.Equal(t, "45s", decoded["api_timeout"])
	assert.Equal(t, "streamable-http", decoded["transport"])
}

func TestConfigCmdMissingSettings(t *testing.T) {
	setupEnv(t, nil)

	_, code := runCommand(t, "config")
	assert.Equal(t, 1, code)
}

func TestHealthCmdHealthy(t *testing.T) {
	server := graphQLServer(t, `{
		"info": {"machineId": "m", "versions": {"core": {"unraid": "7.1.2"}}, "os": {"uptime": "x"}},
		"array": {"state": "STARTED"},
		"notifications": {"overview": {"unread": {"alert": 0, "warning": 0, "total": 0}}},
		"docker": {"containers": []}
	}`)
	setupEnv(t, map[string]string{
		"UNRAID_API_URL": server.URL + "/graphql",
		"UNRAID_API_KEY": "secret-key",
	})

	output, code := runCommand(t, "health")
	assert.Equal(t, 0, code)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, "healthy", report["status"])
	serverInfo := report["server"].(map[string]interface{})
	assert.Equal(t, serverName, serverInfo["name"])
}

func TestHealthCmdUnhealthyExitsNonZero(t *testing.T) {
	server := graphQLServer(t, `{}`)
	setupEnv(t, map[string]string{
		"UNRAID_API_URL": server.URL + "/graphql",
		"UNRAID_API_KEY": "wrong-key",
	})

	output, code := runCommand(t, "health")
	assert.Equal(t, 1, code)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, "unhealthy", report["status"])
	assert.Contains(t, report["error"], "status=401")
}

func TestConfigView(t *testing.T) {
	view := configView(&config.Config{APIKey: "k", APITimeout: 30 * time.Second})
	assert.Equal(t, "********", view.APIKey)
	assert.Equal(t, "30s", view.APITimeout)
}

func TestServeTransportStopsOnCancel(t *testing.T) {
	executor, client, err := newExecutor(&config.Config{
		APIURL: "http://127.0.0.1:1/graphql",
		APIKey: "k",
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := &config.Config{Transport: config.TransportSSE, Host: "127.0.0.1", Port: 0}
	done := make(chan error, 1)
	go func() { done <- serveTransport(ctx, cfg, mcp.NewServer(mcpServerName, "test", executor)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("HTTP transport did not stop on cancel")
	}
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	server := httptest.NewServer(newMetricsHandler())
	defer server.Close()

	res, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "unraid_mcp_health_status")
}

func TestServeMetricsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveMetrics(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestNewExecutorRejectsBadURL(t *testing.T) {
	_, _, err := newExecutor(&config.Config{APIURL: "ftp://tower", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create Unraid API client")
}
