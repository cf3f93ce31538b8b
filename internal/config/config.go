package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transport selects how the MCP server talks to its clients.
type Transport string

const (
	TransportStreamableHTTP Transport = "streamable-http"
	// TransportSSE is accepted for older clients and served by the HTTP transport.
	TransportSSE   Transport = "sse"
	TransportStdio Transport = "stdio"
)

const sensitiveMask = "********"

// MetricsDisabled turns off the Prometheus listener when used as the metrics address.
const MetricsDisabled = "off"

const (
	defaultAPITimeout  = 30 * time.Second
	defaultHost        = "0.0.0.0"
	defaultPort        = 6970
	defaultMetricsAddr = ":9091"
)

// Config holds all runtime settings, sourced from the environment.
type Config struct {
	APIURL         string        `json:"api_url"`
	APIKey         string        `json:"api_key"`
	VerifySSL      bool          `json:"verify_ssl"`
	TLSFingerprint string        `json:"tls_fingerprint,omitempty"`
	APITimeout     time.Duration `json:"api_timeout"`

	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Transport Transport `json:"transport"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	LogFile   string `json:"log_file,omitempty"`

	MetricsAddr string `json:"metrics_addr"`
	EnvFile     string `json:"env_file,omitempty"`
}

// Load reads .env files, parses the environment and validates the result.
func Load() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFiles loads .env from the working directory when present, then the
// file named by UNRAID_MCP_ENV_FILE. Variables already set are never overridden.
func LoadEnvFiles() error {
	_ = godotenv.Load()

	if path := strings.TrimSpace(os.Getenv("UNRAID_MCP_ENV_FILE")); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// FromEnv parses the environment without validating required values.
func FromEnv() (*Config, error) {
	var errs []error

	verifySSL, err := envOrDefaultBool("UNRAID_VERIFY_SSL", true)
	errs = append(errs, err)
	timeout, err := envOrDefaultDuration("UNRAID_API_TIMEOUT", defaultAPITimeout)
	errs = append(errs, err)
	port, err := envOrDefaultInt("UNRAID_MCP_PORT", defaultPort)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &Config{
		APIURL:         strings.TrimSpace(os.Getenv("UNRAID_API_URL")),
		APIKey:         strings.TrimSpace(os.Getenv("UNRAID_API_KEY")),
		VerifySSL:      verifySSL,
		TLSFingerprint: strings.TrimSpace(os.Getenv("UNRAID_TLS_FINGERPRINT")),
		APITimeout:     timeout,
		Host:           envOrDefault("UNRAID_MCP_HOST", defaultHost),
		Port:           port,
		Transport:      Transport(strings.ToLower(envOrDefault("UNRAID_MCP_TRANSPORT", string(TransportStreamableHTTP)))),
		LogLevel:       strings.ToLower(envOrDefault("UNRAID_MCP_LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(envOrDefault("UNRAID_MCP_LOG_FORMAT", "auto")),
		LogFile:        strings.TrimSpace(os.Getenv("UNRAID_MCP_LOG_FILE")),
		MetricsAddr:    envOrDefault("UNRAID_MCP_METRICS_ADDR", defaultMetricsAddr),
		EnvFile:        strings.TrimSpace(os.Getenv("UNRAID_MCP_ENV_FILE")),
	}, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, "UNRAID_API_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "UNRAID_API_KEY")
	}

	var problems []error
	if len(missing) > 0 {
		problems = append(problems, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}

	if c.APIURL != "" {
		parsed, err := url.Parse(c.APIURL)
		switch {
		case err != nil:
			problems = append(problems, fmt.Errorf("UNRAID_API_URL must be a valid URL: %w", err))
		case parsed.Scheme != "http" && parsed.Scheme != "https":
			problems = append(problems, fmt.Errorf("UNRAID_API_URL must use http or https scheme"))
		case parsed.Host == "":
			problems = append(problems, fmt.Errorf("UNRAID_API_URL must include a host"))
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Errorf("UNRAID_MCP_PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.APITimeout <= 0 {
		problems = append(problems, fmt.Errorf("UNRAID_API_TIMEOUT must be greater than 0, got %s", c.APITimeout))
	}

	switch c.Transport {
	case TransportStreamableHTTP, TransportSSE, TransportStdio:
	default:
		problems = append(problems, fmt.Errorf("UNRAID_MCP_TRANSPORT %q is not supported; choose streamable-http, sse or stdio", c.Transport))
	}

	switch c.LogFormat {
	case "json", "console", "auto":
	default:
		problems = append(problems, fmt.Errorf("UNRAID_MCP_LOG_FORMAT must be json, console or auto, got %q", c.LogFormat))
	}

	if c.MetricsEnabled() {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			problems = append(problems, fmt.Errorf("UNRAID_MCP_METRICS_ADDR must be host:port or %q: %w", MetricsDisabled, err))
		}
	}

	return errors.Join(problems...)
}

// ListenAddr is the bind address of the HTTP transport.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MetricsEnabled reports whether the Prometheus endpoint should be served.
func (c *Config) MetricsEnabled() bool {
	addr := strings.ToLower(strings.TrimSpace(c.MetricsAddr))
	return addr != "" && addr != MetricsDisabled
}

// Redacted returns a copy with the API key masked.
func (c *Config) Redacted() Config {
	if c == nil {
		return Config{}
	}

	redacted := *c
	if strings.TrimSpace(redacted.APIKey) != "" {
		redacted.APIKey = sensitiveMask
	}
	return redacted
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func envOrDefaultBool(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

// envOrDefaultDuration accepts Go durations ("45s") or a bare number of seconds.
func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration or number of seconds: %w", key, err)
	}
	return d, nil
}
