package unraid

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

const maxResponseBodyBytes int64 = 8 * 1024 * 1024

// ClientConfig configures the Unraid GraphQL API client.
type ClientConfig struct {
	URL         string
	APIKey      string
	VerifySSL   bool
	Fingerprint string
	Timeout     time.Duration
}

// Client is a thin HTTP wrapper around the Unraid GraphQL endpoint.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	endpoint   *url.URL
}

// APIError represents an HTTP-level error from the GraphQL endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unraid api request failed: status=%d body=%q", e.StatusCode, e.Body)
}

// GraphQLError carries the messages of a GraphQL `errors` array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "GraphQL API error: " + strings.Join(e.Messages, "; ")
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewClient creates a new Unraid GraphQL client.
func NewClient(config ClientConfig) (*Client, error) {
	endpoint, err := parseEndpoint(config.URL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("unraid api key is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = DialContext
	if endpoint.Scheme == "https" {
		tlsConfig, err := buildTLSConfig(!config.VerifySSL, config.Fingerprint)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsConfig
	}

	config.URL = endpoint.String()
	config.Timeout = timeout

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		endpoint: endpoint,
	}, nil
}

// URL returns the normalized GraphQL endpoint.
func (c *Client) URL() string {
	return c.endpoint.String()
}

// Close releases idle HTTP transport connections held by the client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil || c.httpClient.Transport == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(interface{ CloseIdleConnections() }); ok {
		transport.CloseIdleConnections()
	}
}

// Query executes one GraphQL document and returns the raw `data` member,
// which may be JSON null.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (data json.RawMessage, err error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build unraid request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-API-Key", strings.TrimSpace(c.config.APIKey))

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("unraid request failed: %w", err)
	}
	defer func() {
		if closeErr := response.Body.Close(); closeErr != nil {
			wrappedCloseErr := fmt.Errorf("close unraid response body: %w", closeErr)
			if err != nil {
				err = errors.Join(err, wrappedCloseErr)
				return
			}
			err = wrappedCloseErr
		}
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		errBody, readErr := io.ReadAll(io.LimitReader(response.Body, 4096))
		if readErr != nil {
			return nil, fmt.Errorf("read unraid error response body: %w", readErr)
		}
		message := strings.TrimSpace(string(errBody))
		if message == "" {
			message = http.StatusText(response.StatusCode)
		}
		return nil, &APIError{StatusCode: response.StatusCode, Body: message}
	}

	var decoded graphQLResponse
	if err := decodeJSONResponseWithLimit(response.Body, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, item := range decoded.Errors {
			messages = append(messages, strings.TrimSpace(item.Message))
		}
		return nil, &GraphQLError{Messages: messages}
	}

	if len(decoded.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return decoded.Data, nil
}

// Decode unmarshals a raw payload into dest, keeping numbers as json.Number
// when dest holds interface values.
func Decode(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode unraid payload: %w", err)
	}
	return nil
}

// IsNull reports whether a raw payload is missing or JSON null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseEndpoint(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("unraid api url is required")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid unraid api url %q: %w", raw, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("invalid unraid api url %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" || parsed.Hostname() == "" {
		return nil, fmt.Errorf("invalid unraid api url %q: host is required", raw)
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("invalid unraid api url %q: credentials are not allowed", raw)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return nil, fmt.Errorf("invalid unraid api url %q: query and fragment are not allowed", raw)
	}

	parsed.Scheme = scheme
	return parsed, nil
}

func decodeJSONResponseWithLimit(body io.Reader, destination any) error {
	responseBody, err := io.ReadAll(io.LimitReader(body, maxResponseBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read unraid response: %w", err)
	}
	if int64(len(responseBody)) > maxResponseBodyBytes {
		return fmt.Errorf("decode unraid response: response body exceeds %d bytes", maxResponseBodyBytes)
	}

	decoder := json.NewDecoder(bytes.NewReader(responseBody))
	decoder.UseNumber()
	if err := decoder.Decode(destination); err != nil {
		return fmt.Errorf("decode unraid response: %w", err)
	}

	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); err != io.EOF {
		return fmt.Errorf("decode unraid response: unexpected trailing data")
	}

	return nil
}

func buildTLSConfig(insecureSkipVerify bool, fingerprint string) (*tls.Config, error) {
	normalizedFingerprint, err := NormalizeFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if normalizedFingerprint != "" {
		// Pinned certificates are usually self-signed, so chain verification
		// gives way to the fingerprint check.
		tlsConfig.InsecureSkipVerify = true
		tlsConfig.VerifyConnection = func(state tls.ConnectionState) error {
			if len(state.PeerCertificates) == 0 {
				return fmt.Errorf("unraid tls pinning failed: missing peer certificate")
			}

			sum := sha256.Sum256(state.PeerCertificates[0].Raw)
			if hex.EncodeToString(sum[:]) != normalizedFingerprint {
				return fmt.Errorf("unraid tls pinning failed: fingerprint mismatch")
			}
			return nil
		}
	}

	return tlsConfig, nil
}

// NormalizeFingerprint lowercases a SHA-256 fingerprint and strips separators.
// An empty input is valid and disables pinning.
func NormalizeFingerprint(fingerprint string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(fingerprint))
	normalized = strings.TrimPrefix(normalized, "sha256:")
	normalized = strings.ReplaceAll(normalized, ":", "")
	normalized = strings.ReplaceAll(normalized, " ", "")

	if normalized == "" {
		return "", nil
	}
	if len(normalized) != 64 {
		return "", fmt.Errorf("invalid unraid fingerprint %q: expected 64 hex characters", fingerprint)
	}
	if _, err := hex.DecodeString(normalized); err != nil {
		return "", fmt.Errorf("invalid unraid fingerprint %q: %w", fingerprint, err)
	}

	return normalized, nil
}
