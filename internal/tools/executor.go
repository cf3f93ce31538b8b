package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/rcourtman/unraid-mcp/internal/logging"
	"github.com/rcourtman/unraid-mcp/internal/mcp"
	"github.com/rcourtman/unraid-mcp/internal/metrics"
	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

// Client is the subset of the Unraid API client used by tools.
type Client interface {
	Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
	ProbeSubscription(ctx context.Context, query string, timeout time.Duration) unraid.SubscriptionProbe
	URL() string
}

// ServerSettings describes this server in the health report.
type ServerSettings struct {
	Name      string
	Version   string
	Transport string
	Host      string
	Port      int
}

// ExecutorConfig holds the dependencies of an Executor.
type ExecutorConfig struct {
	Client Client
	Server ServerSettings

	// Optional overrides, mostly for tests.
	Now          func() time.Time
	ProcessStart func(ctx context.Context) (time.Time, error)
}

// Executor implements mcp.ToolExecutor on top of the Unraid GraphQL API.
type Executor struct {
	client       Client
	server       ServerSettings
	now          func() time.Time
	processStart func(ctx context.Context) (time.Time, error)
	registry     *ToolRegistry
	logger       zerolog.Logger
}

// NewExecutor creates an executor with every Unraid tool registered.
func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		client:       cfg.Client,
		server:       cfg.Server,
		now:          cfg.Now,
		processStart: cfg.ProcessStart,
		registry:     NewToolRegistry(),
		logger:       logging.New("tools"),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.processStart == nil {
		e.processStart = currentProcessStart
	}

	e.registerHealthTools()
	e.registerSystemTools()
	e.registerRcloneTools()
	e.registerDiagnosticTools()
	return e
}

// RegisterTool allows tests or extensions to add tools at runtime.
func (e *Executor) RegisterTool(tool RegisteredTool) {
	e.registry.Register(tool)
}

// ListTools returns the list of available tools
func (e *Executor) ListTools() []mcp.Tool {
	return e.registry.ListTools()
}

// ExecuteTool executes a tool and records its outcome.
func (e *Executor) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (mcp.CallToolResult, error) {
	logger := logging.FromContext(ctx, e.logger)
	logger.Info().Str("tool", name).Msg("Executing tool")

	start := time.Now()
	result, err := e.registry.Execute(ctx, e, name, args)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeFor(err)
	if result.IsError {
		outcome = metrics.OutcomeError
	}
	metrics.Get().RecordToolCall(name, outcome, elapsed)

	event := logger.Debug()
	if outcome == metrics.OutcomeError {
		event = logger.Warn()
		if err == nil {
			event = event.Str("result", result.Text())
		}
	}
	event.Err(err).
		Str("tool", name).
		Dur("duration", elapsed).
		Msg("Tool call completed")

	return result, err
}

// query runs one GraphQL round-trip and records upstream metrics.
func (e *Executor) query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, time.Duration, error) {
	if e.client == nil {
		return nil, 0, errors.New("unraid API client is not configured")
	}

	start := time.Now()
	data, err := e.client.Query(ctx, query, variables)
	latency := time.Since(start)
	metrics.Get().RecordUpstream(metrics.OutcomeFor(err), latency)

	if err != nil {
		logger := logging.FromContext(ctx, e.logger)
		logger.Debug().
			Err(err).
			Dur("latency", latency).
			Msg("Unraid API request failed")
	}
	return data, latency, err
}

// queryInto runs a query and decodes the data block into dest.
func (e *Executor) queryInto(ctx context.Context, query string, variables map[string]any, dest any) error {
	data, _, err := e.query(ctx, query, variables)
	if err != nil {
		return err
	}
	if unraid.IsNull(data) {
		return nil
	}
	return unraid.Decode(data, dest)
}

func (e *Executor) processUptime(ctx context.Context) float64 {
	started, err := e.processStart(ctx)
	if err != nil || started.IsZero() {
		e.logger.Debug().Err(err).Msg("Process start time unavailable")
		return 0
	}
	uptime := e.now().Sub(started).Seconds()
	if uptime < 0 {
		return 0
	}
	return uptime
}

func currentProcessStart(ctx context.Context) (time.Time, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return time.Time{}, err
	}
	createdMs, err := proc.CreateTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(createdMs), nil
}

func stringArg(args map[string]interface{}, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func requireStringArg(args map[string]interface{}, key string) (string, error) {
	value := stringArg(args, key)
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

var emptySchema = mcp.InputSchema{
	Type:       "object",
	Properties: map[string]mcp.PropertySchema{},
}
