package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rcourtman/unraid-mcp/internal/mcp"
	"github.com/rcourtman/unraid-mcp/internal/metrics"
)

const (
	defaultProbeTimeout = 10 * time.Second
	maxProbeTimeout     = 60 * time.Second
)

func (e *Executor) registerDiagnosticTools() {
	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name: "test_subscription_query",
			Description: `Opens a GraphQL subscription against the Unraid API and waits for the first event.

Use to check whether a subscription works before relying on it. Reports whether the
websocket connected, whether the server acknowledged the session, and the first
event or error received.`,
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.PropertySchema{
					"subscription_query": {
						Type:        "string",
						Description: "GraphQL subscription document, e.g. \"subscription { arraySubscription { state } }\"",
					},
					"timeout_seconds": {
						Type:        "number",
						Description: "Seconds to wait for the first event (default 10, max 60)",
					},
				},
				Required: []string{"subscription_query"},
			},
		},
		Handler: func(ctx context.Context, exec *Executor, args map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeTestSubscription(ctx, args)
		},
	})
}

func (e *Executor) executeTestSubscription(ctx context.Context, args map[string]interface{}) (mcp.CallToolResult, error) {
	query, err := requireStringArg(args, "subscription_query")
	if err != nil {
		return mcp.NewErrorResult(err), nil
	}
	if !strings.HasPrefix(strings.ToLower(query), "subscription") {
		return mcp.NewErrorResult(errors.New("subscription_query must be a GraphQL subscription operation")), nil
	}
	if e.client == nil {
		return mcp.NewErrorResult(errors.New("unraid API client is not configured")), nil
	}

	timeout := defaultProbeTimeout
	if seconds, ok := args["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
		if timeout > maxProbeTimeout {
			timeout = maxProbeTimeout
		}
	}

	probe := e.client.ProbeSubscription(ctx, query, timeout)

	var probeErr error
	if probe.Error != "" {
		probeErr = errors.New(probe.Error)
	}
	metrics.Get().RecordUpstream(metrics.OutcomeFor(probeErr), probe.Duration)

	e.logger.Debug().
		Str("probe_id", probe.ID).
		Bool("connected", probe.Connected).
		Bool("acknowledged", probe.Acknowledged).
		Str("error", probe.Error).
		Dur("duration", probe.Duration).
		Msg("Subscription probe finished")

	return mcp.NewJSONResult(probe), nil
}
