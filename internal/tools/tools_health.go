package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rcourtman/unraid-mcp/internal/health"
	"github.com/rcourtman/unraid-mcp/internal/mcp"
	"github.com/rcourtman/unraid-mcp/internal/metrics"
	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

func (e *Executor) registerHealthTools() {
	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name: "health_check",
			Description: `Returns comprehensive health status of the Unraid server and this MCP server.

Checks system info, array state, unread alert notifications and API latency.
Status is one of healthy, warning, degraded, unhealthy; issues lists what raised it.
Docker container counts are informational.`,
			InputSchema: emptySchema,
		},
		Handler: func(ctx context.Context, exec *Executor, _ map[string]interface{}) (mcp.CallToolResult, error) {
			report := exec.HealthCheck(ctx)
			return mcp.NewJSONResult(report), nil
		},
	})
}

// HealthCheck runs one health query and classifies the result. Upstream
// failures produce an unhealthy report rather than an error.
func (e *Executor) HealthCheck(ctx context.Context) health.Report {
	start := time.Now()

	data, latency, err := e.query(ctx, unraid.HealthQuery, nil)
	latencyMs := durationMs(latency)

	var report health.Report
	if err != nil {
		report = health.FailureReport(err, latencyMs, e.now())
	} else {
		var payload unraid.HealthPayload
		if !unraid.IsNull(data) {
			if decodeErr := unraid.Decode(data, &payload); decodeErr != nil {
				err = fmt.Errorf("decode health payload: %w", decodeErr)
			}
		}
		if err != nil {
			report = health.FailureReport(err, latencyMs, e.now())
		} else {
			apiURL := ""
			if e.client != nil {
				apiURL = e.client.URL()
			}
			report = health.BuildReport(health.Input{
				Payload:   &payload,
				LatencyMs: latencyMs,
				APIURL:    apiURL,
				Now:       e.now(),
			})
			if report.Evaluated() {
				report.Performance = &health.Performance{
					APIResponseTimeMs:     health.RoundMs(latencyMs),
					HealthCheckDurationMs: health.RoundMs(durationMs(time.Since(start))),
				}
			}
		}
	}

	report.Server = &health.ServerInfo{
		Name:                 e.server.Name,
		Version:              e.server.Version,
		Transport:            e.server.Transport,
		Host:                 e.server.Host,
		Port:                 e.server.Port,
		ProcessUptimeSeconds: health.RoundMs(e.processUptime(ctx)),
	}

	m := metrics.Get()
	m.SetHealth(int(report.Status), len(report.Issues))
	if report.ArrayStatus != nil && report.ArrayStatus.OverallHealth != nil {
		m.SetArrayHealth(int(*report.ArrayStatus.OverallHealth))
	}

	event := e.logger.Info()
	if report.Status != health.StatusHealthy {
		event = e.logger.Warn().Strs("issues", report.Issues)
	}
	event.
		Str("status", report.Status.String()).
		Float64("api_latency_ms", report.APILatencyMs).
		Msg("Health check completed")

	return report
}
