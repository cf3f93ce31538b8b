package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rcourtman/unraid-mcp/internal/health"
	"github.com/rcourtman/unraid-mcp/internal/mcp"
	"github.com/rcourtman/unraid-mcp/internal/metrics"
	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

const bytesPerGB = 1 << 30

// SystemInfoReport is the result of get_system_info.
type SystemInfoReport struct {
	Summary SystemInfoSummary `json:"summary"`
	Details json.RawMessage   `json:"details"`
}

type SystemInfoSummary struct {
	OS                  string   `json:"os,omitempty"`
	Hostname            string   `json:"hostname,omitempty"`
	Uptime              string   `json:"uptime,omitempty"`
	CPU                 string   `json:"cpu,omitempty"`
	MemoryLayoutDetails []string `json:"memory_layout_details,omitempty"`
	MemoryTotal         string   `json:"memory_total,omitempty"`
	MemorySummary       string   `json:"memory_summary,omitempty"`
}

var connectSettingKeys = map[string]bool{
	"accessType":  true,
	"forwardType": true,
	"port":        true,
}

func (e *Executor) registerSystemTools() {
	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "get_system_info",
			Description: "Retrieves comprehensive information about the Unraid system: OS, CPU, memory layout, baseboard and versions.",
			InputSchema: emptySchema,
		},
		Handler: func(ctx context.Context, exec *Executor, _ map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeGetSystemInfo(ctx)
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "get_array_status",
			Description: "Retrieves the state of the storage array: capacity, per-role disk health counts, an overall health verdict and details of every disk.",
			InputSchema: emptySchema,
		},
		Handler: func(ctx context.Context, exec *Executor, _ map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeGetArrayStatus(ctx)
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "get_network_config",
			Description: "Retrieves network configuration details, including access URLs.",
			InputSchema: emptySchema,
		},
		Handler: func(ctx context.Context, exec *Executor, _ map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executePassThrough(ctx, unraid.NetworkConfigQuery, "network configuration", "network")
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "get_registration_info",
			Description: "Retrieves Unraid registration details: license type, state and expiration.",
			InputSchema: emptySchema,
		},
		Handler: func(ctx context.Context, exec *Executor, _ map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executePassThrough(ctx, unraid.RegistrationQuery, "registration information", "registration")
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "get_connect_settings",
			Description: "Retrieves settings related to Unraid Connect.",
			InputSchema: emptySchema,
		},
		Handler: func(ctx context.Context, exec *Executor, _ map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executeGetConnectSettings(ctx)
		},
	})

	e.registry.Register(RegisteredTool{
		Definition: mcp.Tool{
			Name:        "get_unraid_variables",
			Description: "Retrieves a curated selection of Unraid system variables and settings. Counters that the API cannot encode are omitted.",
			InputSchema: emptySchema,
		},
		Handler: func(ctx context.Context, exec *Executor, _ map[string]interface{}) (mcp.CallToolResult, error) {
			return exec.executePassThrough(ctx, unraid.VariablesQuery, "Unraid variables", "vars")
		},
	})
}

func (e *Executor) executeGetSystemInfo(ctx context.Context) (mcp.CallToolResult, error) {
	data, _, err := e.query(ctx, unraid.SystemInfoQuery, nil)
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve system information: %w", err)), nil
	}

	raw, err := selectField(data, "info")
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve system information: %w", err)), nil
	}
	if isEmptyValue(raw) {
		return mcp.NewErrorResult(errors.New("Failed to retrieve system information: no system info returned from Unraid API")), nil
	}

	var info unraid.SystemInfo
	if err := unraid.Decode(raw, &info); err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve system information: %w", err)), nil
	}

	return mcp.NewJSONResult(SystemInfoReport{
		Summary: summarizeSystemInfo(&info),
		Details: raw,
	}), nil
}

func summarizeSystemInfo(info *unraid.SystemInfo) SystemInfoSummary {
	var summary SystemInfoSummary

	if os := info.OS; os != nil {
		summary.OS = fmt.Sprintf("%s %s (%s, %s)", os.Distro, os.Release, os.Platform, os.Arch)
		summary.Hostname = os.Hostname
		summary.Uptime = os.Uptime
	}

	if cpu := info.CPU; cpu != nil {
		summary.CPU = fmt.Sprintf("%s %s (%s cores, %s threads)",
			cpu.Manufacturer, cpu.Brand, flexString(cpu.Cores), flexString(cpu.Threads))
	}

	if info.Memory == nil || len(info.Memory.Layout) == 0 {
		summary.MemorySummary = "Memory layout not available"
		return summary
	}

	var totalBytes int64
	summary.MemoryLayoutDetails = make([]string, 0, len(info.Memory.Layout))
	for _, stick := range info.Memory.Layout {
		size := ""
		if stick.Size.Valid && stick.Size.Int() > 0 {
			totalBytes += stick.Size.Int()
			size = fmt.Sprintf(", Size: %.0f GB", float64(stick.Size.Int())/bytesPerGB)
		}
		summary.MemoryLayoutDetails = append(summary.MemoryLayoutDetails, fmt.Sprintf(
			"Bank %s: Type %s, Speed %sMHz%s, Manufacturer: %s, Part: %s",
			orUnknown(stick.Bank), orUnknown(stick.Type), flexString(stick.ClockSpeed), size,
			orUnknown(stick.Manufacturer), orUnknown(stick.PartNum),
		))
	}

	if totalBytes > 0 {
		summary.MemoryTotal = fmt.Sprintf("%.0f GB", float64(totalBytes)/bytesPerGB)
	} else {
		summary.MemoryTotal = "Unknown"
	}
	return summary
}

func (e *Executor) executeGetArrayStatus(ctx context.Context) (mcp.CallToolResult, error) {
	data, _, err := e.query(ctx, unraid.ArrayStatusQuery, nil)
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve array status: %w", err)), nil
	}

	raw, err := selectField(data, "array")
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve array status: %w", err)), nil
	}

	var array *unraid.Array
	if !isEmptyValue(raw) {
		array = &unraid.Array{}
		if err := unraid.Decode(raw, array); err != nil {
			return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve array status: %w", err)), nil
		}
	}

	report, err := health.BuildArrayStatus(array, raw)
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve array status: %w", err)), nil
	}
	metrics.Get().SetArrayHealth(int(report.Summary.OverallHealth))

	return mcp.NewJSONResult(report), nil
}

func (e *Executor) executeGetConnectSettings(ctx context.Context) (mcp.CallToolResult, error) {
	data, _, err := e.query(ctx, unraid.ConnectSettingsQuery, nil)
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve Unraid Connect settings: %w", err)), nil
	}

	raw, err := selectField(data, "settings", "unified", "values")
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve Unraid Connect settings: %w", err)), nil
	}

	var values map[string]json.RawMessage
	if isEmptyValue(raw) || json.Unmarshal(raw, &values) != nil {
		return mcp.NewJSONResult(map[string]json.RawMessage{}), nil
	}

	return mcp.NewJSONResult(filterConnectSettings(values)), nil
}

// filterConnectSettings keeps Connect-related keys. When none match the full
// set is returned.
func filterConnectSettings(values map[string]json.RawMessage) map[string]json.RawMessage {
	filtered := make(map[string]json.RawMessage)
	for key, value := range values {
		if strings.Contains(strings.ToLower(key), "connect") || connectSettingKeys[key] {
			filtered[key] = value
		}
	}
	if len(filtered) == 0 {
		return values
	}
	return filtered
}

// executePassThrough returns one top-level field of the query result as-is,
// or an empty object when the API returned nothing.
func (e *Executor) executePassThrough(ctx context.Context, query, what, field string) (mcp.CallToolResult, error) {
	data, _, err := e.query(ctx, query, nil)
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve %s: %w", what, err)), nil
	}

	raw, err := selectField(data, field)
	if err != nil {
		return mcp.NewErrorResult(fmt.Errorf("Failed to retrieve %s: %w", what, err)), nil
	}
	if isEmptyValue(raw) || !isJSONObject(raw) {
		return mcp.NewJSONResult(map[string]any{}), nil
	}
	return mcp.NewJSONResult(raw), nil
}

// selectField walks nested objects by key. A missing or null step yields a
// nil result without error.
func selectField(data json.RawMessage, path ...string) (json.RawMessage, error) {
	current := data
	for _, key := range path {
		if unraid.IsNull(current) {
			return nil, nil
		}
		if !isJSONObject(current) {
			return nil, nil
		}
		var object map[string]json.RawMessage
		if err := json.Unmarshal(current, &object); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		next, ok := object[key]
		if !ok {
			return nil, nil
		}
		current = next
	}
	return current, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// isEmptyValue reports null, missing or {} values.
func isEmptyValue(raw json.RawMessage) bool {
	if unraid.IsNull(raw) {
		return true
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < 2 || trimmed[0] != '{' {
		return false
	}
	return len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
}

func flexString(value unraid.FlexInt) string {
	if !value.Valid {
		return "?"
	}
	return fmt.Sprintf("%d", value.Int())
}

func orUnknown(value string) string {
	if value == "" {
		return "?"
	}
	return value
}
