package health

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

func TestAggregateArray(t *testing.T) {
	tests := []struct {
		name   string
		counts RoleCounts
		want   ArrayHealth
	}{
		{name: "empty", counts: RoleCounts{}, want: ArrayHealthy},
		{name: "nil", counts: nil, want: ArrayHealthy},
		{name: "all healthy", counts: RoleCounts{RoleData: {Healthy: 4}, RoleParity: {Healthy: 1}}, want: ArrayHealthy},
		{name: "new and unknown stay healthy", counts: RoleCounts{RoleData: {New: 1, Unknown: 2}}, want: ArrayHealthy},
		{name: "warning", counts: RoleCounts{RoleCache: {Warning: 1}}, want: ArrayWarning},
		{name: "missing", counts: RoleCounts{RoleData: {Missing: 1}, RoleCache: {Warning: 3}}, want: ArrayDegraded},
		{name: "failed", counts: RoleCounts{RoleParity: {Failed: 1}, RoleData: {Missing: 2, Warning: 1}}, want: ArrayCritical},
		{name: "failures spread across roles", counts: RoleCounts{RoleParity: {Healthy: 1}, RoleCache: {Failed: 1}}, want: ArrayCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateArray(tt.counts))
		})
	}
}

func TestAggregateArrayFailedDiskIsAlwaysCritical(t *testing.T) {
	bases := []RoleCounts{
		{},
		{RoleData: {Healthy: 3}},
		{RoleData: {Missing: 1}, RoleParity: {Warning: 2}},
		{RoleCache: {New: 1, Unknown: 1}},
	}
	roles := []DiskRole{RoleParity, RoleData, RoleCache}

	for _, base := range bases {
		for _, role := range roles {
			counts := RoleCounts{}
			for k, v := range base {
				counts[k] = v
			}
			current := counts[role]
			current.Failed++
			counts[role] = current
			assert.Equal(t, ArrayCritical, AggregateArray(counts), "role %s base %+v", role, base)
		}
	}
}

func TestFormatCapacity(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "nil", input: nil, want: "N/A"},
		{name: "zero", input: 0, want: "0 KB"},
		{name: "kilobytes", input: 1023, want: "1023 KB"},
		{name: "one megabyte", input: 1024, want: "1.00 MB"},
		{name: "one gigabyte", input: 1048576, want: "1.00 GB"},
		{name: "one terabyte", input: 1073741824, want: "1.00 TB"},
		{name: "numeric string", input: "1073741824", want: "1.00 TB"},
		{name: "json number", input: json.Number("1572864"), want: "1.50 GB"},
		{name: "float", input: float64(2048.9), want: "2.00 MB"},
		{name: "large array", input: "23437500000", want: "21.83 TB"},
		{name: "garbage", input: "lots", want: "N/A"},
		{name: "float out of range", input: float64(1e30), want: "N/A"},
		{name: "json number out of range", input: json.Number("1e30"), want: "N/A"},
		{name: "negative out of range", input: float64(-1e30), want: "N/A"},
		{name: "infinity", input: math.Inf(1), want: "N/A"},
		{name: "nan", input: math.NaN(), want: "N/A"},
		{name: "empty string", input: "", want: "N/A"},
		{name: "wrong type", input: []string{"1"}, want: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCapacity(tt.input))
		})
	}
}

const arrayFixture = `{
	"id": "array",
	"state": "STARTED",
	"capacity": {"kilobytes": {"free": "1048576", "used": "2048", "total": "1073741824"}},
	"boot": {"name": "flash", "status": "DISK_DSBL"},
	"parities": [{"name": "parity", "status": "DISK_OK", "warning": null, "critical": null}],
	"disks": [
		{"name": "disk1", "status": "DISK_OK", "temp": 34},
		{"name": "disk2", "status": "DISK_OK", "warning": 70},
		{"name": "disk3", "status": "DISK_NP"}
	],
	"caches": []
}`

func decodeArray(t *testing.T, raw string) *unraid.Array {
	t.Helper()
	var array unraid.Array
	require.NoError(t, unraid.Decode(json.RawMessage(raw), &array))
	return &array
}

func TestBuildArrayStatus(t *testing.T) {
	array := decodeArray(t, arrayFixture)

	report, err := BuildArrayStatus(array, json.RawMessage(arrayFixture))
	require.NoError(t, err)

	summary := report.Summary
	assert.Equal(t, "STARTED", summary.State)
	assert.Equal(t, "1.00 TB", summary.CapacityTotal)
	assert.Equal(t, "2.00 MB", summary.CapacityUsed)
	assert.Equal(t, "1.00 GB", summary.CapacityFree)
	assert.Equal(t, 1, summary.NumParityDisks)
	assert.Equal(t, 3, summary.NumDataDisks)
	assert.Equal(t, 0, summary.NumCachePools)
	assert.Equal(t, ArrayDegraded, summary.OverallHealth)

	require.NotNil(t, summary.HealthSummary.Parity)
	assert.Equal(t, HealthCounts{Healthy: 1}, *summary.HealthSummary.Parity)
	require.NotNil(t, summary.HealthSummary.Data)
	assert.Equal(t, HealthCounts{Healthy: 1, Warning: 1, Missing: 1}, *summary.HealthSummary.Data)
	assert.Nil(t, summary.HealthSummary.Cache)

	assert.JSONEq(t, arrayFixture, string(report.Details))

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	summaryJSON := decoded["summary"].(map[string]any)
	assert.Equal(t, "DEGRADED", summaryJSON["overall_health"])
	healthJSON := summaryJSON["health_summary"].(map[string]any)
	assert.Contains(t, healthJSON, "parity_health")
	assert.Contains(t, healthJSON, "data_health")
	assert.NotContains(t, healthJSON, "cache_health")
}

func TestBuildArrayStatusWithoutCapacity(t *testing.T) {
	array := &unraid.Array{State: "STOPPED"}

	report, err := BuildArrayStatus(array, nil)
	require.NoError(t, err)

	assert.Equal(t, ArrayHealthy, report.Summary.OverallHealth)
	assert.Empty(t, report.Summary.CapacityTotal)
	assert.JSONEq(t, `{"state":"STOPPED"}`, string(report.Details))

	data, err := json.Marshal(report.Summary)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "capacity_total")
	assert.Contains(t, string(data), `"health_summary":{}`)
}

func TestBuildArrayStatusMalformedCapacity(t *testing.T) {
	array := decodeArray(t, `{"state":"STARTED","capacity":{"kilobytes":{"free":null,"used":"n/a","total":"4096"}}}`)

	report, err := BuildArrayStatus(array, nil)
	require.NoError(t, err)
	assert.Equal(t, "4.00 MB", report.Summary.CapacityTotal)
	assert.Equal(t, "N/A", report.Summary.CapacityUsed)
	assert.Equal(t, "N/A", report.Summary.CapacityFree)
}

func TestBuildArrayStatusRequiresArray(t *testing.T) {
	_, err := BuildArrayStatus(nil, nil)
	require.Error(t, err)
}

func TestClassifyArraySkipsBootDisk(t *testing.T) {
	array := decodeArray(t, arrayFixture)
	counts := ClassifyArray(array)

	assert.NotContains(t, counts, RoleBoot)
	assert.NotContains(t, counts, RoleCache)
	assert.Equal(t, 0, counts.Total().Failed)
	assert.Empty(t, ClassifyArray(nil))
}
