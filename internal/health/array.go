package health

import (
	"encoding/json"
	"fmt"

	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

const (
	kilobytesPerMB = 1024
	kilobytesPerGB = 1024 * 1024
	kilobytesPerTB = 1024 * 1024 * 1024
)

// capacityUnavailable is returned by FormatCapacity for absent or malformed input.
const capacityUnavailable = "N/A"

// RoleCounts holds the classification result per disk role. Roles whose disk
// list was empty are absent.
type RoleCounts map[DiskRole]HealthCounts

// Total sums the counts across roles.
func (r RoleCounts) Total() HealthCounts {
	var total HealthCounts
	for _, counts := range r {
		total = total.Add(counts)
	}
	return total
}

type arrayRule struct {
	applies func(HealthCounts) bool
	verdict ArrayHealth
}

// Rules are independent; the verdict is the most severe one that applies.
var arrayRules = []arrayRule{
	{applies: func(c HealthCounts) bool { return c.Failed > 0 }, verdict: ArrayCritical},
	{applies: func(c HealthCounts) bool { return c.Missing > 0 }, verdict: ArrayDegraded},
	{applies: func(c HealthCounts) bool { return c.Warning > 0 }, verdict: ArrayWarning},
}

// AggregateArray derives the overall array verdict from per-role counts.
func AggregateArray(counts RoleCounts) ArrayHealth {
	total := counts.Total()
	verdict := ArrayHealthy
	for _, rule := range arrayRules {
		if rule.applies(total) {
			verdict = MaxArrayHealth(verdict, rule.verdict)
		}
	}
	return verdict
}

// ClassifyArray buckets the parity, data and cache disks of an array. The
// boot device is not part of the aggregate.
func ClassifyArray(array *unraid.Array) RoleCounts {
	counts := RoleCounts{}
	if array == nil {
		return counts
	}
	if len(array.Parities) > 0 {
		counts[RoleParity] = Classify(array.Parities)
	}
	if len(array.Disks) > 0 {
		counts[RoleData] = Classify(array.Disks)
	}
	if len(array.Caches) > 0 {
		counts[RoleCache] = Classify(array.Caches)
	}
	return counts
}

// FormatCapacity renders a kilobyte figure using binary thresholds. It accepts
// numbers or numeric strings and returns "N/A" for anything else.
func FormatCapacity(kilobytes any) string {
	value, ok := unraid.ParseInt64(kilobytes)
	if !ok {
		return capacityUnavailable
	}

	switch {
	case value >= kilobytesPerTB:
		return fmt.Sprintf("%.2f TB", float64(value)/kilobytesPerTB)
	case value >= kilobytesPerGB:
		return fmt.Sprintf("%.2f GB", float64(value)/kilobytesPerGB)
	case value >= kilobytesPerMB:
		return fmt.Sprintf("%.2f MB", float64(value)/kilobytesPerMB)
	default:
		return fmt.Sprintf("%d KB", value)
	}
}

// ArrayStatusReport is the result of the array status tool.
type ArrayStatusReport struct {
	Summary ArraySummary    `json:"summary"`
	Details json.RawMessage `json:"details"`
}

// ArraySummary is the human-oriented view of the array.
type ArraySummary struct {
	State          string        `json:"state"`
	CapacityTotal  string        `json:"capacity_total,omitempty"`
	CapacityUsed   string        `json:"capacity_used,omitempty"`
	CapacityFree   string        `json:"capacity_free,omitempty"`
	NumParityDisks int           `json:"num_parity_disks"`
	NumDataDisks   int           `json:"num_data_disks"`
	NumCachePools  int           `json:"num_cache_pools"`
	OverallHealth  ArrayHealth   `json:"overall_health"`
	HealthSummary  HealthSummary `json:"health_summary"`
}

// HealthSummary carries per-role counts; a role is omitted when it has no disks.
type HealthSummary struct {
	Parity *HealthCounts `json:"parity_health,omitempty"`
	Data   *HealthCounts `json:"data_health,omitempty"`
	Cache  *HealthCounts `json:"cache_health,omitempty"`
}

func newHealthSummary(counts RoleCounts) HealthSummary {
	var summary HealthSummary
	if c, ok := counts[RoleParity]; ok {
		summary.Parity = &c
	}
	if c, ok := counts[RoleData]; ok {
		summary.Data = &c
	}
	if c, ok := counts[RoleCache]; ok {
		summary.Cache = &c
	}
	return summary
}

// BuildArrayStatus summarizes an array. raw is echoed back as the details
// member; when empty the typed array is re-encoded instead.
func BuildArrayStatus(array *unraid.Array, raw json.RawMessage) (ArrayStatusReport, error) {
	if array == nil {
		return ArrayStatusReport{}, fmt.Errorf("no array information returned from Unraid API")
	}

	counts := ClassifyArray(array)
	summary := ArraySummary{
		State:          array.State,
		NumParityDisks: len(array.Parities),
		NumDataDisks:   len(array.Disks),
		NumCachePools:  len(array.Caches),
		OverallHealth:  AggregateArray(counts),
		HealthSummary:  newHealthSummary(counts),
	}

	if array.Capacity != nil && array.Capacity.Kilobytes != nil {
		kb := array.Capacity.Kilobytes
		summary.CapacityTotal = FormatCapacity(kb.Total)
		summary.CapacityUsed = FormatCapacity(kb.Used)
		summary.CapacityFree = FormatCapacity(kb.Free)
	}

	details := raw
	if unraid.IsNull(details) {
		encoded, err := json.Marshal(array)
		if err != nil {
			return ArrayStatusReport{}, fmt.Errorf("encode array details: %w", err)
		}
		details = encoded
	}

	return ArrayStatusReport{Summary: summary, Details: details}, nil
}
