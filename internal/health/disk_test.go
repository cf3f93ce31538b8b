package health

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

func disk(status string, warning, critical bool) unraid.Disk {
	return unraid.Disk{Status: status, Warning: unraid.Flag(warning), Critical: unraid.Flag(critical)}
}

func TestClassifyBuckets(t *testing.T) {
	tests := []struct {
		name string
		disk unraid.Disk
		want HealthCounts
	}{
		{name: "ok", disk: disk("DISK_OK", false, false), want: HealthCounts{Healthy: 1}},
		{name: "ok without prefix", disk: disk("ok", false, false), want: HealthCounts{Healthy: 1}},
		{name: "ok with warning", disk: disk("DISK_OK", true, false), want: HealthCounts{Warning: 1}},
		{name: "ok with critical", disk: disk("disk_ok", false, true), want: HealthCounts{Warning: 1}},
		{name: "disabled", disk: disk("DISK_DSBL", false, false), want: HealthCounts{Failed: 1}},
		{name: "disabled long form", disk: disk("DISABLED", false, false), want: HealthCounts{Failed: 1}},
		{name: "invalid", disk: disk("DISK_INVALID", true, true), want: HealthCounts{Failed: 1}},
		{name: "not present", disk: disk("DISK_NP", false, false), want: HealthCounts{Missing: 1}},
		{name: "not present long form", disk: disk("NOT_PRESENT", false, false), want: HealthCounts{Missing: 1}},
		{name: "new", disk: disk("DISK_NEW", false, false), want: HealthCounts{New: 1}},
		{name: "wrong disk", disk: disk("DISK_WRONG", false, false), want: HealthCounts{Unknown: 1}},
		{name: "empty status", disk: disk("", false, false), want: HealthCounts{Unknown: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]unraid.Disk{tt.disk}))
		})
	}
}

func TestClassifyEmptyReturnsZeroCounts(t *testing.T) {
	assert.Equal(t, HealthCounts{}, Classify(nil))
	assert.Equal(t, 0, Classify([]unraid.Disk{}).Total())

	data, err := json.Marshal(Classify(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"healthy":0,"failed":0,"missing":0,"new":0,"warning":0,"unknown":0}`, string(data))
}

func TestClassifyTotalMatchesInput(t *testing.T) {
	statuses := []string{"DISK_OK", "DISK_DSBL", "DISK_NP", "DISK_NEW", "DISK_INVALID", "bogus", "", "OK"}
	var disks []unraid.Disk
	for i := 0; i < 40; i++ {
		disks = append(disks, disk(statuses[i%len(statuses)], i%3 == 0, i%5 == 0))
		assert.Equal(t, len(disks), Classify(disks).Total())
	}
}

func TestHealthCountsAdd(t *testing.T) {
	a := HealthCounts{Healthy: 1, Failed: 2, Missing: 3}
	b := HealthCounts{New: 4, Warning: 5, Unknown: 6, Healthy: 1}
	assert.Equal(t, HealthCounts{Healthy: 2, Failed: 2, Missing: 3, New: 4, Warning: 5, Unknown: 6}, a.Add(b))
	assert.Equal(t, 22, a.Add(b).Total())
}
