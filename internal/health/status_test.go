package health

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOrderingAndMerge(t *testing.T) {
	ordered := []Status{StatusHealthy, StatusWarning, StatusDegraded, StatusUnhealthy}
	for i, a := range ordered {
		for j, b := range ordered {
			merged := MaxStatus(a, b)
			assert.Equal(t, MaxStatus(b, a), merged)
			if i >= j {
				assert.Equal(t, a, merged)
			} else {
				assert.Equal(t, b, merged)
			}
		}
	}
}

func TestStatusJSON(t *testing.T) {
	for _, status := range []Status{StatusHealthy, StatusWarning, StatusDegraded, StatusUnhealthy} {
		data, err := json.Marshal(status)
		require.NoError(t, err)
		assert.Equal(t, `"`+status.String()+`"`, string(data))

		var decoded Status
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, status, decoded)
	}

	var decoded Status
	assert.Error(t, json.Unmarshal([]byte(`"fine"`), &decoded))
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(" Degraded ")
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, status)

	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestArrayHealthJSON(t *testing.T) {
	tests := map[ArrayHealth]string{
		ArrayHealthy:  `"HEALTHY"`,
		ArrayWarning:  `"WARNING"`,
		ArrayDegraded: `"DEGRADED"`,
		ArrayCritical: `"CRITICAL"`,
	}
	for health, want := range tests {
		data, err := json.Marshal(health)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))

		var decoded ArrayHealth
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, health, decoded)
	}

	var decoded ArrayHealth
	assert.Error(t, json.Unmarshal([]byte(`"BROKEN"`), &decoded))
	assert.Equal(t, ArrayCritical, MaxArrayHealth(ArrayCritical, ArrayWarning))
	assert.Equal(t, ArrayDegraded, MaxArrayHealth(ArrayHealthy, ArrayDegraded))
}
