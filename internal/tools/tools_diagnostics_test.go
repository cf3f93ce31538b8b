package tools

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

func TestSubscriptionProbe(t *testing.T) {
	client := &mockClient{probe: unraid.SubscriptionProbe{
		ID:           "01HZX",
		URL:          "wss://tower.local/graphql",
		Connected:    true,
		Acknowledged: true,
		FirstEvent:   json.RawMessage(`{"data":{"arraySubscription":{"state":"STARTED"}}}`),
		Duration:     120 * time.Millisecond,
		DurationMs:   120,
	}}
	exec := newTestExecutor(client)

	var probe map[string]interface{}
	decodeResult(t, callTool(t, exec, "test_subscription_query", map[string]interface{}{
		"subscription_query": "subscription { arraySubscription { state } }",
		"timeout_seconds":    float64(120),
	}), &probe)

	assert.Equal(t, true, probe["connected"])
	assert.Equal(t, true, probe["acknowledged"])
	assert.Contains(t, probe, "first_event")
	assert.Equal(t, maxProbeTimeout, client.probeArgs.timeout)
	assert.Equal(t, "subscription { arraySubscription { state } }", client.probeArgs.query)
}

func TestSubscriptionProbeDefaults(t *testing.T) {
	client := &mockClient{probe: unraid.SubscriptionProbe{Error: "dial tcp: connection refused"}}
	exec := newTestExecutor(client)

	result := callTool(t, exec, "test_subscription_query", map[string]interface{}{
		"subscription_query": "Subscription { ping }",
	})
	require.False(t, result.IsError)
	assert.Contains(t, result.Text(), "connection refused")
	assert.Equal(t, defaultProbeTimeout, client.probeArgs.timeout)
}

func TestSubscriptionProbeRejectsNonSubscriptions(t *testing.T) {
	exec := newTestExecutor(&mockClient{})

	result := callTool(t, exec, "test_subscription_query", map[string]interface{}{
		"subscription_query": "query { info { time } }",
	})
	assert.True(t, result.IsError)

	result = callTool(t, exec, "test_subscription_query", nil)
	assert.True(t, result.IsError)
	assert.Equal(t, "subscription_query is required", result.Text())
}
