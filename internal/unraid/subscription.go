package unraid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

const (
	subscriptionProtocol       = "graphql-transport-ws"
	defaultSubscriptionTimeout = 10 * time.Second
	subscriptionMaxMessageSize = 1 << 20
)

// SubscriptionProbe describes one attempt to open a GraphQL subscription.
type SubscriptionProbe struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Connected    bool            `json:"connected"`
	Acknowledged bool            `json:"acknowledged"`
	FirstEvent   json.RawMessage `json:"first_event,omitempty"`
	Error        string          `json:"error,omitempty"`
	Duration     time.Duration   `json:"-"`
	DurationMs   float64         `json:"duration_ms"`
}

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebsocketURL maps the GraphQL endpoint onto its ws:// or wss:// form.
func (c *Client) WebsocketURL() string {
	wsURL := *c.endpoint
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	return wsURL.String()
}

// ProbeSubscription opens a graphql-transport-ws session, subscribes with
// query and waits for the first event. The connection is always closed
// before returning; failures are reported in the probe rather than as an error.
func (c *Client) ProbeSubscription(ctx context.Context, query string, timeout time.Duration) (probe SubscriptionProbe) {
	if timeout <= 0 {
		timeout = defaultSubscriptionTimeout
	}

	probe = SubscriptionProbe{
		ID:  ulid.Make().String(),
		URL: c.WebsocketURL(),
	}
	started := time.Now()
	defer func() {
		probe.Duration = time.Since(started)
		probe.DurationMs = float64(probe.Duration.Microseconds()) / 1000
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.runProbe(ctx, query, &probe); err != nil {
		probe.Error = err.Error()
		log.Debug().
			Err(err).
			Str("probe_id", probe.ID).
			Msg("Subscription probe failed")
	}
	return probe
}

func (c *Client) runProbe(ctx context.Context, query string, probe *SubscriptionProbe) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.Timeout,
		NetDialContext:   DialContext,
		Subprotocols:     []string{subscriptionProtocol},
	}
	if c.endpoint.Scheme == "https" {
		tlsConfig, err := buildTLSConfig(!c.config.VerifySSL, c.config.Fingerprint)
		if err != nil {
			return err
		}
		dialer.TLSClientConfig = tlsConfig
	}

	header := http.Header{}
	header.Set("X-API-Key", strings.TrimSpace(c.config.APIKey))

	conn, _, err := dialer.DialContext(ctx, probe.URL, header)
	if err != nil {
		return fmt.Errorf("dial subscription endpoint: %w", err)
	}
	defer conn.Close()
	probe.Connected = true

	conn.SetReadLimit(subscriptionMaxMessageSize)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	// Unblock pending reads when the caller cancels.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	initPayload, err := json.Marshal(map[string]string{"x-api-key": strings.TrimSpace(c.config.APIKey)})
	if err != nil {
		return fmt.Errorf("encode connection_init: %w", err)
	}
	if err := conn.WriteJSON(wsMessage{Type: "connection_init", Payload: initPayload}); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	if err := awaitAck(conn); err != nil {
		return err
	}
	probe.Acknowledged = true

	subscribePayload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}
	if err := conn.WriteJSON(wsMessage{ID: probe.ID, Type: "subscribe", Payload: subscribePayload}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	event, err := awaitEvent(conn, probe.ID)
	if event != nil {
		probe.FirstEvent = event
	}

	_ = conn.WriteJSON(wsMessage{ID: probe.ID, Type: "complete"})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return err
}

func awaitAck(conn *websocket.Conn) error {
	for {
		var message wsMessage
		if err := conn.ReadJSON(&message); err != nil {
			return fmt.Errorf("await connection_ack: %w", err)
		}
		switch message.Type {
		case "connection_ack":
			return nil
		case "ping":
			if err := conn.WriteJSON(wsMessage{Type: "pong"}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		default:
			return fmt.Errorf("unexpected %q message before connection_ack", message.Type)
		}
	}
}

func awaitEvent(conn *websocket.Conn, id string) (json.RawMessage, error) {
	for {
		var message wsMessage
		if err := conn.ReadJSON(&message); err != nil {
			return nil, fmt.Errorf("await subscription event: %w", err)
		}
		switch message.Type {
		case "ping":
			if err := conn.WriteJSON(wsMessage{Type: "pong"}); err != nil {
				return nil, fmt.Errorf("send pong: %w", err)
			}
		case "pong":
		case "next":
			if message.ID == id {
				return message.Payload, nil
			}
		case "error":
			if message.ID == id {
				return message.Payload, fmt.Errorf("subscription error: %s", strings.TrimSpace(string(message.Payload)))
			}
		case "complete":
			if message.ID == id {
				return nil, fmt.Errorf("subscription completed without events")
			}
		}
	}
}
