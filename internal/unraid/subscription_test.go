package unraid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsScript func(t *testing.T, conn *websocket.Conn)

func newSubscriptionServer(t *testing.T, script wsScript) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{subscriptionProtocol}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		if conn.Subprotocol() != subscriptionProtocol {
			t.Errorf("unexpected subprotocol %q", conn.Subprotocol())
		}
		script(t, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func readMessage(t *testing.T, conn *websocket.Conn, wantType string) wsMessage {
	t.Helper()
	var message wsMessage
	if err := conn.ReadJSON(&message); err != nil {
		t.Errorf("read %s: %v", wantType, err)
		return message
	}
	if message.Type != wantType {
		t.Errorf("expected %s, got %s", wantType, message.Type)
	}
	return message
}

func TestProbeSubscriptionReceivesFirstEvent(t *testing.T) {
	server := newSubscriptionServer(t, func(t *testing.T, conn *websocket.Conn) {
		init := readMessage(t, conn, "connection_init")
		var payload map[string]string
		_ = json.Unmarshal(init.Payload, &payload)
		if payload["x-api-key"] != "test-key" {
			t.Errorf("unexpected init payload %s", init.Payload)
		}
		_ = conn.WriteJSON(wsMessage{Type: "ping"})
		readMessage(t, conn, "pong")
		_ = conn.WriteJSON(wsMessage{Type: "connection_ack"})

		subscribe := readMessage(t, conn, "subscribe")
		if !strings.Contains(string(subscribe.Payload), "arraySubscription") {
			t.Errorf("unexpected subscribe payload %s", subscribe.Payload)
		}
		_ = conn.WriteJSON(wsMessage{ID: "other", Type: "next", Payload: json.RawMessage(`{"data":{}}`)})
		_ = conn.WriteJSON(wsMessage{ID: subscribe.ID, Type: "next", Payload: json.RawMessage(`{"data":{"arraySubscription":{"state":"STARTED"}}}`)})
		readMessage(t, conn, "complete")
	})

	client := mustClient(t, server.URL)
	probe := client.ProbeSubscription(context.Background(), "subscription { arraySubscription { state } }", 5*time.Second)

	if probe.Error != "" {
		t.Fatalf("unexpected probe error %q", probe.Error)
	}
	if !probe.Connected || !probe.Acknowledged {
		t.Fatalf("unexpected probe state %+v", probe)
	}
	if !strings.Contains(string(probe.FirstEvent), "STARTED") {
		t.Fatalf("unexpected first event %s", probe.FirstEvent)
	}
	if len(probe.ID) != 26 {
		t.Fatalf("expected ulid probe id, got %q", probe.ID)
	}
	if !strings.HasPrefix(probe.URL, "ws://") {
		t.Fatalf("unexpected probe url %q", probe.URL)
	}
}

func TestProbeSubscriptionReportsErrorMessage(t *testing.T) {
	server := newSubscriptionServer(t, func(t *testing.T, conn *websocket.Conn) {
		readMessage(t, conn, "connection_init")
		_ = conn.WriteJSON(wsMessage{Type: "connection_ack"})
		subscribe := readMessage(t, conn, "subscribe")
		_ = conn.WriteJSON(wsMessage{ID: subscribe.ID, Type: "error", Payload: json.RawMessage(`[{"message":"unknown field"}]`)})
		readMessage(t, conn, "complete")
	})

	client := mustClient(t, server.URL)
	probe := client.ProbeSubscription(context.Background(), "subscription { nope }", 5*time.Second)

	if !probe.Acknowledged {
		t.Fatalf("expected acknowledged probe, got %+v", probe)
	}
	if !strings.Contains(probe.Error, "unknown field") {
		t.Fatalf("unexpected probe error %q", probe.Error)
	}
}

func TestProbeSubscriptionTimesOutWithoutAck(t *testing.T) {
	server := newSubscriptionServer(t, func(t *testing.T, conn *websocket.Conn) {
		readMessage(t, conn, "connection_init")
		// Never acknowledge; wait for the client to hang up.
		_, _, _ = conn.ReadMessage()
	})

	client := mustClient(t, server.URL)
	probe := client.ProbeSubscription(context.Background(), "subscription { x }", 100*time.Millisecond)

	if !probe.Connected || probe.Acknowledged {
		t.Fatalf("unexpected probe state %+v", probe)
	}
	if !strings.Contains(probe.Error, "connection_ack") {
		t.Fatalf("unexpected probe error %q", probe.Error)
	}
	if probe.Duration <= 0 || probe.DurationMs <= 0 {
		t.Fatalf("expected duration to be recorded, got %+v", probe)
	}
}

func TestProbeSubscriptionDialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := mustClient(t, server.URL)
	server.Close()

	probe := client.ProbeSubscription(context.Background(), "subscription { x }", time.Second)
	if probe.Connected || probe.Error == "" {
		t.Fatalf("expected dial failure, got %+v", probe)
	}
}
