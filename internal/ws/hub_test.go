package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"buggy/internal/domain"
	"buggy/internal/service"
)

func dialHub(t *testing.T, srv *httptest.Server, recipient string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if recipient != "" {
		url += "?recipient=" + recipient
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForClients polls until registration completes; Serve registers
// after the handshake returns to the dialer.
func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return f
}

func TestHub_NotificationsScopedToRecipient(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.Serve))
	defer srv.Close()

	guest := dialHub(t, srv, "101")
	console := dialHub(t, srv, "")
	waitForClients(t, hub, 2)

	ctx := context.Background()
	_ = hub.Send(ctx, service.Notification{Type: service.NotificationDriverAssigned, Recipient: "202"})
	_ = hub.Send(ctx, service.Notification{Type: service.NotificationDriverAssigned, Recipient: "101"})

	// The guest connection sees only its own room's notification.
	f := readFrame(t, guest)
	if f.Notification == nil || f.Notification.Recipient != "101" {
		t.Fatalf("expected the room 101 notification first, got %+v", f)
	}

	// The unscoped console sees both, in order.
	first := readFrame(t, console)
	second := readFrame(t, console)
	if first.Notification == nil || first.Notification.Recipient != "202" {
		t.Errorf("console expected room 202 notification first, got %+v", first)
	}
	if second.Notification == nil || second.Notification.Recipient != "101" {
		t.Errorf("console expected room 101 notification second, got %+v", second)
	}
}

func TestHub_RideEventsReachEverySubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.Serve))
	defer srv.Close()

	guest := dialHub(t, srv, "101")
	console := dialHub(t, srv, "")
	waitForClients(t, hub, 2)

	hub.Publish(domain.RideEvent{
		Type:   domain.RideEventAssigned,
		RideID: "ride-1",
		Status: domain.RideStatusAssigned,
	})

	for name, conn := range map[string]*websocket.Conn{"guest": guest, "console": console} {
		f := readFrame(t, conn)
		if f.Kind != "ride_event" || f.Event == nil || f.Event.RideID != "ride-1" {
			t.Errorf("%s: expected the ride event, got %+v", name, f)
		}
	}
}
