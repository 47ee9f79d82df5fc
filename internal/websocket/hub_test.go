package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/choreledger/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, childID int64) *Client {
	return &Client{
		hub:     hub,
		send:    make(chan []byte, sendBufferSize),
		childID: childID,
	}
}

func event(action string, id, childID int64) model.Event {
	return model.Event{
		ID:         "evt-" + action,
		Type:       "assignment_" + action,
		Entity:     "assignment",
		Action:     action,
		EntityID:   id,
		ChildID:    childID,
		OccurredAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	case <-time.After(100 * time.Millisecond):
		return Message{}, false
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	c1 := mockClient(hub, 0)
	c2 := mockClient(hub, 0)

	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Second unregister must not panic on the closed channel.
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestNotify(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, 0)
	hub.Register(c)
	defer hub.Unregister(c)

	e := event("approved", 42, 7)
	e.Extra = map[string]any{"points_awarded": float64(30)}
	hub.Notify(context.Background(), e)

	got, ok := receive(t, c)
	if !ok {
		t.Fatal("timeout waiting for message")
	}
	if got.Type != "assignment_approved" || got.Entity != "assignment" || got.Action != "approved" {
		t.Errorf("message = %+v", got)
	}
	if got.ID != 42 || got.ChildID != 7 || got.EventID != "evt-approved" {
		t.Errorf("ids = %d/%d/%q", got.ID, got.ChildID, got.EventID)
	}
	if got.Extra["points_awarded"] != float64(30) {
		t.Errorf("extra = %v", got.Extra)
	}
}

func TestChildFilter(t *testing.T) {
	hub := NewHub(testLogger())
	parent := mockClient(hub, 0)
	alice := mockClient(hub, 1)
	bob := mockClient(hub, 2)
	for _, c := range []*Client{parent, alice, bob} {
		hub.Register(c)
	}

	hub.Notify(context.Background(), event("submitted", 10, 1))

	if _, ok := receive(t, parent); !ok {
		t.Error("parent feed should get every child's events")
	}
	if _, ok := receive(t, alice); !ok {
		t.Error("alice should get her own event")
	}
	if _, ok := receive(t, bob); ok {
		t.Error("bob should not get alice's event")
	}

	hub.Notify(context.Background(), model.Event{Type: "task_created", Entity: "task", Action: "created", EntityID: 3})
	if _, ok := receive(t, bob); !ok {
		t.Error("events without a child go to everyone")
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, 0)
	hub.Register(c)
	defer hub.Unregister(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Notify(context.Background(), event("fill", int64(i), 0))
	}
	// Dropped, not blocked.
	hub.Notify(context.Background(), event("dropped", 999, 0))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("expected %d buffered messages, got %d", sendBufferSize, got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(testLogger())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, int64(i%3))
			hub.Register(c)
			hub.Notify(context.Background(), event("concurrent", 0, int64(i%3)))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(HandleWebSocket(hub, testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?child_id=1"
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	for hub.ClientCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	hub.Notify(ctx, event("approved", 5, 1))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "assignment_approved" || got.ID != 5 {
		t.Errorf("message = %+v", got)
	}
}

func TestHandleWebSocketBadChildID(t *testing.T) {
	hub := NewHub(testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws?child_id=abc", nil)

	HandleWebSocket(hub, testLogger())(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
