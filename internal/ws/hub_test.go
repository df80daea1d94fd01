package ws

import (
	"encoding/json"
	"gamewarden/internal/domain"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, m *HubManager, server string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.GetHub(server).ServeWs(w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev domain.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode %q: %v", msg, err)
	}
	return ev
}

func TestPublishReachesSubscriber(t *testing.T) {
	m := NewHubManager(10, slog.New(slog.DiscardHandler))
	defer m.Close()

	conn := dialHub(t, m, "alpha")

	// registration is asynchronous; keep publishing until the client reads one
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			m.Publish("alpha", domain.Event{Server: "alpha", Step: domain.StepSaved, Message: "Complete Save"})
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}()

	ev := readEvent(t, conn)
	if ev.Step != domain.StepSaved || ev.Message != "Complete Save" {
		t.Errorf("event = %+v", ev)
	}
}

func TestLateSubscriberGetsHistory(t *testing.T) {
	m := NewHubManager(2, slog.New(slog.DiscardHandler))
	defer m.Close()

	for _, step := range []string{domain.StepAccepted, domain.StepResolved, domain.StepConnected} {
		m.Publish("alpha", domain.Event{Server: "alpha", Step: step})
	}

	hub := m.GetHub("alpha")
	waitFor(t, func() bool { return len(hub.History()) == 2 })

	conn := dialHub(t, m, "alpha")
	if ev := readEvent(t, conn); ev.Step != domain.StepResolved {
		t.Errorf("first replayed step = %q, want resolved", ev.Step)
	}
	if ev := readEvent(t, conn); ev.Step != domain.StepConnected {
		t.Errorf("second replayed step = %q, want connected", ev.Step)
	}
}

func TestHubsAreIsolated(t *testing.T) {
	m := NewHubManager(5, slog.New(slog.DiscardHandler))
	defer m.Close()

	m.Publish("alpha", domain.Event{Server: "alpha", Step: domain.StepDone})
	waitFor(t, func() bool { return len(m.GetHub("alpha").History()) == 1 })

	if got := m.GetHub("beta").History(); len(got) != 0 {
		t.Errorf("beta history = %q", got)
	}
}

func TestBroadcastAfterStopDoesNotBlock(t *testing.T) {
	m := NewHubManager(5, slog.New(slog.DiscardHandler))
	hub := m.GetHub("alpha")
	m.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast([]byte("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a stopped hub")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
