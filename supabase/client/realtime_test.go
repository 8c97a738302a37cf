package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewRealtimeClientURL(t *testing.T) {
	r := NewRealtimeClient("https://proj.supabase.co/", "anon")
	want := "wss://proj.supabase.co/realtime/v1/websocket?apikey=anon&vsn=1.0.0"
	if r.url != want {
		t.Errorf("url = %q, want %q", r.url, want)
	}
}

func TestChangeID(t *testing.T) {
	ev := &RealtimeEvent{Event: "DELETE", Payload: []byte(`{"table":"menu_items","old_record":{"id":"m1"}}`)}
	change, err := ev.Change()
	if err != nil {
		t.Fatalf("Change() error = %v", err)
	}
	if change.Type != "DELETE" {
		t.Errorf("Type = %q, want DELETE", change.Type)
	}
	if change.ID() != "m1" {
		t.Errorf("ID() = %q, want m1", change.ID())
	}
}

func TestSubscribeToPostgresChanges(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan map[string]any, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join map[string]any
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joined <- join

		conn.WriteJSON(map[string]any{
			"topic": join["topic"],
			"event": "DELETE",
			"payload": map[string]any{
				"type":       "DELETE",
				"table":      "menu_items",
				"old_record": map[string]any{"id": "m9"},
			},
		})
		// hold the socket until the client goes away
		conn.ReadMessage()
	}))
	defer srv.Close()

	rt := NewRealtimeClient(srv.URL, "anon")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rt.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer rt.Disconnect()

	got := make(chan string, 1)
	ch, err := rt.SubscribeToPostgresChanges(ctx, PostgresChangesConfig{
		Events: []string{"DELETE"},
		Table:  "menu_items",
		Filter: "user_id=eq.u1",
	}, func(ev *RealtimeEvent) {
		if c, err := ev.Change(); err == nil {
			got <- c.ID()
		}
	})
	if err != nil {
		t.Fatalf("SubscribeToPostgresChanges() error = %v", err)
	}

	select {
	case join := <-joined:
		if join["event"] != "phx_join" {
			t.Errorf("event = %v, want phx_join", join["event"])
		}
		if !strings.HasSuffix(ch.Topic(), "menu_items:user_id=eq.u1") || join["topic"] != ch.Topic() {
			t.Errorf("topic = %v, channel %s", join["topic"], ch.Topic())
		}
	case <-ctx.Done():
		t.Fatal("server never saw phx_join")
	}

	select {
	case id := <-got:
		if id != "m9" {
			t.Errorf("id = %q, want m9", id)
		}
	case <-ctx.Done():
		t.Fatal("handler never called")
	}
}
