package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bgpkit/ris-live-go/internal/logging"
	"github.com/bgpkit/ris-live-go/internal/subscribe"
)

var upgrader = websocket.Upgrader{}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	var gotSub atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		gotSub.Store(string(data))

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ris_message","data":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := New(wsURL(server), "test-client", logging.New(false))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 8)
	go client.Run(ctx, subscribe.Subscription{Host: "rrc00"}, func(raw string) {
		received <- raw
	})

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	if !client.Connected() {
		t.Error("client should report connected while the stream is up")
	}
	if client.LastMessage().IsZero() {
		t.Error("last message time should be set")
	}

	var sub struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	raw, _ := gotSub.Load().(string)
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		t.Fatalf("subscription is not valid JSON: %v", err)
	}
	if sub.Type != "ris_subscribe" || sub.Data["host"] != "rrc00" {
		t.Errorf("unexpected subscription: %s", raw)
	}
}

func TestClient_ReconnectsAndResubscribes(t *testing.T) {
	var subs atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
		n := subs.Add(1)

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ris_message","data":{}}`))
		if n == 1 {
			// Drop the first connection to force a reconnect.
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
	defer server.Close()

	client, err := New(wsURL(server), "test-client", logging.New(false))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 8)
	go client.Run(ctx, subscribe.Subscription{Host: "rrc00"}, func(raw string) {
		received <- raw
	})

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for message %d across reconnect", i)
		}
	}

	if got := subs.Load(); got < 2 {
		t.Errorf("expected at least 2 subscriptions, got %d", got)
	}
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := New(wsURL(server), "test-client", logging.New(false))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- client.Run(ctx, subscribe.Subscription{}, func(string) {})
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNew_InvalidURL(t *testing.T) {
	if _, err := New("://broken", "c", logging.New(false)); err == nil {
		t.Error("expected error for invalid url")
	}
}
