package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestClient_ReceivesTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		payload := `{"stream":"btcusdt@trade","data":{"e":"trade","E":1700000000123,"s":"BTCUSDT","p":"100.5","q":"0.1"}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			return
		}

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewClient(context.Background(), wsURL, []string{"BTCUSDT"}, nil, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	select {
	case ev := <-client.Events():
		if ev.Symbol != "BTCUSDT" {
			t.Errorf("Symbol = %q, want BTCUSDT", ev.Symbol)
		}
		if ev.Price != 100.5 {
			t.Errorf("Price = %v, want 100.5", ev.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for trade event")
	}
}

func TestClient_SkipsUnparseablePayloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"trade","E":1,"s":"BTCUSDT","p":"7","q":"1"}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewClient(context.Background(), wsURL, []string{"BTCUSDT"}, nil, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	// The garbage payload is dropped; the valid trade still arrives.
	select {
	case ev := <-client.Events():
		if ev.Price != 7 {
			t.Errorf("Price = %v, want 7", ev.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for trade event")
	}
}

func TestClient_Close(t *testing.T) {
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

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewClient(context.Background(), wsURL, []string{"BTCUSDT"}, nil, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	// Event channel closes on shutdown.
	select {
	case _, ok := <-client.Events():
		if ok {
			t.Error("expected closed event channel")
		}
	case <-time.After(time.Second):
		t.Fatal("event channel not closed")
	}

	// Double close is safe.
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestClient_RequiresSymbols(t *testing.T) {
	if _, err := NewClient(context.Background(), "ws://localhost:0", nil, nil, zerolog.Nop(), nil); err == nil {
		t.Error("expected error for empty symbol list")
	}
}
