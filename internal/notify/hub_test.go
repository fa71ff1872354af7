package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, h *Hub, player string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, player)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Online(player) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("玩家 %s 未登记", player)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestPublishReachesOnlinePlayer(t *testing.T) {
	h := NewHub()
	defer h.Close()
	conn := dial(t, h, "alice")

	h.Publish("bob", "not for alice")
	h.Publish("alice", "You are being attacked in the game!")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "notification" || msg.Player != "alice" || msg.Message != "You are being attacked in the game!" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	h := NewHub()
	defer h.Close()
	conn := dial(t, h, "alice")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Online("alice") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected connection removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// 离线推送直接丢弃
	h.Publish("alice", "hello")
}
