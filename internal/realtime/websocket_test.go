package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/anonto42/feedpulse/backend/internal/models"
)

func startWSServer(t *testing.T, reg *Registry, origins []string) string {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e := echo.New()
	e.GET("/ws", NewHandler(reg, origins, logger).Serve)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func waitForConnections(t *testing.T, reg *Registry, userID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Connections(userID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s has %d connections, want %d", userID, reg.Connections(userID), want)
}

func TestWebSocketJoinAndPush(t *testing.T) {
	reg, _ := newTestRegistry()
	url := startWSServer(t, reg, nil)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.WriteJSON(InboundMessage{Type: MessageJoin, UserID: "U1"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	waitForConnections(t, reg, "U1", 1)

	n := &models.Notification{
		ID:       "n1",
		Type:     models.NotificationPostLike,
		UserID:   "U1",
		TargetID: "L1",
		Message:  "bob liked your post",
	}
	if got := reg.Deliver(context.Background(), n); got != 1 {
		t.Fatalf("Deliver = %d, want 1", got)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if msg.Type != MessageNotification {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Data["id"] != "n1" || msg.Data["message"] != "bob liked your post" || msg.Data["targetId"] != "L1" {
		t.Errorf("data = %v", msg.Data)
	}
}

func TestWebSocketIgnoresBadMessagesAndUnregistersOnDisconnect(t *testing.T) {
	reg, _ := newTestRegistry()
	url := startWSServer(t, reg, []string{"*"})

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	client.WriteMessage(websocket.TextMessage, []byte("not json"))
	client.WriteJSON(InboundMessage{Type: MessageJoin})
	client.WriteJSON(InboundMessage{Type: "wave"})
	client.WriteJSON(InboundMessage{Type: MessageJoin, UserID: "U7"})
	waitForConnections(t, reg, "U7", 1)

	client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	client.Close()
	waitForConnections(t, reg, "U7", 0)
}

func TestWebSocketRejectsUnknownOrigin(t *testing.T) {
	reg, _ := newTestRegistry()
	url := startWSServer(t, reg, []string{"http://localhost:3000"})

	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("dial succeeded for a disallowed origin")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("response = %v, want 403", resp)
	}
}

func TestWSConnSendAfterClose(t *testing.T) {
	c := &wsConn{send: make(chan []byte, 1), done: make(chan struct{})}
	if err := c.Send(notificationFor("U1")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.Send(notificationFor("U1")); err != ErrSendQueueFull {
		t.Fatalf("second send = %v, want ErrSendQueueFull", err)
	}
	c.Close()
	c.Close()
	if err := c.Send(notificationFor("U1")); err != ErrConnectionClosed {
		t.Fatalf("send after close = %v, want ErrConnectionClosed", err)
	}
}

func TestWSConnRejectsSendsAfterWriteFailure(t *testing.T) {
	url := startWSServer(t, NewRegistry(nil), nil)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := newWSConn(ws)
	ws.Close()

	if err := c.Send(notificationFor("U1")); err != nil {
		t.Fatalf("queueing send: %v", err)
	}
	logger, _ := test.NewNullLogger()
	pumped := make(chan struct{})
	go func() {
		c.writePump(logger)
		close(pumped)
	}()
	select {
	case <-pumped:
	case <-time.After(2 * time.Second):
		t.Fatal("writePump did not stop after the write failed")
	}

	if err := c.Send(notificationFor("U1")); err != ErrConnectionClosed {
		t.Fatalf("send after write failure = %v, want ErrConnectionClosed", err)
	}
}
