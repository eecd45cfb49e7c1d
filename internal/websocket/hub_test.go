package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tradehook/internal/models"
)

// ============================================================
// Unit Tests
// ============================================================

// newTestClient - клиент без соединения, читаем send напрямую
func newTestClient(hub *Hub, userID int) *Client {
	return &Client{hub: hub, userID: userID, send: make(chan []byte, clientSendBufferSize)}
}

func registerClients(t *testing.T, hub *Hub, clients ...*Client) {
	t.Helper()
	for _, c := range clients {
		hub.register <- c
	}
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != len(clients) {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), len(clients))
		}
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
		return nil
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Errorf("unexpected message for user %d: %s", c.userID, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestNewOriginChecker(t *testing.T) {
	checker := NewOriginChecker("http://localhost:3000, https://example.com")

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // не браузер
		{"http://localhost:3000", true},  // в списке
		{"https://example.com", true},    // в списке
		{"http://evil.com", false},       // не в списке
		{"http://localhost:8080", false}, // другой порт
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestNewOriginChecker_AllowAll(t *testing.T) {
	for _, allowed := range []string{"", "*", "  *  "} {
		checker := NewOriginChecker(allowed)
		if !checker.Check("https://anything.example.org") {
			t.Errorf("NewOriginChecker(%q) must allow any origin", allowed)
		}
	}
}

func TestClient_Accepts(t *testing.T) {
	admin := &Client{userID: 0}
	user := &Client{userID: 7}

	if !admin.accepts(7) || !admin.accepts(0) {
		t.Error("admin client must accept every user")
	}
	if !user.accepts(7) {
		t.Error("user client must accept own messages")
	}
	if user.accepts(8) || user.accepts(0) {
		t.Error("user client must not accept other users")
	}
}

func TestHub_RoutesByUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	alice := newTestClient(hub, 1)
	bob := newTestClient(hub, 2)
	admin := newTestClient(hub, 0)
	registerClients(t, hub, alice, bob, admin)

	hub.BroadcastAutomationStatus(1, "a-1", true)

	msg := receive(t, alice)
	var status AutomationStatusMessage
	if err := json.Unmarshal(msg, &status); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if status.Type != MessageTypeAutomationStatus || status.AutomationID != "a-1" || !status.IsActive {
		t.Errorf("unexpected message: %+v", status)
	}

	receive(t, admin)
	assertNothing(t, bob)
}

func TestHub_BroadcastWebhookLog(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	owner := newTestClient(hub, 5)
	other := newTestClient(hub, 6)
	registerClients(t, hub, owner, other)

	hub.BroadcastWebhookLog(&models.WebhookLog{ID: 42, UserID: 5, AutomationID: "a-9", Status: models.WebhookStatusReceived})

	msg := receive(t, owner)
	if strings.Contains(string(msg), "user_id") {
		t.Errorf("user id must not leak to clients: %s", msg)
	}

	var got WebhookLogMessage
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.Type != MessageTypeWebhookLog || got.Data == nil || got.Data.ID != 42 {
		t.Errorf("unexpected message: %s", msg)
	}

	assertNothing(t, other)
}

func TestHub_RemovesSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := &Client{hub: hub, userID: 1, send: make(chan []byte)} // без буфера
	registerClients(t, hub, slow)

	hub.BroadcastRaw(1, []byte(`{}`))

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not removed")
		}
		time.Sleep(time.Millisecond)
	}

	if _, ok := <-slow.send; ok {
		t.Error("send channel of removed client must be closed")
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub()
	// Run не запущен: очередь заполняется и лишнее отбрасывается

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBufferSize+10; i++ {
			hub.BroadcastRaw(1, []byte(`{}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastRaw blocked")
	}

	if hub.DroppedMessages() != 10 {
		t.Errorf("dropped = %d, want 10", hub.DroppedMessages())
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()
	hub.Stop() // повторный вызов безопасен

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestHandler_ServeWS(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	handler := NewHandler(hub, "http://allowed.test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeWS(w, r, 3)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("foreign origin must be rejected")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}

	header.Set("Origin", "http://allowed.test")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(time.Millisecond)
	}

	hub.BroadcastAutomationStatus(3, "a-3", false)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var status AutomationStatusMessage
	if err := json.Unmarshal(msg, &status); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if status.AutomationID != "a-3" || status.IsActive {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.BroadcastAutomationStatus(id, "a", j%2 == 0)
				_ = hub.ClientCount()
			}
		}(i)
	}
	wg.Wait()
}

// ============================================================
// Benchmarks
// ============================================================

func BenchmarkHub_Broadcast(b *testing.B) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	msg := NewAutomationStatusMessage("a-1", true)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Broadcast(1, msg)
	}
}

func BenchmarkHub_BroadcastWebhookLog(b *testing.B) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	entry := &models.WebhookLog{ID: 1, UserID: 1, AutomationID: "a-1", Status: models.WebhookStatusReceived}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastWebhookLog(entry)
	}
}

func BenchmarkOriginChecker_Check(b *testing.B) {
	checker := NewOriginChecker("http://a.test,http://b.test,http://c.test")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checker.Check("http://c.test")
	}
}
