package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"tradehook/internal/metrics"
	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBufferPool - буферы для сериализации broadcast сообщений
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// broadcastBufferSize - емкость очереди broadcast
const broadcastBufferSize = 256

// envelope - сериализованное сообщение и его получатель
//
// userID == 0 - только администраторам (все клиенты с userID 0)
type envelope struct {
	userID int
	data   []byte
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Рассылает события автоматизаций подключенным страницам без polling.
// Клиент получает события своего пользователя, администратор - все.
//
// Типы сообщений:
// - automationStatus: автоматизация включена или выключена
// - webhookLog: принят новый вебхук
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastWebhookLog(entry)
// 4. При остановке: hub.Stop()
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	// Счетчики читаются без блокировки
	clientCount int64
	dropped     int64

	log *utils.Logger
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		log:        utils.L().WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Все операции с clients выполняются только здесь.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.updateCount()
			h.log.Debug("client connected", utils.UserID(client.userID), utils.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.log.Debug("client disconnected", utils.UserID(client.userID), utils.Int("clients", len(h.clients)))
			}

		case msg := <-h.broadcast:
			var slow int
			for client := range h.clients {
				if !client.accepts(msg.userID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// клиент не успевает читать - отключаем
					h.remove(client)
					slow++
				}
			}
			if slow > 0 {
				h.log.Warn("removed slow clients", utils.Int("removed", slow), utils.Int("clients", len(h.clients)))
			}
		}
	}
}

// Stop останавливает Run и закрывает каналы клиентов
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.updateCount()
}

func (h *Hub) updateCount() {
	atomic.StoreInt64(&h.clientCount, int64(len(h.clients)))
	metrics.WebSocketClients.Set(float64(len(h.clients)))
}

// Broadcast сериализует message и ставит в очередь для userID
//
// Не блокирует: при переполненной очереди сообщение отбрасывается.
func (h *Hub) Broadcast(userID int, message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer jsonBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("failed to marshal broadcast message", utils.Err(err))
		return
	}

	data := bytes.TrimRight(buf.Bytes(), "\n")
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)

	h.BroadcastRaw(userID, msgCopy)
}

// BroadcastRaw ставит в очередь уже сериализованное сообщение
func (h *Hub) BroadcastRaw(userID int, data []byte) {
	select {
	case h.broadcast <- envelope{userID: userID, data: data}:
	default:
		atomic.AddInt64(&h.dropped, 1)
	}
}

// BroadcastAutomationStatus рассылает смену статуса автоматизации
func (h *Hub) BroadcastAutomationStatus(userID int, automationID string, active bool) {
	h.Broadcast(userID, NewAutomationStatusMessage(automationID, active))
}

// BroadcastWebhookLog рассылает новый лог вебхука
func (h *Hub) BroadcastWebhookLog(entry *models.WebhookLog) {
	h.Broadcast(entry.UserID, NewWebhookLogMessage(entry))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(atomic.LoadInt64(&h.clientCount))
}

// DroppedMessages - сообщения, отброшенные из-за переполненной очереди
func (h *Hub) DroppedMessages() int64 {
	return atomic.LoadInt64(&h.dropped)
}
