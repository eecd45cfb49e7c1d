package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tradehook/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Страница ничего не присылает, кроме control frames
	maxMessageSize = 4096

	clientSendBufferSize = 256
)

// OriginChecker - разрешенные Origin, nil разрешает любой
type OriginChecker map[string]struct{}

// NewOriginChecker разбирает список через запятую ("" или "*" = любой)
func NewOriginChecker(allowed string) OriginChecker {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" {
		return nil
	}

	checker := OriginChecker{}
	for _, origin := range strings.Split(allowed, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			checker[origin] = struct{}{}
		}
	}
	return checker
}

// Check - пустой Origin (curl, logtail) пропускается всегда
func (oc OriginChecker) Check(origin string) bool {
	if origin == "" || oc == nil {
		return true
	}
	_, ok := oc[origin]
	return ok
}

// Client - одна открытая страница логов
//
// listen следит за закрытием со стороны страницы, deliver пишет
// сообщения и ping. Обе горутины закрывают conn при выходе.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID int // 0 = администратор, видит всех
	send   chan []byte
}

// accepts - получает ли клиент сообщение для userID
func (c *Client) accepts(userID int) bool {
	return c.userID == 0 || c.userID == userID
}

func (c *Client) listen() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	c.conn.SetReadLimit(maxMessageSize)
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.hub.log.Debug("websocket closed unexpectedly", utils.UserID(c.userID), utils.Err(err))
		}
		return
	}
}

// deliver - каждый кадр содержит ровно один JSON объект
func (c *Client) deliver() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, []byte{})
				return
			}
			if write(websocket.TextMessage, message) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// Handler - endpoint /ws/stream
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler создает endpoint с проверкой Origin
func NewHandler(hub *Hub, allowedOrigins string) *Handler {
	checker := NewOriginChecker(allowedOrigins)
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				return checker.Check(r.Header.Get("Origin"))
			},
		},
	}
}

// ServeWS апгрейдит соединение и подписывает страницу userID
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, userID int) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade failed", utils.Err(err))
		return
	}

	client := &Client{
		conn:   conn,
		hub:    h.hub,
		userID: userID,
		send:   make(chan []byte, clientSendBufferSize),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.stop:
		conn.Close()
		return
	}

	go client.deliver()
	go client.listen()
}
