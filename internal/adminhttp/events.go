package adminhttp

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/relaypool/connpool/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// event is one log line broadcast to every connected /events client.
type event struct {
	Time    time.Time      `json:"time"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// eventHub fans pool log events out to any number of websocket
// subscribers. Publishing never blocks on a slow client: a client whose
// outbound buffer is full misses that event instead of stalling the rest;
// it stays subscribed.
type eventHub struct {
	mu          sync.Mutex
	subscribers map[chan event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subscribers: make(map[chan event]struct{})}
}

func (h *eventHub) subscribe() chan event {
	ch := make(chan event, 32)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan event) {
	h.mu.Lock()
	delete(h.subscribers, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *eventHub) publish(message string, data map[string]any) {
	evt := event{Time: time.Now(), Message: message, Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Get().WithContext(c.Request.Context()).WarnWith("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	go readUntilClosed(conn)

	for evt := range ch {
		payload, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readUntilClosed drains and discards client frames so the connection's
// read deadline logic and pong handling keep working; this endpoint is
// publish-only.
func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
