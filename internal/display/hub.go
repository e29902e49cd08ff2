// Package display pushes announcements and queue updates to waiting-room screens over WebSockets.
package display

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/announce"
)

const (
	EventAnnouncement = "announcement"
	EventQueue        = "queue"

	sendBuffer  = 64
	historySize = 20
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
)

// Event is one message written to every connected screen.
type Event struct {
	Type         string                 `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	Announcement *announce.Announcement `json:"announcement,omitempty"`
	Queue        any                    `json:"queue,omitempty"`
}

type client struct {
	id   string
	send chan []byte
}

// Hub tracks connected screens and keeps the latest announcements so a screen that
// joins late can show recent history.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	history [][]byte
	log     zerolog.Logger
	now     func() time.Time
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log.With().Str("component", "display").Logger(),
		now:     time.Now,
	}
}

// Show broadcasts an announcement. It satisfies announce.Display.
func (h *Hub) Show(a announce.Announcement) error {
	data, err := json.Marshal(Event{Type: EventAnnouncement, Timestamp: h.now(), Announcement: &a})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.history = append(h.history, data)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
	h.mu.Unlock()

	h.broadcast(data)
	return nil
}

// PublishQueue sends the current waiting list to every screen.
func (h *Hub) PublishQueue(entries any) error {
	data, err := json.Marshal(Event{Type: EventQueue, Timestamp: h.now(), Queue: entries})
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("client_id", c.id).Msg("display client buffer full, dropping event")
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	for _, data := range h.history {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every screen.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Screens are served from the LAN, often from a file:// page.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams events until the screen disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.log.Info().Str("client_id", c.id).Str("remote", r.RemoteAddr).Msg("display connected")

	go h.writePump(c, ws)
	go h.readPump(c, ws)
}

// readPump only drains control frames; screens never send commands.
func (h *Hub) readPump(c *client, ws *websocket.Conn) {
	defer func() {
		h.unregister(c)
		ws.Close()
		h.log.Info().Str("client_id", c.id).Msg("display disconnected")
	}()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
