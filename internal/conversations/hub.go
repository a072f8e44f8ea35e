package conversations

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	FrameMessage = "message"
	FrameClaimed = "claimed"
	FrameClosed  = "closed"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

var (
	ErrRoomClosed     = errors.New("conversation room closed")
	ErrNotParticipant = errors.New("not a conversation participant")
)

type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Broadcaster fans conversation updates out to connected participants.
type Broadcaster interface {
	Broadcast(conversationID string, frame Frame)
	Evict(conversationID string, keep ...string)
	CloseRoom(conversationID string)
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// room tracks the clients of one conversation. Once members is set only those users
// may stay or join, and a closed room accepts nobody.
type room struct {
	clients map[*client]struct{}
	members map[string]struct{}
	closed  bool
}

func (r *room) admits(userID string) bool {
	if r.members == nil {
		return true
	}
	_, ok := r.members[userID]
	return ok
}

// Hub keeps one room of websocket clients per conversation. Clients only receive; anything they send is discarded.
type Hub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*room
}

func NewHub(allowedOrigins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		log:   log,
		rooms: map[string]*room{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Serve upgrades the request and blocks until the connection ends. A join the room refuses
// gets a close frame and ErrRoomClosed or ErrNotParticipant.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, conversationID, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	if err := h.add(conversationID, c); err != nil {
		code := websocket.ClosePolicyViolation
		if errors.Is(err, ErrRoomClosed) {
			code = websocket.CloseNormalClosure
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, err.Error()), time.Now().Add(writeWait))
		conn.Close()
		return err
	}

	go h.writePump(c)
	h.readPump(conversationID, c)
	return nil
}

func (h *Hub) Broadcast(conversationID string, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("conversations hub: encode error", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	var slow []*client
	var clients map[*client]struct{}
	if rm := h.rooms[conversationID]; rm != nil {
		clients = rm.clients
	}
	for c := range clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("conversations hub: send buffer full, dropping client",
			slog.String("conversation_id", conversationID),
			slog.String("user_id", c.userID),
		)
		h.remove(conversationID, c)
	}
}

// Evict disconnects every client whose user is not listed in keep and
// refuses those users from then on.
func (h *Hub) Evict(conversationID string, keep ...string) {
	members := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		if id != "" {
			members[id] = struct{}{}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	rm := h.room(conversationID)
	rm.members = members
	for c := range rm.clients {
		if _, ok := members[c.userID]; !ok {
			delete(rm.clients, c)
			close(c.send)
		}
	}
}

// CloseRoom disconnects every client of the conversation after pending frames are written.
// Later joins are refused.
func (h *Hub) CloseRoom(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm := h.room(conversationID)
	rm.closed = true
	for c := range rm.clients {
		close(c.send)
	}
	rm.clients = map[*client]struct{}{}
}

// Connections reports how many clients are attached to a conversation.
func (h *Hub) Connections(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if rm := h.rooms[conversationID]; rm != nil {
		return len(rm.clients)
	}
	return 0
}

// room returns the conversation's room, creating it. Callers hold h.mu.
func (h *Hub) room(conversationID string) *room {
	rm, ok := h.rooms[conversationID]
	if !ok {
		rm = &room{clients: map[*client]struct{}{}}
		h.rooms[conversationID] = rm
	}
	return rm
}

func (h *Hub) add(conversationID string, c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm := h.room(conversationID)
	if rm.closed {
		return ErrRoomClosed
	}
	if !rm.admits(c.userID) {
		return ErrNotParticipant
	}
	rm.clients[c] = struct{}{}
	return nil
}

func (h *Hub) remove(conversationID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	if _, ok := rm.clients[c]; !ok {
		return
	}
	delete(rm.clients, c)
	close(c.send)
	// Restricted and closed rooms stay so that late joins keep being refused.
	if len(rm.clients) == 0 && rm.members == nil && !rm.closed {
		delete(h.rooms, conversationID)
	}
}

func (h *Hub) readPump(conversationID string, c *client) {
	defer func() {
		h.remove(conversationID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("conversations hub: read error",
					slog.String("conversation_id", conversationID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
