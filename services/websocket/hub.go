package wshub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
)

const (
	writeWait  = 5 * time.Second
	bufferSize = 64
)

type (
	// Event is the JSON pushed to the viewers of a live session.
	Event struct {
		SessionID string        `json:"session_id"`
		Phase     live.Phase    `json:"phase"`
		Subject   *live.Subject `json:"subject"`
		InFlight  bool          `json:"in_flight"`
		Preview   PreviewEvent  `json:"preview"`
	}

	PreviewEvent struct {
		SubjectID string    `json:"student_id,omitempty"`
		Image     string    `json:"image,omitempty"` // data URI or URL
		HasError  bool      `json:"has_error"`
		Error     string    `json:"error,omitempty"`
		UpdatedAt time.Time `json:"updated_at,omitempty"`
	}

	subscription struct {
		sessionID string
		conn      *websocket.Conn
		welcome   []Event // sent to this viewer only
	}

	// Hub fans live session updates out to websocket viewers.
	Hub struct {
		clients    map[*websocket.Conn]string // conn -> session id
		broadcast  chan Event
		register   chan subscription
		unregister chan *websocket.Conn
		done       chan struct{}
		mutex      sync.RWMutex
		logger     core.Logger
	}
)

var _ live.Listener = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan Event, bufferSize),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func NewEvent(st live.Status) Event {
	ev := Event{
		SessionID: st.SessionID,
		Phase:     st.Phase,
		Subject:   st.Subject,
		InFlight:  st.InFlight,
		Preview: PreviewEvent{
			SubjectID: st.Preview.SubjectID,
			HasError:  st.Preview.HasError(),
			UpdatedAt: st.Preview.UpdatedAt,
		},
	}
	if st.Preview.Err != nil {
		ev.Preview.Error = st.Preview.Err.Error()
	}
	if art := st.Preview.Artifact; art != nil {
		if art.URL != "" {
			ev.Preview.Image = art.URL
		} else {
			ev.Preview.Image = "data:" + art.ContentType + ";base64," + base64.StdEncoding.EncodeToString(art.Data)
		}
	}
	return ev
}

// Run serves registrations and broadcasts until ctx is done, then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				_ = client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.conn] = sub.sessionID
			for _, ev := range sub.welcome {
				if msg, err := json.Marshal(ev); err != nil {
					h.logger.Error("encoding live event", err)
				} else if !h.send(sub.conn, msg) {
					break
				}
			}
			h.mutex.Unlock()
			h.logger.Debug("live viewer connected", map[string]interface{}{"session_id": sub.sessionID})

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				_ = client.Close()
			}
			h.mutex.Unlock()

		case ev := <-h.broadcast:
			msg, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("encoding live event", err)
				continue
			}
			h.mutex.Lock()
			for client, sessionID := range h.clients {
				if sessionID != ev.SessionID {
					continue
				}
				h.send(client, msg)
			}
			h.mutex.Unlock()
		}
	}
}

// send writes to one viewer and drops it on failure. h.mutex must be held.
func (h *Hub) send(client *websocket.Conn, msg []byte) bool {
	_ = client.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.logger.Warn("sending live event", err)
		delete(h.clients, client)
		_ = client.Close()
		return false
	}
	return true
}

// Register subscribes the viewer to a session and sends it the welcome events first.
// It returns false once the hub has stopped.
func (h *Hub) Register(sessionID string, client *websocket.Conn, welcome ...Event) bool {
	select {
	case h.register <- subscription{sessionID: sessionID, conn: client, welcome: welcome}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Notify queues the status for broadcast. When the queue is full the update is dropped.
func (h *Hub) Notify(st live.Status) {
	select {
	case h.broadcast <- NewEvent(st):
	default:
		h.logger.Warn("live event dropped", map[string]interface{}{"session_id": st.SessionID})
	}
}

func (h *Hub) ClientCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	var n int
	for _, id := range h.clients {
		if id == sessionID {
			n++
		}
	}
	return n
}
