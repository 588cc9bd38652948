package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/lifeops-dev/lifeops/internal/lifeops"
)

// StreamEvent is one store-change notification pushed to the UI.
type StreamEvent struct {
	Topic string    `json:"topic"`
	At    time.Time `json:"at"`
}

// Hub fans store-change notifications out to every connected websocket.
// It satisfies the stores' Notifier so they never see the transport.
type Hub struct {
	log lifeops.Logger

	mu      sync.Mutex
	clients map[chan StreamEvent]struct{}
}

func NewHub(log lifeops.Logger) *Hub {
	if log == nil {
		log = logDiscard{}
	}
	return &Hub{log: log, clients: map[chan StreamEvent]struct{}{}}
}

type logDiscard struct{}

func (logDiscard) Printf(string, ...any) {}

// Notify implements lifeops.Notifier. A slow client's full buffer drops
// the event rather than blocking the store.
func (h *Hub) Notify(topic string) {
	event := StreamEvent{Topic: topic, At: time.Now()}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) subscribe() chan StreamEvent {
	ch := make(chan StreamEvent, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan StreamEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams events until the client goes
// away. Incoming frames are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Printf("stream: accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := conn.CloseRead(r.Context())
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
