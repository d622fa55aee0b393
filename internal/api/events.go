package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/accentis/accentis/internal/pipeline"
)

// eventBuffer is the per-subscriber event queue depth. A subscriber that
// falls further behind than this starts losing events rather than stalling
// the pipeline.
const eventBuffer = 64

// EventHub fans pipeline progress events out to websocket subscribers. It
// implements [pipeline.EventSink]; Emit never blocks. The zero value is not
// usable, construct with [NewEventHub].
type EventHub struct {
	mu   sync.Mutex
	subs map[chan pipeline.Event]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan pipeline.Event]struct{})}
}

// Emit delivers ev to every current subscriber. Subscribers with a full
// buffer are skipped; a progress stream is best-effort.
func (h *EventHub) Emit(ev pipeline.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe registers a fresh event channel and returns it with its
// unsubscribe function.
func (h *EventHub) subscribe() (<-chan pipeline.Event, func()) {
	ch := make(chan pipeline.Event, eventBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// subscriberCount reports the number of live subscribers.
func (h *EventHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request to a websocket and streams pipeline events
// to it as JSON text messages until the client disconnects or the server
// shuts down.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("event stream upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// CloseRead discards inbound frames and cancels the context when the
	// client goes away. The stream is one-directional.
	ctx := conn.CloseRead(r.Context())

	events, unsubscribe := h.subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				slog.Debug("event stream write failed", "error", err)
				return
			}
		}
	}
}
