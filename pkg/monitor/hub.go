// Package monitor broadcasts node activity as JSON to websocket clients.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/robotalks/telenode/pkg/link"
	"github.com/robotalks/telenode/pkg/telemetry"
)

// Event types
const (
	EventLink      = "link"
	EventTelemetry = "telemetry"
)

// Event is one broadcast message.
type Event struct {
	Type        string    `json:"type"`
	Time        time.Time `json:"time"`
	State       string    `json:"state,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Frame       string    `json:"frame,omitempty"`
	Reply       string    `json:"reply,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// DefaultBacklog is the number of events buffered before dropping.
const DefaultBacklog = 16

// Hub fans out events to connected clients. Publishing never blocks: when
// the backlog is full new events are dropped.
type Hub struct {
	Addr string

	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	events     chan *Event
	upgrader   websocket.Upgrader
}

// NewHub creates a Hub serving on addr.
func NewHub(addr string) *Hub {
	return &Hub{
		Addr:    addr,
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan *Event, DefaultBacklog),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Name implements Named.
func (h *Hub) Name() string {
	return "monitor"
}

// Publish queues an event.
func (h *Hub) Publish(ev *Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case h.events <- ev:
	default:
		glog.V(1).Infof("monitor backlog full, dropping %s event", ev.Type)
	}
}

// StateChanged implements link.StateNotifier.
func (h *Hub) StateChanged(state link.State, cause error) {
	ev := &Event{Type: EventLink, State: state.String()}
	if cause != nil {
		ev.Error = cause.Error()
	}
	h.Publish(ev)
}

// TransactionDone implements telemetry.Observer.
func (h *Hub) TransactionDone(res *telemetry.Result, err error) {
	ev := &Event{Type: EventTelemetry}
	if res != nil {
		ev.Destination, ev.Frame, ev.Reply = res.Destination, res.Frame, res.Reply
	}
	if err != nil {
		ev.Error = err.Error()
	}
	h.Publish(ev)
}

// Handler returns the HTTP handler serving /ws.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleConnection)
	return mux
}

// Run implements Runnable.
func (h *Hub) Run(ctx context.Context) error {
	srv := &http.Server{Addr: h.Addr, Handler: h.Handler()}
	errCh := make(chan error, 1)
	go func() {
		glog.Infof("monitor listening on %s", h.Addr)
		errCh <- srv.ListenAndServe()
	}()
	go h.Broadcast(ctx)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		srv.Close()
		h.closeAll()
		return ctx.Err()
	}
}

// Broadcast sends queued events to clients until ctx is done.
func (h *Hub) Broadcast(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.send(ev)
		}
	}
}

func (h *Hub) send(ev *Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		glog.Errorf("marshal event error: %v", err)
		return
	}
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(time.Second))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			glog.Warningf("monitor client %s: %v", client.RemoteAddr(), err)
			client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("monitor upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.clientsMux.Lock()
	h.clients[conn] = true
	h.clientsMux.Unlock()
	glog.V(1).Infof("monitor client %s connected", conn.RemoteAddr())
	defer func() {
		h.clientsMux.Lock()
		delete(h.clients, conn)
		h.clientsMux.Unlock()
		glog.V(1).Infof("monitor client %s disconnected", conn.RemoteAddr())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
