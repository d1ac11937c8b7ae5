package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/shared/id"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// DefaultQueueSize is the per-client outbound frame buffer.
const DefaultQueueSize = 256

// ErrDropped is returned when at least one client queue was full.
var ErrDropped = errors.New("websocket client queue full")

// Recorder receives websocket metrics. *monitoring.Metrics satisfies it.
type Recorder interface {
	WSConnected()
	WSDisconnected()
	WSMessage(direction, msgType string)
}

// HubOptions configures a Hub.
type HubOptions struct {
	QueueSize int
	Recorder  Recorder
	Logger    *zap.Logger
}

// Hub fans terminal events out to connected websocket clients. It
// implements terminal.EventSink.
type Hub struct {
	queueSize int
	recorder  Recorder
	log       *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	clients map[id.ClientID]*client
	closed  bool
}

type client struct {
	id     id.ClientID
	filter string
	send   chan []byte

	doneOnce sync.Once
	done     chan struct{}
}

func (c *client) close() {
	c.doneOnce.Do(func() { close(c.done) })
}

// NewHub creates an empty hub.
func NewHub(opts HubOptions) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Hub{
		queueSize: opts.QueueSize,
		recorder:  opts.Recorder,
		log:       opts.Logger,
		now:       time.Now,
		clients:   make(map[id.ClientID]*client),
	}
}

// Output publishes a chunk of terminal output.
func (h *Hub) Output(sessionID string, data []byte) error {
	return h.broadcast(types.WSEvent{Type: types.EventOutput, SessionID: sessionID, Data: data})
}

// MetricsCaptured publishes the number of usage records a chunk completed.
func (h *Hub) MetricsCaptured(sessionID string, inserts int) error {
	return h.broadcast(types.WSEvent{Type: types.EventTokenCaptured, SessionID: sessionID, Inserts: inserts})
}

// Exit publishes a session's exit code.
func (h *Hub) Exit(sessionID string, code int32) error {
	return h.broadcast(types.WSEvent{Type: types.EventExit, SessionID: sessionID, Code: &code})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// broadcast encodes ev once and queues it for every matching client.
func (h *Hub) broadcast(ev types.WSEvent) error {
	ev.Timestamp = h.now().UnixMilli()
	frame, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	dropped := 0
	h.mu.RLock()
	for _, c := range h.clients {
		if c.filter != "" && c.filter != ev.SessionID {
			continue
		}
		select {
		case c.send <- frame:
			h.recorder.WSMessage("out", ev.Type)
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		return fmt.Errorf("%w: %s to %d clients", ErrDropped, ev.Type, dropped)
	}
	return nil
}

// register adds a client. It returns nil once the hub is closed.
func (h *Hub) register(filter string) *client {
	c := &client{
		id:     id.NewClientID(),
		filter: filter,
		send:   make(chan []byte, h.queueSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	h.recorder.WSConnected()
	h.log.Debug("Client connected", zap.String("client_id", c.id.String()), zap.String("filter", filter))
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()
	if ok {
		h.recorder.WSDisconnected()
		h.log.Debug("Client disconnected", zap.String("client_id", c.id.String()))
	}
}

// reply queues ev for a single client, dropping it when the queue is full.
func (h *Hub) reply(c *client, ev types.WSEvent) {
	ev.Timestamp = h.now().UnixMilli()
	frame, err := sonic.Marshal(ev)
	if err != nil {
		h.log.Warn("Failed to encode reply", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	select {
	case c.send <- frame:
		h.recorder.WSMessage("out", ev.Type)
	default:
		h.log.Debug("Dropped reply, client queue full", zap.String("client_id", c.id.String()))
	}
}

type nopRecorder struct{}

func (nopRecorder) WSConnected() {}
func (nopRecorder) WSDisconnected() {}
func (nopRecorder) WSMessage(string, string) {}
