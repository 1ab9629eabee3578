package websocket

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const defaultMaxClients = 1000

var ErrHubStopped = errors.New("hub stopped")

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn    *websocket.Conn
	replyCh chan registerReply
}

type registerReply struct {
	id  uuid.UUID
	err error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	id uuid.UUID
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct {
	done chan struct{}
}

func (cmdStop) hubCmd() {}

// Hub fans live item updates out to every connected browser. A single goroutine
// owns the client map; callers talk to it through a command channel.
type Hub struct {
	cmdCh      chan hubCmd
	stopped    chan struct{}
	clients    map[uuid.UUID]*clientWriter
	maxClients int
	clock      clockwork.Clock
	metrics    *metrics.WebSocketMetrics
}

// NewHub starts a hub. m may be nil; maxClients <= 0 uses the default cap.
func NewHub(maxClients int, m *metrics.WebSocketMetrics, clock clockwork.Clock) *Hub {
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		stopped:    make(chan struct{}),
		clients:    make(map[uuid.UUID]*clientWriter),
		maxClients: maxClients,
		clock:      clock,
		metrics:    m,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.id)
		case cmdBroadcast:
			h.handleBroadcast(c.data)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			close(h.stopped)
			close(c.done)
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting websocket client, max clients reached", "max_clients", h.maxClients)
		_ = c.conn.Close()
		c.replyCh <- registerReply{err: fmt.Errorf("max clients (%d) reached", h.maxClients)}
		return
	}

	id := uuid.New()
	h.clients[id] = newClientWriter(c.conn, h.clock)
	h.setActive()
	slog.Debug("Websocket client registered", "client_id", id, "total_clients", len(h.clients))
	c.replyCh <- registerReply{id: id}
}

func (h *Hub) handleUnregister(id uuid.UUID) {
	cw, ok := h.clients[id]
	if !ok {
		return
	}
	cw.stop()
	delete(h.clients, id)
	h.setActive()
	slog.Debug("Websocket client unregistered", "client_id", id, "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []uuid.UUID
	for id, cw := range h.clients {
		select {
		case cw.sendCh <- data:
		default:
			slow = append(slow, id)
		}
	}

	for _, id := range slow {
		slog.Warn("Disconnecting slow websocket client", "client_id", id)
		if h.metrics != nil {
			h.metrics.SlowClientsDropped.Inc()
		}
		h.handleUnregister(id)
	}

	if h.metrics != nil {
		h.metrics.MessagesPublished.Inc()
	}
}

func (h *Hub) handleStop() {
	for id, cw := range h.clients {
		cw.stopGraceful("server shutting down")
		delete(h.clients, id)
	}
	h.setActive()
}

func (h *Hub) setActive() {
	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	}
}

// send delivers cmd unless the hub has stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

// Register hands conn to the hub, which owns writing to it from then on.
// The caller keeps reading from conn and calls Unregister when the read fails.
func (h *Hub) Register(conn *websocket.Conn) (uuid.UUID, error) {
	replyCh := make(chan registerReply, 1)
	if !h.send(cmdRegister{conn: conn, replyCh: replyCh}) {
		_ = conn.Close()
		return uuid.Nil, ErrHubStopped
	}
	select {
	case reply := <-replyCh:
		return reply.id, reply.err
	case <-h.stopped:
		_ = conn.Close()
		return uuid.Nil, ErrHubStopped
	}
}

func (h *Hub) Unregister(id uuid.UUID) {
	h.send(cmdUnregister{id: id})
}

// Broadcast queues data for every connected client. Clients whose buffer is full are dropped.
func (h *Hub) Broadcast(data []byte) {
	h.send(cmdBroadcast{data: data})
}

func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if !h.send(cmdClientCount{replyCh: replyCh}) {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.stopped:
		return 0
	}
}

// Stop closes every client with a close frame and ends the hub goroutine. Safe to call twice.
func (h *Hub) Stop() {
	done := make(chan struct{})
	if !h.send(cmdStop{done: done}) {
		return
	}
	select {
	case <-done:
	case <-h.stopped:
	}
}
