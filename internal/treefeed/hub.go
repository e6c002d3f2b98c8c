// Package treefeed mirrors the proof tree of a running session to
// websocket clients and forwards their selections and commands back to it.
package treefeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"itpsession/internal/metrics"
	"itpsession/internal/prooftree"
	"itpsession/internal/protocol"
)

const (
	sendQueueSize = 256
	writeTimeout  = 2 * time.Second
)

// Controller is the part of a session the feed drives.
type Controller interface {
	ID() string
	Done() <-chan struct{}
	WithSnapshot(fn func(rows []prooftree.Row)) bool
	SelectNode(id int) bool
	SubmitCommand(line string) bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Hub receives tree changes on the session loop and fans them out.
// A client whose queue fills up is disconnected rather than left with a
// tree that silently diverges.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	ctrl    Controller
	closed  bool
	seq     atomic.Uint64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHub(m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		clients: map[*client]struct{}{},
		metrics: m,
		logger:  logger.With("component", "treefeed"),
	}
}

// Bind attaches the session whose tree is mirrored. It must be called
// before clients connect.
func (h *Hub) Bind(ctrl Controller) {
	h.mu.Lock()
	h.ctrl = ctrl
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) InsertRow(row prooftree.Row) {
	h.broadcast(protocol.OpTreeInsert, nodePayload(row))
}

func (h *Hub) UpdateRow(row prooftree.Row) {
	h.broadcast(protocol.OpTreeUpdate, nodePayload(row))
}

func (h *Hub) RemoveRow(id int) {
	h.broadcast(protocol.OpTreeRemove, protocol.NodeRef{NodeID: id})
}

func (h *Hub) SelectRow(id int) {
	h.broadcast(protocol.OpTreeSelect, protocol.NodeRef{NodeID: id})
}

// Close tells every client the session is over and disconnects them once
// their queues are written.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	sessionID := ""
	if h.ctrl != nil {
		sessionID = h.ctrl.ID()
	}
	h.mu.Unlock()

	h.broadcast(protocol.OpSessionClosed, protocol.ClosedPayload{SessionID: sessionID})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.stop()
	}
	return nil
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	ctrl := h.ctrl
	h.mu.Unlock()
	if closed || ctrl == nil {
		respondError(w, http.StatusServiceUnavailable, "NO_ACTIVE_SESSION", "no active session")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket accept failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendQueueSize), done: make(chan struct{})}
	if !h.register(r.Context(), ctrl, c) {
		_ = conn.Close(websocket.StatusGoingAway, "session closed")
		return
	}
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return h.readLoop(gctx, ctrl, c)
	})
	g.Go(func() error {
		err := h.writeLoop(gctx, c)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return err
	})
	if err := g.Wait(); err != nil && !isDisconnect(err) {
		h.logger.Debug("feed client ended", "err", err)
	}
}

// register adds c on the session loop, so the reset it starts with is
// followed by exactly the changes made after the snapshot.
func (h *Hub) register(ctx context.Context, ctrl Controller, c *client) bool {
	registered := make(chan bool, 1)
	ok := ctrl.WithSnapshot(func(rows []prooftree.Row) {
		nodes := make([]protocol.Node, 0, len(rows))
		for _, row := range rows {
			nodes = append(nodes, nodePayload(row))
		}
		msg, err := h.encode(protocol.OpTreeReset, protocol.ResetPayload{SessionID: ctrl.ID(), Nodes: nodes})
		if err != nil {
			registered <- false
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			registered <- false
			return
		}
		c.send <- msg
		h.clients[c] = struct{}{}
		h.metrics.FeedClientsDelta(1)
		registered <- true
	})
	if !ok {
		return false
	}
	select {
	case res := <-registered:
		return res
	case <-ctrl.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.stop()
	h.metrics.FeedClientsDelta(-1)
}

func (h *Hub) broadcast(op string, payload any) {
	msg, err := h.encode(op, payload)
	if err != nil {
		h.logger.Warn("encode feed event failed", "op", op, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("disconnect slow feed client", "op", op)
			delete(h.clients, c)
			c.stop()
			h.metrics.FeedClientsDelta(-1)
		}
	}
}

func (h *Hub) encode(op string, payload any) ([]byte, error) {
	return json.Marshal(protocol.NewEvent(h.seq.Add(1), op, payload))
}

func (h *Hub) writeLoop(ctx context.Context, c *client) error {
	for {
		select {
		case msg := <-c.send:
			if err := h.write(ctx, c, msg); err != nil {
				return err
			}
		case <-c.done:
			for {
				select {
				case msg := <-c.send:
					if err := h.write(ctx, c, msg); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Hub) write(ctx context.Context, c *client, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, msg)
}

func (h *Hub) readLoop(ctx context.Context, ctrl Controller, c *client) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		var req protocol.Message
		if err := json.Unmarshal(data, &req); err != nil {
			h.reply(c, protocol.NewError(protocol.Message{}, "bad_request", "invalid json"))
			continue
		}
		h.serve(ctrl, c, req)
	}
}

func (h *Hub) serve(ctrl Controller, c *client, req protocol.Message) {
	accepted := false
	switch req.Op {
	case protocol.OpTreeSelect:
		var ref protocol.NodeRef
		if err := protocol.DecodePayload(req, &ref); err != nil {
			h.reply(c, protocol.NewError(req, "bad_request", err.Error()))
			return
		}
		accepted = ctrl.SelectNode(ref.NodeID)
	case protocol.OpTreeCommand:
		var cmd protocol.CommandPayload
		if err := protocol.DecodePayload(req, &cmd); err != nil {
			h.reply(c, protocol.NewError(req, "bad_request", err.Error()))
			return
		}
		accepted = ctrl.SubmitCommand(cmd.Command)
	default:
		h.reply(c, protocol.NewError(req, "unknown_op", "unsupported operation"))
		return
	}
	if !accepted {
		h.reply(c, protocol.NewError(req, "session_closed", "session has ended"))
	}
}

func (h *Hub) reply(c *client, res protocol.Message) {
	msg, err := json.Marshal(res)
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		h.logger.Warn("drop feed reply", "op", res.Op)
	}
}

func nodePayload(row prooftree.Row) protocol.Node {
	return protocol.Node{
		NodeID:        row.ID,
		ParentID:      row.ParentID,
		DisplayParent: row.DisplayParent,
		Name:          row.Name,
		NodeType:      row.NodeType,
		Status:        string(row.Status),
		Color:         string(row.Color),
	}
}

func isDisconnect(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	status := websocket.CloseStatus(err)
	return status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway
}
