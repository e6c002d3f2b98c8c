package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	TypeEvent = "event"
	TypeReq   = "req"
	TypeRes   = "res"
)

// Tree feed operations. Events flow to clients; tree.select and
// tree.command also arrive from clients as requests.
const (
	OpTreeReset     = "tree.reset"
	OpTreeInsert    = "tree.insert"
	OpTreeUpdate    = "tree.update"
	OpTreeRemove    = "tree.remove"
	OpTreeSelect    = "tree.select"
	OpTreeCommand   = "tree.command"
	OpSessionClosed = "session.closed"
)

type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
	Error   *ErrPayload     `json:"error,omitempty"`
}

type ErrPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Node struct {
	NodeID        int    `json:"node_id"`
	ParentID      int    `json:"parent_id"`
	DisplayParent int    `json:"display_parent"`
	Name          string `json:"name"`
	NodeType      string `json:"node_type"`
	Status        string `json:"status"`
	Color         string `json:"color"`
}

type ResetPayload struct {
	SessionID string `json:"session_id"`
	Nodes     []Node `json:"nodes"`
}

type NodeRef struct {
	NodeID int `json:"node_id"`
}

type CommandPayload struct {
	Command string `json:"command"`
}

type ClosedPayload struct {
	SessionID string `json:"session_id"`
}

func MustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func NewEvent(seq uint64, op string, payload any) Message {
	return Message{
		ID:      fmt.Sprintf("evt_%d", seq),
		Type:    TypeEvent,
		Op:      op,
		Payload: MustRaw(payload),
	}
}

// NewError answers a client request that could not be served.
func NewError(req Message, code, msg string) Message {
	return Message{
		ID:      req.ID,
		Type:    TypeRes,
		Op:      req.Op,
		Payload: json.RawMessage(`{}`),
		Error:   &ErrPayload{Code: code, Message: msg},
	}
}

// DecodePayload unmarshals the payload of m into dst.
func DecodePayload(m Message, dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("protocol: %s: empty payload", m.Op)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("protocol: %s: %w", m.Op, err)
	}
	return nil
}
