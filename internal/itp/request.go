package itp

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Request is one IDE request to the server.
type Request interface {
	Name() string
	encode(b *strings.Builder)
}

type SaveReq struct{}

type RemoveSubtree struct {
	NodeID int
}

type CommandReq struct {
	NodeID  int
	Command string
}

type GetTask struct {
	NodeID   int
	DoIntros bool
	Loc      bool
}

type GetFirstUnprovenNode struct {
	NodeID int
}

func (SaveReq) Name() string              { return "Save_req" }
func (RemoveSubtree) Name() string        { return "Remove_subtree" }
func (CommandReq) Name() string           { return "Command_req" }
func (GetTask) Name() string              { return "Get_task" }
func (GetFirstUnprovenNode) Name() string { return "Get_first_unproven_node" }

// Encode renders r as the server expects it, without the delimiter.
// String values keep encoding/json's HTML escaping, so a '>' in a command
// never reaches the wire raw and cannot forge a delimiter.
func Encode(r Request) string {
	var b strings.Builder
	b.WriteString(`{"ide_request": `)
	b.WriteString(quote(r.Name()))
	r.encode(&b)
	b.WriteString("}")
	return b.String()
}

func (SaveReq) encode(*strings.Builder) {}

func (r RemoveSubtree) encode(b *strings.Builder) {
	writeInt(b, "node_ID", r.NodeID)
}

func (r CommandReq) encode(b *strings.Builder) {
	writeInt(b, "node_ID", r.NodeID)
	b.WriteString(`, "command": `)
	b.WriteString(quote(r.Command))
}

func (r GetTask) encode(b *strings.Builder) {
	writeInt(b, "node_ID", r.NodeID)
	writeBool(b, "do_intros", r.DoIntros)
	writeBool(b, "loc", r.Loc)
}

func (r GetFirstUnprovenNode) encode(b *strings.Builder) {
	writeInt(b, "node_ID", r.NodeID)
}

func writeInt(b *strings.Builder, key string, v int) {
	b.WriteString(`, "` + key + `": `)
	b.WriteString(strconv.Itoa(v))
}

func writeBool(b *strings.Builder, key string, v bool) {
	b.WriteString(`, "` + key + `": `)
	b.WriteString(strconv.FormatBool(v))
}

func quote(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(out)
}
