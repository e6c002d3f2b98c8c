package itp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeErrorKind classifies why a payload could not become a notification.
type DecodeErrorKind int

const (
	MalformedJSON DecodeErrorKind = iota + 1
	MissingDiscriminator
	MissingField
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MalformedJSON:
		return "malformed_json"
	case MissingDiscriminator:
		return "missing_discriminator"
	case MissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

type DecodeError struct {
	Kind  DecodeErrorKind
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := "itp: decode: " + e.Kind.String()
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses one JSON payload into a Notification. It has no side effects.
func Decode(raw []byte) (Notification, error) {
	obj, err := parseObject(raw, "")
	if err != nil {
		return nil, err
	}
	kind, err := obj.discriminator("notification")
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindNewNode:
		return decodeNewNode(obj)
	case KindNodeChange:
		return decodeNodeChange(obj)
	case KindRemove:
		id, err := obj.integer("node_ID")
		if err != nil {
			return nil, err
		}
		return Remove{NodeID: id}, nil
	case KindNextUnprovenNodeID:
		from, err := obj.integer("node_ID1")
		if err != nil {
			return nil, err
		}
		to, err := obj.integer("node_ID2")
		if err != nil {
			return nil, err
		}
		return NextUnprovenNodeID{From: from, To: to}, nil
	case KindInitialized:
		return Initialized{}, nil
	case KindSaved:
		return Saved{}, nil
	case KindMessage:
		msg, err := obj.object("message")
		if err != nil {
			return nil, err
		}
		body, err := decodeMessageBody(msg)
		if err != nil {
			return nil, err
		}
		return Message{Body: body}, nil
	case KindDead:
		text, err := obj.optionalString("message")
		if err != nil {
			return nil, err
		}
		return Dead{Message: text}, nil
	case KindTask:
		id, err := obj.optionalInteger("node_ID")
		if err != nil {
			return nil, err
		}
		text, err := obj.str("task")
		if err != nil {
			return nil, err
		}
		return Task{NodeID: id, Task: text}, nil
	case KindFileContents:
		name, err := obj.str("file_name")
		if err != nil {
			return nil, err
		}
		content, err := obj.optionalString("file_content")
		if err != nil {
			return nil, err
		}
		return FileContents{FileName: name, Content: content}, nil
	default:
		return Unrecognized{Name: kind, Raw: cloneRaw(raw)}, nil
	}
}

func decodeNewNode(obj object) (Notification, error) {
	var (
		n   NewNode
		err error
	)
	if n.NodeID, err = obj.integer("node_ID"); err != nil {
		return nil, err
	}
	if n.ParentID, err = obj.integer("parent_ID"); err != nil {
		return nil, err
	}
	if n.NodeType, err = obj.str("node_type"); err != nil {
		return nil, err
	}
	if n.Name, err = obj.str("name"); err != nil {
		return nil, err
	}
	if n.Detached, err = obj.optionalBool("detached"); err != nil {
		return nil, err
	}
	return n, nil
}

func decodeNodeChange(obj object) (Notification, error) {
	id, err := obj.integer("node_ID")
	if err != nil {
		return nil, err
	}
	upd, err := obj.object("update")
	if err != nil {
		return nil, err
	}
	info, err := upd.str("update_info")
	if err != nil {
		return nil, err
	}

	var u Update
	switch info {
	case "Proved":
		proved, err := upd.boolean("proved")
		if err != nil {
			return nil, err
		}
		u = ProvedUpdate{Proved: proved}
	case "Proof_status_change":
		obsolete, err := upd.boolean("obsolete")
		if err != nil {
			return nil, err
		}
		attempt, err := decodeAttempt(upd)
		if err != nil {
			return nil, err
		}
		u = ProofStatusChange{Obsolete: obsolete, Attempt: attempt, Limit: upd.raw("limit")}
	case "Name_change":
		name, err := upd.str("name")
		if err != nil {
			return nil, err
		}
		u = NameChange{Name: name}
	default:
		u = UnrecognizedUpdate{Name: info, Raw: cloneRaw(upd.source)}
	}
	return NodeChange{NodeID: id, Update: u}, nil
}

func decodeAttempt(upd object) (ProofAttempt, error) {
	raw, ok := upd.present("proof_attempt")
	if !ok {
		return ProofAttempt{}, upd.missing("proof_attempt")
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		return ProofAttempt{State: label}, nil
	}
	pa, err := parseObject(raw, upd.path("proof_attempt"))
	if err != nil {
		return ProofAttempt{}, err
	}
	state, err := pa.str("proof_attempt")
	if err != nil {
		return ProofAttempt{}, err
	}
	attempt := ProofAttempt{State: state}
	if state != AttemptDone {
		return attempt, nil
	}
	result, err := pa.object("prover_result")
	if err != nil {
		return ProofAttempt{}, err
	}
	answer, ok := result.present("pr_answer")
	if !ok {
		return ProofAttempt{}, result.missing("pr_answer")
	}
	// Answers with arguments arrive as objects; only the label matters here.
	if err := json.Unmarshal(answer, &attempt.Answer); err != nil {
		attempt.Answer = string(bytes.TrimSpace(answer))
	}
	return attempt, nil
}

func decodeMessageBody(msg object) (MessageBody, error) {
	kind, err := msg.discriminator("mess_notif")
	if err != nil {
		return nil, err
	}
	node, err := msg.optionalInteger("node_ID")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "Proof_error":
		text, err := msg.str("error")
		if err != nil {
			return nil, err
		}
		return ProofError{NodeID: node, Error: text}, nil
	case "Transf_error":
		var (
			te  = TransfError{NodeID: node, Loc: msg.raw("loc")}
			err error
		)
		if te.TrName, err = msg.str("tr_name"); err != nil {
			return nil, err
		}
		if te.FailingArg, err = msg.str("failing_arg"); err != nil {
			return nil, err
		}
		if te.Error, err = msg.str("error"); err != nil {
			return nil, err
		}
		if te.Doc, err = msg.str("doc"); err != nil {
			return nil, err
		}
		return te, nil
	case "Strat_error":
		text, err := msg.str("error")
		if err != nil {
			return nil, err
		}
		return StratError{NodeID: node, Error: text}, nil
	case "Replay_Info":
		text, err := msg.str("replay_info")
		if err != nil {
			return nil, err
		}
		return ReplayInfo{Info: text}, nil
	case "Query_Info":
		text, err := msg.str("qinfo")
		if err != nil {
			return nil, err
		}
		return QueryInfo{NodeID: node, Info: text}, nil
	case "Query_Error":
		text, err := msg.str("qerror")
		if err != nil {
			return nil, err
		}
		return QueryError{NodeID: node, Error: text}, nil
	case "Help":
		text, err := msg.str("qhelp")
		if err != nil {
			return nil, err
		}
		return Help{Text: text}, nil
	case "Information":
		text, err := msg.str("information")
		if err != nil {
			return nil, err
		}
		return Information{Text: text}, nil
	case "Task_Monitor":
		return TaskMonitor{Raw: msg.raw("monitor")}, nil
	case "Parse_Or_Type_Error":
		text, err := msg.str("error")
		if err != nil {
			return nil, err
		}
		return ParseOrTypeError{Error: text, Loc: msg.raw("loc")}, nil
	case "Error":
		text, err := msg.str("error")
		if err != nil {
			return nil, err
		}
		return GeneralError{Error: text}, nil
	case "Open_File_Error":
		text, err := msg.str("open_error")
		if err != nil {
			return nil, err
		}
		return OpenFileError{Error: text}, nil
	case "File_Saved":
		text, err := msg.str("information")
		if err != nil {
			return nil, err
		}
		return FileSaved{Text: text}, nil
	default:
		return UnrecognizedMessage{Name: kind, Raw: cloneRaw(msg.source)}, nil
	}
}

// object is a decoded JSON object with typed, path-aware field accessors.
type object struct {
	prefix string
	source []byte
	fields map[string]json.RawMessage
}

func parseObject(raw []byte, prefix string) (object, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return object{}, &DecodeError{Kind: MalformedJSON, Field: prefix, Err: err}
	}
	if fields == nil {
		return object{}, &DecodeError{Kind: MalformedJSON, Field: prefix, Err: fmt.Errorf("expected object, got null")}
	}
	return object{prefix: prefix, source: raw, fields: fields}, nil
}

func (o object) path(name string) string {
	if o.prefix == "" {
		return name
	}
	return o.prefix + "." + name
}

// present treats an explicit null like an absent key.
func (o object) present(name string) (json.RawMessage, bool) {
	raw, ok := o.fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (o object) raw(name string) json.RawMessage {
	raw, _ := o.present(name)
	return cloneRaw(raw)
}

func (o object) missing(name string) error {
	return &DecodeError{Kind: MissingField, Field: o.path(name)}
}

func (o object) discriminator(name string) (string, error) {
	raw, ok := o.present(name)
	if !ok {
		return "", &DecodeError{Kind: MissingDiscriminator, Field: o.path(name)}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &DecodeError{Kind: MalformedJSON, Field: o.path(name), Err: err}
	}
	return s, nil
}

func (o object) decode(name string, dst any) error {
	raw, ok := o.present(name)
	if !ok {
		return o.missing(name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &DecodeError{Kind: MalformedJSON, Field: o.path(name), Err: err}
	}
	return nil
}

func (o object) str(name string) (string, error) {
	var s string
	err := o.decode(name, &s)
	return s, err
}

func (o object) integer(name string) (int, error) {
	var n int
	err := o.decode(name, &n)
	return n, err
}

func (o object) boolean(name string) (bool, error) {
	var b bool
	err := o.decode(name, &b)
	return b, err
}

func (o object) object(name string) (object, error) {
	raw, ok := o.present(name)
	if !ok {
		return object{}, o.missing(name)
	}
	return parseObject(raw, o.path(name))
}

func (o object) optionalString(name string) (string, error) {
	if _, ok := o.present(name); !ok {
		return "", nil
	}
	return o.str(name)
}

func (o object) optionalInteger(name string) (int, error) {
	if _, ok := o.present(name); !ok {
		return 0, nil
	}
	return o.integer(name)
}

func (o object) optionalBool(name string) (bool, error) {
	if _, ok := o.present(name); !ok {
		return false, nil
	}
	return o.boolean(name)
}

func cloneRaw(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
