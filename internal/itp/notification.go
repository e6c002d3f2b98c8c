package itp

import "encoding/json"

// Notification discriminators, as sent by the server.
const (
	KindNewNode            = "New_node"
	KindNodeChange         = "Node_change"
	KindRemove             = "Remove"
	KindNextUnprovenNodeID = "Next_Unproven_Node_Id"
	KindInitialized        = "Initialized"
	KindSaved              = "Saved"
	KindMessage            = "Message"
	KindDead               = "Dead"
	KindTask               = "Task"
	KindFileContents       = "File_contents"
)

// Notification is one decoded server event. The set of implementations is
// closed; anything the decoder does not know becomes Unrecognized.
type Notification interface {
	Kind() string
	isNotification()
}

type NewNode struct {
	NodeID   int
	ParentID int
	NodeType string
	Name     string
	Detached bool
}

type NodeChange struct {
	NodeID int
	Update Update
}

type Remove struct {
	NodeID int
}

type NextUnprovenNodeID struct {
	From int
	To   int
}

type Initialized struct{}

type Saved struct{}

type Message struct {
	Body MessageBody
}

type Dead struct {
	Message string
}

type Task struct {
	NodeID int
	Task   string
}

type FileContents struct {
	FileName string
	Content  string
}

// Unrecognized carries a notification whose discriminator is unknown.
type Unrecognized struct {
	Name string
	Raw  json.RawMessage
}

func (NewNode) Kind() string            { return KindNewNode }
func (NodeChange) Kind() string         { return KindNodeChange }
func (Remove) Kind() string             { return KindRemove }
func (NextUnprovenNodeID) Kind() string { return KindNextUnprovenNodeID }
func (Initialized) Kind() string        { return KindInitialized }
func (Saved) Kind() string              { return KindSaved }
func (Message) Kind() string            { return KindMessage }
func (Dead) Kind() string               { return KindDead }
func (Task) Kind() string               { return KindTask }
func (FileContents) Kind() string       { return KindFileContents }
func (u Unrecognized) Kind() string     { return u.Name }

func (NewNode) isNotification()            {}
func (NodeChange) isNotification()         {}
func (Remove) isNotification()             {}
func (NextUnprovenNodeID) isNotification() {}
func (Initialized) isNotification()        {}
func (Saved) isNotification()              {}
func (Message) isNotification()            {}
func (Dead) isNotification()               {}
func (Task) isNotification()               {}
func (FileContents) isNotification()       {}
func (Unrecognized) isNotification()       {}

// Update is the payload of a Node_change, selected by update_info.
type Update interface {
	Info() string
	isUpdate()
}

type ProvedUpdate struct {
	Proved bool
}

type ProofStatusChange struct {
	Obsolete bool
	Attempt  ProofAttempt
	Limit    json.RawMessage
}

type NameChange struct {
	Name string
}

type UnrecognizedUpdate struct {
	Name string
	Raw  json.RawMessage
}

func (ProvedUpdate) Info() string         { return "Proved" }
func (ProofStatusChange) Info() string    { return "Proof_status_change" }
func (NameChange) Info() string           { return "Name_change" }
func (u UnrecognizedUpdate) Info() string { return u.Name }

func (ProvedUpdate) isUpdate()       {}
func (ProofStatusChange) isUpdate()  {}
func (NameChange) isUpdate()         {}
func (UnrecognizedUpdate) isUpdate() {}

// Proof attempt states with a meaning for status derivation.
const (
	AttemptDone        = "Done"
	AttemptUninstalled = "Uninstalled"
)

// ProofAttempt is either a bare state label ("Scheduled", "Running", ...) or
// a finished attempt with a prover answer.
type ProofAttempt struct {
	State  string
	Answer string
}

// MessageBody is the payload of a Message notification, selected by mess_notif.
type MessageBody interface {
	MessageKind() string
}

type ProofError struct {
	NodeID int
	Error  string
}

type TransfError struct {
	NodeID     int
	TrName     string
	FailingArg string
	Error      string
	Doc        string
	Loc        json.RawMessage
}

type StratError struct {
	NodeID int
	Error  string
}

type ReplayInfo struct {
	Info string
}

type QueryInfo struct {
	NodeID int
	Info   string
}

type QueryError struct {
	NodeID int
	Error  string
}

type Help struct {
	Text string
}

type Information struct {
	Text string
}

type TaskMonitor struct {
	Raw json.RawMessage
}

type ParseOrTypeError struct {
	Error string
	Loc   json.RawMessage
}

type GeneralError struct {
	Error string
}

type OpenFileError struct {
	Error string
}

type FileSaved struct {
	Text string
}

type UnrecognizedMessage struct {
	Name string
	Raw  json.RawMessage
}

func (ProofError) MessageKind() string            { return "Proof_error" }
func (TransfError) MessageKind() string           { return "Transf_error" }
func (StratError) MessageKind() string            { return "Strat_error" }
func (ReplayInfo) MessageKind() string            { return "Replay_Info" }
func (QueryInfo) MessageKind() string             { return "Query_Info" }
func (QueryError) MessageKind() string            { return "Query_Error" }
func (Help) MessageKind() string                  { return "Help" }
func (Information) MessageKind() string           { return "Information" }
func (TaskMonitor) MessageKind() string           { return "Task_Monitor" }
func (ParseOrTypeError) MessageKind() string      { return "Parse_Or_Type_Error" }
func (GeneralError) MessageKind() string          { return "Error" }
func (OpenFileError) MessageKind() string         { return "Open_File_Error" }
func (FileSaved) MessageKind() string             { return "File_Saved" }
func (m UnrecognizedMessage) MessageKind() string { return m.Name }
