package itp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode_Notifications(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Notification
	}{
		{
			name: "new node",
			raw:  `{"notification":"New_node","node_ID":1,"parent_ID":0,"node_type":"goal","name":"G1","detached":false}`,
			want: NewNode{NodeID: 1, ParentID: 0, NodeType: "goal", Name: "G1"},
		},
		{
			name: "proved",
			raw:  `{"notification":"Node_change","node_ID":1,"update":{"update_info":"Proved","proved":true}}`,
			want: NodeChange{NodeID: 1, Update: ProvedUpdate{Proved: true}},
		},
		{
			name: "status change done",
			raw: `{"notification":"Node_change","node_ID":4,"update":{"update_info":"Proof_status_change",
				"proof_attempt":{"proof_attempt":"Done","prover_result":{"pr_answer":"Valid","pr_time":0.1}},
				"obsolete":false,"limit":{"limit_time":5}}}`,
			want: NodeChange{NodeID: 4, Update: ProofStatusChange{
				Attempt: ProofAttempt{State: AttemptDone, Answer: "Valid"},
				Limit:   json.RawMessage(`{"limit_time":5}`),
			}},
		},
		{
			name: "status change bare label",
			raw:  `{"notification":"Node_change","node_ID":4,"update":{"update_info":"Proof_status_change","proof_attempt":"Running","obsolete":false}}`,
			want: NodeChange{NodeID: 4, Update: ProofStatusChange{Attempt: ProofAttempt{State: "Running"}}},
		},
		{
			name: "status change object answer",
			raw: `{"notification":"Node_change","node_ID":4,"update":{"update_info":"Proof_status_change",
				"proof_attempt":{"proof_attempt":"Done","prover_result":{"pr_answer":{"Unknown":"x"}}},"obsolete":true}}`,
			want: NodeChange{NodeID: 4, Update: ProofStatusChange{
				Obsolete: true,
				Attempt:  ProofAttempt{State: AttemptDone, Answer: `{"Unknown":"x"}`},
			}},
		},
		{
			name: "name change",
			raw:  `{"notification":"Node_change","node_ID":2,"update":{"update_info":"Name_change","name":"G2'"}}`,
			want: NodeChange{NodeID: 2, Update: NameChange{Name: "G2'"}},
		},
		{
			name: "unknown update",
			raw:  `{"notification":"Node_change","node_ID":2,"update":{"update_info":"Future"}}`,
			want: NodeChange{NodeID: 2, Update: UnrecognizedUpdate{Name: "Future", Raw: json.RawMessage(`{"update_info":"Future"}`)}},
		},
		{
			name: "remove",
			raw:  `{"notification":"Remove","node_ID":9}`,
			want: Remove{NodeID: 9},
		},
		{
			name: "next unproven",
			raw:  `{"notification":"Next_Unproven_Node_Id","node_ID1":3,"node_ID2":5}`,
			want: NextUnprovenNodeID{From: 3, To: 5},
		},
		{
			name: "initialized",
			raw:  `{"notification":"Initialized","infos":{}}`,
			want: Initialized{},
		},
		{
			name: "saved",
			raw:  `{"notification":"Saved"}`,
			want: Saved{},
		},
		{
			name: "dead",
			raw:  `{"notification":"Dead","message":"boom"}`,
			want: Dead{Message: "boom"},
		},
		{
			name: "task",
			raw:  `{"notification":"Task","node_ID":3,"task":"goal G : true","loc":[]}`,
			want: Task{NodeID: 3, Task: "goal G : true"},
		},
		{
			name: "file contents",
			raw:  `{"notification":"File_contents","file_name":"a.mlw","file_content":"module M end"}`,
			want: FileContents{FileName: "a.mlw", Content: "module M end"},
		},
		{
			name: "unknown notification",
			raw:  `{"notification":"Ident_notif_loc","loc":[]}`,
			want: Unrecognized{Name: "Ident_notif_loc", Raw: json.RawMessage(`{"notification":"Ident_notif_loc","loc":[]}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected notification (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Messages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageBody
	}{
		{"proof error", `{"mess_notif":"Proof_error","node_ID":2,"error":"bad"}`, ProofError{NodeID: 2, Error: "bad"}},
		{"transf error", `{"mess_notif":"Transf_error","node_ID":2,"tr_name":"split","failing_arg":"","loc":null,"error":"e","doc":"d"}`,
			TransfError{NodeID: 2, TrName: "split", Error: "e", Doc: "d"}},
		{"strat error", `{"mess_notif":"Strat_error","node_ID":1,"error":"s"}`, StratError{NodeID: 1, Error: "s"}},
		{"replay", `{"mess_notif":"Replay_Info","replay_info":"r"}`, ReplayInfo{Info: "r"}},
		{"query info", `{"mess_notif":"Query_Info","node_ID":1,"qinfo":"q"}`, QueryInfo{NodeID: 1, Info: "q"}},
		{"query error", `{"mess_notif":"Query_Error","node_ID":1,"qerror":"q"}`, QueryError{NodeID: 1, Error: "q"}},
		{"help", `{"mess_notif":"Help","qhelp":"h"}`, Help{Text: "h"}},
		{"information", `{"mess_notif":"Information","information":"i"}`, Information{Text: "i"}},
		{"task monitor", `{"mess_notif":"Task_Monitor","monitor":[0,1,2]}`, TaskMonitor{Raw: json.RawMessage(`[0,1,2]`)}},
		{"parse error", `{"mess_notif":"Parse_Or_Type_Error","loc":[1],"error":"p"}`, ParseOrTypeError{Error: "p", Loc: json.RawMessage(`[1]`)}},
		{"error", `{"mess_notif":"Error","error":"x"}`, GeneralError{Error: "x"}},
		{"open file", `{"mess_notif":"Open_File_Error","open_error":"o"}`, OpenFileError{Error: "o"}},
		{"file saved", `{"mess_notif":"File_Saved","information":"saved"}`, FileSaved{Text: "saved"}},
		{"unknown", `{"mess_notif":"Later"}`, UnrecognizedMessage{Name: "Later", Raw: json.RawMessage(`{"mess_notif":"Later"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(`{"notification":"Message","message":` + tt.raw + `}`))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			msg, ok := got.(Message)
			if !ok {
				t.Fatalf("expected Message, got %T", got)
			}
			if diff := cmp.Diff(tt.want, msg.Body); diff != "" {
				t.Fatalf("unexpected body (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  DecodeErrorKind
		field string
	}{
		{"syntax", `{"notification":`, MalformedJSON, ""},
		{"not an object", `[1,2]`, MalformedJSON, ""},
		{"no discriminator", `{"node_ID":1}`, MissingDiscriminator, "notification"},
		{"null discriminator", `{"notification":null}`, MissingDiscriminator, "notification"},
		{"missing node id", `{"notification":"Remove"}`, MissingField, "node_ID"},
		{"string node id", `{"notification":"Remove","node_ID":"1"}`, MalformedJSON, "node_ID"},
		{"missing update info", `{"notification":"Node_change","node_ID":1,"update":{}}`, MissingField, "update.update_info"},
		{"missing proved flag", `{"notification":"Node_change","node_ID":1,"update":{"update_info":"Proved"}}`, MissingField, "update.proved"},
		{"missing answer", `{"notification":"Node_change","node_ID":1,"update":{"update_info":"Proof_status_change","obsolete":false,
			"proof_attempt":{"proof_attempt":"Done","prover_result":{}}}}`, MissingField, "update.proof_attempt.prover_result.pr_answer"},
		{"missing message kind", `{"notification":"Message","message":{"error":"x"}}`, MissingDiscriminator, "message.mess_notif"},
		{"missing message field", `{"notification":"Message","message":{"mess_notif":"Help"}}`, MissingField, "message.qhelp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if de.Kind != tt.kind {
				t.Fatalf("unexpected kind: want %s got %s (%v)", tt.kind, de.Kind, err)
			}
			if de.Field != tt.field {
				t.Fatalf("unexpected field: want %q got %q", tt.field, de.Field)
			}
		})
	}
}
