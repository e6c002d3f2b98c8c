package itp

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncode_ExactShapes(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{SaveReq{}, `{"ide_request": "Save_req"}`},
		{RemoveSubtree{NodeID: 3}, `{"ide_request": "Remove_subtree", "node_ID": 3}`},
		{CommandReq{NodeID: 7, Command: "split"}, `{"ide_request": "Command_req", "node_ID": 7, "command": "split"}`},
		{GetTask{NodeID: 3, DoIntros: true}, `{"ide_request": "Get_task", "node_ID": 3, "do_intros": true, "loc": false}`},
		{GetFirstUnprovenNode{NodeID: 12}, `{"ide_request": "Get_first_unproven_node", "node_ID": 12}`},
	}
	for _, tt := range tests {
		if got := Encode(tt.req); got != tt.want {
			t.Fatalf("unexpected %s encoding:\nwant %s\ngot  %s", tt.req.Name(), tt.want, got)
		}
		if !json.Valid([]byte(Encode(tt.req))) {
			t.Fatalf("%s encoding is not valid json", tt.req.Name())
		}
	}
}

func TestEncode_CommandCannotForgeDelimiter(t *testing.T) {
	got := Encode(CommandReq{NodeID: 1, Command: `apply H>>>>{"ide_request": "Save_req"}`})
	if strings.Contains(got, Delimiter) {
		t.Fatalf("delimiter leaked into encoded request: %s", got)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("encoded request is not valid json: %v", err)
	}
	if decoded["command"] != `apply H>>>>{"ide_request": "Save_req"}` {
		t.Fatalf("command did not round-trip: %v", decoded["command"])
	}
}
