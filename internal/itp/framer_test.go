package itp

import (
	"errors"
	"slices"
	"testing"
)

func TestFramer_TwoDeliveriesYieldTwoUnits(t *testing.T) {
	f := NewFramer()
	units := slices.Collect(f.Push("abc" + Delimiter))
	units = append(units, slices.Collect(f.Push(`{"x":1}`+Delimiter))...)

	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %q", len(units), units)
	}
	if _, err := ExtractJSON(units[0]); err == nil {
		t.Fatal("expected first unit to be rejected")
	} else {
		var fe *FrameError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FrameError, got %T", err)
		}
	}
	got, err := ExtractJSON(units[1])
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != `{"x":1}` {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestFramer_BuffersIncompleteTail(t *testing.T) {
	f := NewFramer()
	if units := slices.Collect(f.Push(`{"a":1}>>`)); len(units) != 0 {
		t.Fatalf("expected no complete unit, got %q", units)
	}
	if f.Pending() != len(`{"a":1}>>`) {
		t.Fatalf("unexpected pending length: %d", f.Pending())
	}
	units := slices.Collect(f.Push(`>>{"b":2}>>>>{"c"`))
	want := []string{`{"a":1}`, `{"b":2}`}
	if !slices.Equal(units, want) {
		t.Fatalf("unexpected units: %q", units)
	}
	if f.Pending() != len(`{"c"`) {
		t.Fatalf("unexpected pending length: %d", f.Pending())
	}
}

func TestFramer_StopEarlyKeepsRemainingUnits(t *testing.T) {
	f := NewFramer()
	for unit := range f.Push("one" + Delimiter + "two" + Delimiter) {
		if unit != "one" {
			t.Fatalf("unexpected first unit: %q", unit)
		}
		break
	}
	units := slices.Collect(f.Push(""))
	if !slices.Equal(units, []string{"two"}) {
		t.Fatalf("expected remaining unit, got %q", units)
	}
}

func TestFramer_Reset(t *testing.T) {
	f := NewFramer()
	_ = slices.Collect(f.Push("partial"))
	f.Reset()
	if f.Pending() != 0 {
		t.Fatalf("expected empty buffer after reset, got %d", f.Pending())
	}
}

func TestExtractJSON_DropsDiagnosticPrefix(t *testing.T) {
	got, err := ExtractJSON("Warning: prover foo not found\n{\"notification\":\"Saved\"}")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != `{"notification":"Saved"}` {
		t.Fatalf("unexpected payload: %q", got)
	}
}
