package prooftree

// Status is the proof status shown for a node. Besides the named values, a
// status may carry the raw label of an unfinished proof attempt.
type Status string

const (
	Proved       Status = "Proved"
	Invalid      Status = "Invalid"
	NotProved    Status = "Not Proved"
	Obsolete     Status = "Obsolete"
	Valid        Status = "Valid"
	NotValid     Status = "Not Valid"
	NotInstalled Status = "Not Installed"
)

type Color string

const (
	Green Color = "green"
	Red   Color = "red"
)

// Color derives the row background from the status.
func (s Status) Color() Color {
	switch s {
	case Proved, Valid:
		return Green
	default:
		return Red
	}
}
