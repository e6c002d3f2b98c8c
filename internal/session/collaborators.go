package session

import (
	"context"
	"time"

	"itpsession/internal/prooftree"
)

type Mode string

const (
	ModeText  Mode = "text"
	ModeError Mode = "error"
)

// Console is the interactive text console of a session. Write ends the text
// with "\n> " when prompt is set and with "\n" otherwise.
type Console interface {
	Write(text string, mode Mode, prompt bool) error
	Confirm(ctx context.Context, question string) (bool, error)
	Close() error
}

// TaskDisplay shows the task of the focused goal. Insert fails while the
// display is read-only.
type TaskDisplay interface {
	SetReadOnly(readOnly bool)
	Clear()
	Insert(text string) error
	Save() error
	ScrollToEnd()
	Close() error
}

// TreeView mirrors the rows of the proof tree. SelectRow replaces the
// current selection.
type TreeView interface {
	InsertRow(row prooftree.Row)
	UpdateRow(row prooftree.Row)
	RemoveRow(id int)
	SelectRow(id int)
	Close() error
}

// Process is the running proof server. Output is closed before Done
// delivers the exit result.
type Process interface {
	Send(data string) error
	Output() <-chan string
	Done() <-chan error
	Kill() error
}

type Info struct {
	ID         string
	SourceFile string
	Command    string
	StartedAt  time.Time
}

// Recorder keeps the history of sessions.
type Recorder interface {
	Begin(ctx context.Context, info Info) error
	Finish(ctx context.Context, id string, outcome Outcome, rows []prooftree.Row) error
}

type nopConsole struct{}

func (nopConsole) Write(string, Mode, bool) error                { return nil }
func (nopConsole) Confirm(context.Context, string) (bool, error) { return false, nil }
func (nopConsole) Close() error                                  { return nil }

type nopTask struct{}

func (nopTask) SetReadOnly(bool)    {}
func (nopTask) Clear()              {}
func (nopTask) Insert(string) error { return nil }
func (nopTask) Save() error         { return nil }
func (nopTask) ScrollToEnd()        {}
func (nopTask) Close() error        { return nil }

type nopView struct{}

func (nopView) InsertRow(prooftree.Row) {}
func (nopView) UpdateRow(prooftree.Row) {}
func (nopView) RemoveRow(int)           {}
func (nopView) SelectRow(int)           {}
func (nopView) Close() error            { return nil }
