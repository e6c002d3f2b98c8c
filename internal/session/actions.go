package session

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"itpsession/internal/itp"
	"itpsession/internal/prooftree"
)

// Console commands with a meaning of their own. Anything else is sent to
// the server as a transformation or strategy command.
const (
	CommandSave   = "Save"
	CommandRemove = "Remove"
)

// do hands fn to the loop. It reports false once the session has ended.
func (s *Session) do(fn func(ctx context.Context)) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.actions <- fn:
		return true
	case <-s.done:
		return false
	}
}

// SubmitCommand sends a console line to the server for every selected node.
func (s *Session) SubmitCommand(line string) bool {
	command := strings.TrimSpace(line)
	return s.do(func(context.Context) { s.submit(command) })
}

// SelectNode makes id the only selected node and asks for its task.
func (s *Session) SelectNode(id int) bool {
	return s.do(func(context.Context) {
		if _, ok := s.tree.Get(id); !ok {
			s.logger.Debug("ignore selection of unknown node", "node_id", id)
			return
		}
		s.tree.ClearSelection()
		_ = s.tree.Select(id)
		s.view.SelectRow(id)
		s.enqueue(itp.GetTask{NodeID: id, DoIntros: true})
	})
}

func (s *Session) RequestTask(id int) bool {
	return s.do(func(context.Context) {
		s.enqueue(itp.GetTask{NodeID: id, DoIntros: true})
	})
}

// RequestExit asks whether to save first. Saving defers the teardown until
// the server acknowledges the save.
func (s *Session) RequestExit() bool {
	return s.do(func(ctx context.Context) {
		save, err := s.console.Confirm(ctx, msgSaveOnExit)
		if err != nil {
			s.logger.Warn("exit prompt failed", "err", err)
			return
		}
		if save {
			s.saveAndExit()
			return
		}
		s.terminate(ctx, OutcomeKilled, nil)
	})
}

func (s *Session) Kill() bool {
	return s.do(func(ctx context.Context) {
		s.terminate(ctx, OutcomeKilled, nil)
	})
}

// WithSnapshot runs fn on the loop with the current rows, so nothing the
// tree view receives can slip between the snapshot and fn.
func (s *Session) WithSnapshot(fn func(rows []prooftree.Row)) bool {
	return s.do(func(context.Context) { fn(s.tree.Snapshot()) })
}

// Snapshot returns the current rows, or the final rows once the session
// has ended.
func (s *Session) Snapshot() []prooftree.Row {
	reply := make(chan []prooftree.Row, 1)
	if s.do(func(context.Context) { reply <- s.tree.Snapshot() }) {
		select {
		case rows := <-reply:
			return rows
		case <-s.done:
		}
	}
	<-s.done
	return s.final
}

func (s *Session) offerExit(ctx context.Context) {
	if s.State() != StateRunning {
		return
	}
	yes, err := s.console.Confirm(ctx, msgAllProved)
	if err != nil {
		s.logger.Warn("exit prompt failed", "err", err)
		return
	}
	if yes {
		s.saveAndExit()
	}
}

func (s *Session) saveAndExit() {
	s.requestSave()
	s.exiting = true
	s.setState(StateAwaitingSaveAck)
}

func (s *Session) submit(command string) {
	s.write("", ModeText, true)
	if command == "" {
		return
	}
	if command == CommandSave {
		s.requestSave()
		return
	}
	selected := s.tree.Selected()
	if len(selected) == 0 {
		s.sayError("No goal selected")
		return
	}
	for _, id := range selected {
		if command == CommandRemove {
			s.enqueue(itp.RemoveSubtree{NodeID: id})
		} else {
			s.enqueue(itp.CommandReq{NodeID: id, Command: command})
		}
	}
}

// requestSave touches the source file first so the next proof run sees the
// session as changed.
func (s *Session) requestSave() {
	if s.sourceFile != "" {
		now := s.now()
		if err := os.Chtimes(s.sourceFile, now, now); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("touch source file failed", "path", s.sourceFile, "err", err)
		}
	}
	s.enqueue(itp.SaveReq{})
}
