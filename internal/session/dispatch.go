package session

import (
	"context"
	"errors"
	"fmt"

	"itpsession/internal/itp"
	"itpsession/internal/prooftree"
)

const (
	msgAllProved   = "All proved. Do you want to exit ?"
	msgSaveOnExit  = "Do you want to save session before exit?"
	msgSaved       = "Session saved"
	msgInitialized = "Initialization done"
	msgDead        = "ITP server encountered a fatal error, please report !"
)

func (s *Session) handle(ctx context.Context, n itp.Notification) {
	switch n := n.(type) {
	case itp.NewNode:
		s.onNewNode(n)
	case itp.NodeChange:
		s.onNodeChange(ctx, n)
	case itp.Remove:
		moved, err := s.tree.Remove(n.NodeID)
		if err != nil {
			s.treeError("remove", err)
			return
		}
		s.view.RemoveRow(n.NodeID)
		for _, row := range moved {
			s.view.UpdateRow(row)
		}
		s.metrics.SetTreeNodes(s.tree.Len())
	case itp.NextUnprovenNodeID:
		s.onNextUnproven(n)
	case itp.Initialized:
		s.say(msgInitialized)
	case itp.Saved:
		s.say(msgSaved)
		if s.exiting {
			s.terminate(ctx, OutcomeSaved, nil)
		}
	case itp.Message:
		s.onMessage(n.Body)
	case itp.Dead:
		s.sayError(msgDead)
		if n.Message != "" {
			s.sayError(n.Message)
		}
		s.logger.Error("proof server is dead", "message", n.Message)
		s.terminate(ctx, OutcomeDead, fmt.Errorf("%w: %s", ErrProtocolFatal, n.Message))
	case itp.Task:
		s.showTask(n.Task)
	case itp.FileContents:
		s.logger.Debug("file contents", "file", n.FileName, "bytes", len(n.Content))
	case itp.Unrecognized:
		s.logger.Debug("unrecognized notification", "kind", n.Name)
	}
}

func (s *Session) onNewNode(n itp.NewNode) {
	row, err := s.tree.Insert(n.NodeID, n.ParentID, n.Name, n.NodeType)
	if err != nil {
		s.treeError("insert", err)
		return
	}
	s.view.InsertRow(row)
	s.metrics.SetTreeNodes(s.tree.Len())
}

func (s *Session) onNodeChange(ctx context.Context, n itp.NodeChange) {
	switch u := n.Update.(type) {
	case itp.ProvedUpdate:
		status := prooftree.NotProved
		if u.Proved {
			status = prooftree.Proved
		}
		if s.updateStatus(n.NodeID, status) && u.Proved && s.tree.IsRoot(n.NodeID) && s.tree.RootsAllProved() {
			s.offerExit(ctx)
		}
	case itp.ProofStatusChange:
		s.updateStatus(n.NodeID, attemptStatus(u))
	case itp.NameChange:
		row, err := s.tree.Rename(n.NodeID, u.Name)
		if err != nil {
			s.treeError("rename", err)
		} else {
			s.view.UpdateRow(row)
		}
	case itp.UnrecognizedUpdate:
		s.logger.Debug("unrecognized node update", "node_id", n.NodeID, "update_info", u.Name)
	}
	s.enqueue(itp.GetFirstUnprovenNode{NodeID: n.NodeID})
}

func (s *Session) updateStatus(id int, status prooftree.Status) bool {
	row, err := s.tree.UpdateStatus(id, status)
	if err != nil {
		s.treeError("update", err)
		return false
	}
	s.view.UpdateRow(row)
	return true
}

// attemptStatus derives the displayed status of a proof status change.
// Obsolete wins over anything the attempt carries.
func attemptStatus(u itp.ProofStatusChange) prooftree.Status {
	if u.Obsolete {
		return prooftree.Obsolete
	}
	switch u.Attempt.State {
	case itp.AttemptDone:
		if u.Attempt.Answer == "Valid" {
			return prooftree.Valid
		}
		return prooftree.NotValid
	case itp.AttemptUninstalled:
		return prooftree.NotInstalled
	case "":
		return prooftree.Invalid
	default:
		return prooftree.Status(u.Attempt.State)
	}
}

func (s *Session) onNextUnproven(n itp.NextUnprovenNodeID) {
	moved, err := s.tree.JumpNextUnproven(n.From, n.To)
	if err != nil {
		s.logger.Debug("skip jump to next unproven node", "from", n.From, "to", n.To, "err", err)
		return
	}
	if !moved {
		return
	}
	s.view.SelectRow(n.To)
	s.enqueue(itp.GetTask{NodeID: n.To, DoIntros: true})
}

func (s *Session) showTask(text string) {
	s.task.SetReadOnly(false)
	s.task.Clear()
	if err := s.task.Insert(text); err != nil {
		s.logger.Warn("update task display failed", "err", err)
	}
	if err := s.task.Save(); err != nil {
		s.logger.Warn("save task display failed", "err", err)
	}
	s.task.SetReadOnly(true)
	s.task.ScrollToEnd()
}

func (s *Session) onMessage(body itp.MessageBody) {
	switch m := body.(type) {
	case itp.ProofError:
		s.sayError(m.Error)
	case itp.TransfError:
		if m.FailingArg == "" {
			s.write(m.Error+"\nTranformation failed: \n"+m.TrName+"\n\n", ModeError, false)
		} else {
			s.write(m.TrName+"\nTransformation failed. \nOn argument: \n"+m.FailingArg+" \n"+m.Error+"\n\n", ModeError, false)
		}
		s.say(m.Doc)
	case itp.StratError:
		s.sayError(m.Error)
	case itp.ReplayInfo:
		s.say(m.Info)
	case itp.QueryInfo:
		s.say(m.Info)
	case itp.QueryError:
		s.sayError(m.Error)
	case itp.Help:
		s.say(m.Text)
	case itp.Information:
		s.say(m.Text)
	case itp.TaskMonitor:
		s.logger.Debug("task monitor", "raw", string(m.Raw))
	case itp.ParseOrTypeError:
		s.sayError(m.Error)
	case itp.GeneralError:
		s.sayError(m.Error)
	case itp.OpenFileError:
		s.sayError(m.Error)
	case itp.FileSaved:
		s.say(m.Text)
	case itp.UnrecognizedMessage:
		s.logger.Debug("unrecognized message", "mess_notif", m.Name)
	}
}

func (s *Session) treeError(op string, err error) {
	s.metrics.TreeError(op)
	var treeErr *prooftree.Error
	if errors.As(err, &treeErr) {
		s.logger.Warn("skip notification", "op", op, "node_id", treeErr.NodeID, "err", treeErr.Err)
		return
	}
	s.logger.Warn("skip notification", "op", op, "err", err)
}

func (s *Session) say(text string) {
	s.write(text, ModeText, true)
}

func (s *Session) sayError(text string) {
	s.write(text, ModeError, true)
}

func (s *Session) write(text string, mode Mode, prompt bool) {
	if err := s.console.Write(text, mode, prompt); err != nil {
		s.logger.Warn("console write failed", "mode", string(mode), "err", err)
	}
}
