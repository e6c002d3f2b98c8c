// Package prooftree holds the goal hierarchy of one proof session. The store
// is the single source of truth; views only mirror the rows it returns.
package prooftree

import (
	"errors"
	"fmt"
	"slices"
)

// RootSlot is the parent id the server uses for "under the display root".
// It is never a valid node id.
const RootSlot = 0

var (
	ErrUnknownNodeID   = errors.New("unknown node id")
	ErrDuplicateNodeID = errors.New("duplicate node id")
)

type Error struct {
	Op     string
	NodeID int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("prooftree: %s %d: %v", e.Op, e.NodeID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Row is the externally visible state of a node. DisplayParent is the id of
// the row it is shown under, RootSlot for the top level.
type Row struct {
	ID            int
	ParentID      int
	DisplayParent int
	Name          string
	NodeType      string
	Status        Status
	Color         Color
}

type slot struct {
	row      Row
	children []int
}

// Store is an arena of nodes indexed by node id. It is not safe for
// concurrent use; the session loop owns it.
type Store struct {
	slots    []slot
	free     []int
	index    map[int]int
	topLevel []int
	roots    []int
	selected []int
}

func NewStore() *Store {
	return &Store{index: map[int]int{}}
}

func (s *Store) Len() int {
	return len(s.index)
}

func (s *Store) Insert(id, parentID int, name, nodeType string) (Row, error) {
	if _, exists := s.index[id]; exists || id == RootSlot {
		return Row{}, &Error{Op: "insert", NodeID: id, Err: ErrDuplicateNodeID}
	}
	row := Row{
		ID:       id,
		ParentID: parentID,
		Name:     name,
		NodeType: nodeType,
		Status:   Invalid,
		Color:    Invalid.Color(),
	}

	if p, ok := s.index[parentID]; ok {
		row.DisplayParent = parentID
		s.slots[p].children = append(s.slots[p].children, id)
	} else {
		// Without a real parent the node is a root. RootSlot children are
		// shown under the first top-level row, like the IDE tree did.
		if parentID == RootSlot && len(s.topLevel) > 0 {
			first := s.topLevel[0]
			row.DisplayParent = first
			fs := s.index[first]
			s.slots[fs].children = append(s.slots[fs].children, id)
		} else {
			s.topLevel = append(s.topLevel, id)
		}
		s.roots = append(s.roots, id)
	}

	s.index[id] = s.alloc(slot{row: row})
	return row, nil
}

func (s *Store) alloc(sl slot) int {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[idx] = sl
		return idx
	}
	s.slots = append(s.slots, sl)
	return len(s.slots) - 1
}

func (s *Store) UpdateStatus(id int, status Status) (Row, error) {
	idx, ok := s.index[id]
	if !ok {
		return Row{}, &Error{Op: "update", NodeID: id, Err: ErrUnknownNodeID}
	}
	s.slots[idx].row.Status = status
	s.slots[idx].row.Color = status.Color()
	return s.slots[idx].row, nil
}

func (s *Store) Rename(id int, name string) (Row, error) {
	idx, ok := s.index[id]
	if !ok {
		return Row{}, &Error{Op: "rename", NodeID: id, Err: ErrUnknownNodeID}
	}
	s.slots[idx].row.Name = name
	return s.slots[idx].row, nil
}

// Remove deletes one node. Its children are not removed: the server removes
// leaves first, and any child left behind moves to the top level. The rows
// of moved children are returned so views can follow them.
func (s *Store) Remove(id int) ([]Row, error) {
	idx, ok := s.index[id]
	if !ok {
		return nil, &Error{Op: "remove", NodeID: id, Err: ErrUnknownNodeID}
	}
	sl := s.slots[idx]

	if sl.row.DisplayParent == RootSlot {
		s.topLevel = deleteID(s.topLevel, id)
	} else if p, ok := s.index[sl.row.DisplayParent]; ok {
		s.slots[p].children = deleteID(s.slots[p].children, id)
	}
	var moved []Row
	for _, child := range sl.children {
		if c, ok := s.index[child]; ok {
			s.slots[c].row.DisplayParent = RootSlot
			s.topLevel = append(s.topLevel, child)
			moved = append(moved, s.slots[c].row)
		}
	}

	s.roots = deleteID(s.roots, id)
	s.selected = deleteID(s.selected, id)
	delete(s.index, id)
	s.slots[idx] = slot{}
	s.free = append(s.free, idx)
	return moved, nil
}

func deleteID(ids []int, id int) []int {
	return slices.DeleteFunc(ids, func(v int) bool { return v == id })
}

func (s *Store) Get(id int) (Row, bool) {
	idx, ok := s.index[id]
	if !ok {
		return Row{}, false
	}
	return s.slots[idx].row, true
}

func (s *Store) Children(id int) []int {
	idx, ok := s.index[id]
	if !ok {
		return nil
	}
	return slices.Clone(s.slots[idx].children)
}

func (s *Store) Roots() []int {
	return slices.Clone(s.roots)
}

func (s *Store) IsRoot(id int) bool {
	return slices.Contains(s.roots, id)
}

// RootsAllProved reports whether every root is Proved. No roots counts as
// proved.
func (s *Store) RootsAllProved() bool {
	for _, id := range s.roots {
		row, ok := s.Get(id)
		if !ok || row.Status != Proved {
			return false
		}
	}
	return true
}

// Snapshot returns every row in display pre-order.
func (s *Store) Snapshot() []Row {
	out := make([]Row, 0, len(s.index))
	var walk func(id int)
	walk = func(id int) {
		idx, ok := s.index[id]
		if !ok {
			return
		}
		out = append(out, s.slots[idx].row)
		for _, child := range s.slots[idx].children {
			walk(child)
		}
	}
	for _, id := range s.topLevel {
		walk(id)
	}
	return out
}
