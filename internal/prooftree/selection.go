package prooftree

import "slices"

func (s *Store) Select(id int) error {
	if _, ok := s.index[id]; !ok {
		return &Error{Op: "select", NodeID: id, Err: ErrUnknownNodeID}
	}
	if !slices.Contains(s.selected, id) {
		s.selected = append(s.selected, id)
	}
	return nil
}

func (s *Store) Selected() []int {
	return slices.Clone(s.selected)
}

func (s *Store) IsSelected(id int) bool {
	return slices.Contains(s.selected, id)
}

func (s *Store) ClearSelection() {
	s.selected = s.selected[:0]
}

// JumpNextUnproven moves the selection from one node to the next unproven
// one. With a selection in place it only jumps when from, or its parent, is
// selected; with nothing selected it always jumps. It reports whether the
// selection moved.
func (s *Store) JumpNextUnproven(from, to int) (bool, error) {
	if len(s.selected) > 0 {
		row, ok := s.Get(from)
		if !ok {
			return false, &Error{Op: "jump", NodeID: from, Err: ErrUnknownNodeID}
		}
		parent := row.ParentID
		if parent == RootSlot {
			parent = from
		}
		if !s.IsSelected(from) && !s.IsSelected(parent) {
			return false, nil
		}
	}
	if _, ok := s.index[to]; !ok {
		return false, &Error{Op: "jump", NodeID: to, Err: ErrUnknownNodeID}
	}
	s.selected = append(s.selected[:0], to)
	return true, nil
}
