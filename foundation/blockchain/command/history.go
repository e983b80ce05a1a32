package command

// History is the undo log of the groups applied for one altchain block.
// Groups are pushed onto the applied stack before they execute so a group
// that fails halfway is reversed by the same undo path as a successful one.
type History struct {
	applied []*Group
	undone  []*Group
}

// Exec pushes the group onto the applied stack and executes it. On failure
// the group stays on the stack with the commands that did apply.
func (h *History) Exec(g *Group, trees *Trees) error {
	h.applied = append(h.applied, g)
	h.undone = nil

	return g.Execute(trees)
}

// Undo reverses the last applied group and moves it to the undone stack. It
// returns false when nothing is applied.
func (h *History) Undo(trees *Trees) bool {
	n := len(h.applied)
	if n == 0 {
		return false
	}

	g := h.applied[n-1]
	h.applied = h.applied[:n-1]

	g.Unexecute(trees)
	h.undone = append(h.undone, g)

	return true
}

// UndoAll reverses every applied group.
func (h *History) UndoAll(trees *Trees) {
	for h.Undo(trees) {
	}
}

// Redo executes the last undone group again and moves it back to the applied
// stack. It returns false when nothing is undone.
func (h *History) Redo(trees *Trees) (bool, error) {
	n := len(h.undone)
	if n == 0 {
		return false, nil
	}

	g := h.undone[n-1]
	h.undone = h.undone[:n-1]
	h.applied = append(h.applied, g)

	if err := g.Execute(trees); err != nil {
		return true, err
	}

	return true, nil
}

// RedoAll executes every undone group again in the original order.
func (h *History) RedoAll(trees *Trees) error {
	for {
		ok, err := h.Redo(trees)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// Applied returns the number of groups on the applied stack.
func (h *History) Applied() int {
	return len(h.applied)
}

// Undone returns the number of groups on the undone stack.
func (h *History) Undone() int {
	return len(h.undone)
}

// Groups returns the applied groups in application order.
func (h *History) Groups() []*Group {
	groups := make([]*Group, len(h.applied))
	copy(groups, h.applied)
	return groups
}
