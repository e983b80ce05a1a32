package command

import (
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// Group is the ordered set of commands derived from one payload. Either all
// of its commands are applied or none are.
type Group struct {
	ID       database.Hash
	Kind     database.PayloadKind
	Commands []Command

	executed int
}

// NewGroup constructs a group for the payload with the specified id.
func NewGroup(id database.Hash, kind database.PayloadKind, cmds ...Command) *Group {
	return &Group{
		ID:       id,
		Kind:     kind,
		Commands: cmds,
	}
}

// Add appends commands to the group.
func (g *Group) Add(cmds ...Command) {
	g.Commands = append(g.Commands, cmds...)
}

// Executed returns the number of commands currently applied.
func (g *Group) Executed() int {
	return g.executed
}

// Execute applies the commands in order and stops at the first failure. The
// commands applied before the failure stay applied until Unexecute is called.
func (g *Group) Execute(trees *Trees) error {
	validation.Assert(g.executed == 0, "group %s executed twice", g.ID)

	for _, cmd := range g.Commands {
		if err := cmd.Execute(trees); err != nil {
			return validation.Wrap(err, fmt.Sprintf("%s-bad-command", g.Kind))
		}
		g.executed++
	}

	return nil
}

// Unexecute reverses the applied commands in reverse order.
func (g *Group) Unexecute(trees *Trees) {
	for ; g.executed > 0; g.executed-- {
		g.Commands[g.executed-1].Unexecute(trees)
	}
}

// String returns a short description of the group.
func (g *Group) String() string {
	return fmt.Sprintf("%s[%s] cmds[%d] executed[%d]", g.Kind, g.ID.TerminalString(), len(g.Commands), g.executed)
}
