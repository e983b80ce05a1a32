package command_test

import (
	"testing"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/command"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/pop/poptest"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fixture struct {
	trees *command.Trees
	vbk   []database.VbkBlock
	btc   []database.BtcBlock
	vtb   database.VTB
}

func newFixture(t *testing.T) *fixture {
	gen := genesis.Regtest()

	b, err := poptest.New(gen)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the builder: %v", failed, err)
	}

	btc, err := blocktree.New(blocktree.Config[database.BtcBlock]{Params: gen.Btc, Now: b.Clock()})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the btc tree: %v", failed, err)
	}

	vbk, err := blocktree.New(blocktree.Config[database.VbkBlock]{Params: gen.Vbk, Now: b.Clock()})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the vbk tree: %v", failed, err)
	}

	f := fixture{
		trees: &command.Trees{Btc: btc, Vbk: vbk},
		vbk:   b.MineVbk(gen.Vbk.Genesis, 3),
		btc:   b.MineBtc(gen.Btc.Genesis, 2),
	}
	f.vtb = b.VTB(f.vbk[0], f.vbk[1], f.btc[1], f.btc[:1])

	return &f
}

// group returns the commands a VTB carried in the second block expands to.
func (f *fixture) group() *command.Group {
	return command.NewGroup(f.vtb.ID(), database.KindVTB,
		command.AddBtcBlock(f.btc[0]),
		command.AddBtcBlock(f.btc[1]),
		command.AddVbkBlock(f.vbk[0]),
		command.AddVbkBlock(f.vbk[1]),
		command.AddVbkEndorsement(f.vtb.Endorsement(), 100),
	)
}

// =============================================================================

func TestGroup(t *testing.T) {
	t.Log("Given the need to apply the commands of a payload as one unit.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen executing and reversing a group.", testID)
		{
			f := newFixture(t)
			g := f.group()

			if err := g.Execute(f.trees); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to execute the group: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to execute the group.", success, testID)

			endorsed := f.trees.Vbk.Get(f.vbk[0].Hash())
			if endorsed == nil || len(endorsed.Pop.EndorsedBy()) != 1 || f.trees.Btc.Len() != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould record the blocks and the endorsement.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould record the blocks and the endorsement.", success, testID)

			g.Unexecute(f.trees)

			if f.trees.Vbk.Len() != 1 || f.trees.Btc.Len() != 1 || g.Executed() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould remove every trace of the group: vbk[%d] btc[%d]", failed, testID, f.trees.Vbk.Len(), f.trees.Btc.Len())
			}
			t.Logf("\t%s\tTest %d:\tShould remove every trace of the group.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a command of the group fails.", testID)
		{
			f := newFixture(t)
			g := command.NewGroup(f.vtb.ID(), database.KindVTB,
				command.AddVbkBlock(f.vbk[0]),
				command.AddVbkBlock(f.vbk[2]),
			)

			err := g.Execute(f.trees)
			if !validation.HasCode(err, "vtb-bad-command") || !validation.HasCode(err, "VBK-bad-prev-block") {
				t.Fatalf("\t%s\tTest %d:\tShould report the failing command: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the failing command: %v", success, testID, err)

			if g.Executed() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the commands applied before the failure: got %d", failed, testID, g.Executed())
			}

			g.Unexecute(f.trees)
			if f.trees.Vbk.Len() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould reverse the partial group.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reverse the partial group.", success, testID)
		}
	}
}

func TestHistory(t *testing.T) {
	t.Log("Given the need to undo and redo the groups of a block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen moving groups between the stacks.", testID)
		{
			f := newFixture(t)

			var h command.History
			if err := h.Exec(f.group(), f.trees); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to execute the group: %v", failed, testID, err)
			}

			dup := command.NewGroup(database.Hash{0x1}, database.KindVbkBlock, command.AddVbkBlock(f.vbk[2]), command.AddVbkBlock(f.vbk[2]))
			if err := h.Exec(dup, f.trees); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to execute the second group: %v", failed, testID, err)
			}

			if h.Applied() != 2 || f.trees.Vbk.Len() != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould apply both groups.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould apply both groups.", success, testID)

			h.UndoAll(f.trees)
			if h.Applied() != 0 || h.Undone() != 2 || f.trees.Vbk.Len() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould undo both groups: vbk[%d]", failed, testID, f.trees.Vbk.Len())
			}
			t.Logf("\t%s\tTest %d:\tShould undo both groups.", success, testID)

			if err := h.RedoAll(f.trees); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to redo the groups: %v", failed, testID, err)
			}

			groups := h.Groups()
			if len(groups) != 2 || groups[0].ID != f.vtb.ID() || f.trees.Vbk.Len() != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould redo the groups in the original order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould redo the groups in the original order.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a failing group is executed.", testID)
		{
			f := newFixture(t)

			var h command.History
			g := command.NewGroup(f.vtb.ID(), database.KindVTB, command.AddVbkBlock(f.vbk[0]), command.AddVbkBlock(f.vbk[2]))

			if err := h.Exec(g, f.trees); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail.", failed, testID)
			}

			if h.Applied() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the failing group on the applied stack.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the failing group on the applied stack.", success, testID)

			h.Undo(f.trees)
			if f.trees.Vbk.Len() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould reverse the failing group through the same undo path.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reverse the failing group through the same undo path.", success, testID)
		}
	}
}

func TestUnexecuteCorruption(t *testing.T) {
	t.Log("Given the need to detect a history that does not match the trees.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen reversing a command that never executed.", testID)
		{
			f := newFixture(t)

			unexecute := func() (err error) {
				defer validation.Recover(&err)
				command.AddVbkBlock(f.vbk[0]).Unexecute(f.trees)
				return nil
			}

			if err := unexecute(); !validation.IsCorruption(err) {
				t.Fatalf("\t%s\tTest %d:\tShould report corruption: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report corruption.", success, testID)
		}
	}
}
