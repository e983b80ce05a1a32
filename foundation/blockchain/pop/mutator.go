package pop

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/command"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/signature"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// Mutator trial-applies payloads on a temporary altchain block on top of the
// active tip. Payloads that apply stay applied so later payloads can depend
// on them. Close removes every trace of the trial.
type Mutator struct {
	e      *Engine
	block  *AltIndex
	hist   command.History
	ids    map[database.Hash]struct{}
	btcTip *BtcIndex
	vbkTip *VbkIndex
}

// NewMutator constructs a mutator on top of the active tip. The caller must
// call Close before any other operation on the engine.
func (e *Engine) NewMutator() (*Mutator, error) {
	tip := e.trees.Alt.Tip()

	header := database.AltBlock{
		ID: signature.Hash(struct {
			Prev    database.Hash
			Purpose string
		}{tip.Hash(), "mutator"}),
		PrevBlock: tip.Hash(),
		Number:    tip.Height() + 1,
		Time:      e.trees.Alt.MedianTimePast(tip) + 1,
	}

	idx, err := e.trees.Alt.AcceptBlockHeader(header)
	if err != nil {
		return nil, err
	}

	m := Mutator{
		e:      e,
		block:  idx,
		ids:    make(map[database.Hash]struct{}),
		btcTip: e.trees.Btc.Tip(),
		vbkTip: e.trees.Vbk.Tip(),
	}

	return &m, nil
}

// Apply trial-applies the payload. On failure the payload leaves no trace and
// the reason is returned.
func (m *Mutator) Apply(p database.Payload) error {
	id := p.ID()

	if _, exists := m.ids[id]; exists {
		return validation.Invalid("duplicate-payload", "%s %s already applied", p.Kind(), id)
	}

	for _, other := range m.e.ContainingBlocks(id) {
		if other.IsAncestorOf(m.block) {
			return validation.Invalid("payload-duplicate", "%s %s already included in %s", p.Kind(), id, other)
		}
	}

	if err := m.hist.Exec(m.e.group(p, m.block.Hash()), &m.e.trees); err != nil {
		m.hist.Undo(&m.e.trees)
		return err
	}

	m.ids[id] = struct{}{}

	return nil
}

// Applied returns the number of payloads currently applied.
func (m *Mutator) Applied() int {
	return m.hist.Applied()
}

// Close reverses every applied payload and removes the temporary block.
func (m *Mutator) Close() {
	m.hist.UndoAll(&m.e.trees)
	m.e.trees.Alt.RemoveLeaf(m.block)
	m.e.restoreProtecting(m.btcTip, m.vbkTip)
}
