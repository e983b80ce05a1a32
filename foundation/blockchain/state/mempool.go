package state

import (
	"context"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/mempool"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// SubmitPayload validates a payload and places it in the mempool. Submitting
// a payload that is already pending reports it as valid without adding it
// again. The returned error is only set when the payload could not be
// checked.
func (s *State) SubmitPayload(ctx context.Context, p database.Payload) (mempool.SubmitResult, error) {
	res := mempool.SubmitResult{
		ID:   p.ID(),
		Kind: p.Kind(),
	}

	if err := s.checkStateless(ctx, []database.Payload{p}); err != nil {
		if !validation.IsInvalid(err) {
			return res, err
		}
		res.Status = mempool.StatusFailedStateless
		res.Reason = err.Error()
		return res, nil
	}

	err := s.write("SubmitPayload", func() error {
		if s.mempool.Contains(res.ID) {
			return nil
		}

		if err := s.checkStateful(p); err != nil {
			res.Status = mempool.StatusFailedStateful
			res.Reason = err.Error()
			return nil
		}

		res.Added = s.mempool.Add(p)
		return nil
	})

	if err == nil {
		s.evHandler("state: SubmitPayload: %s[%s] status[%s] added[%t]", res.Kind, res.ID, res.Status, res.Added)
	}

	return res, err
}

// GeneratePopData builds the PopData for the next altchain block on top of
// the active tip. Every candidate is trial-applied so only payloads that
// apply together are returned.
func (s *State) GeneratePopData() (database.PopData, error) {
	var pd database.PopData

	err := s.write("GeneratePopData", func() error {
		m, err := s.engine.NewMutator()
		if err != nil {
			return err
		}
		defer m.Close()

		accept := func(p database.Payload) bool {
			if err := m.Apply(p); err != nil {
				s.evHandler("state: GeneratePopData: skip %s[%s]: %s", p.Kind(), p.ID(), err)
				return false
			}
			return true
		}

		cc := mempool.NewCountingContext(s.genesis.Alt)
		pd = s.mempool.GeneratePopData(cc, accept)

		s.evHandler("state: GeneratePopData: vbk[%d] vtb[%d] atv[%d] size[%d]", len(pd.Context), len(pd.VTBs), len(pd.ATVs), cc.Size())

		return nil
	})

	return pd, err
}

// RemoveFromMempool removes the payloads of the PopData from the mempool.
func (s *State) RemoveFromMempool(pd database.PopData) int {
	return s.mempool.RemoveAll(pd)
}

// QueryMempool returns a copy of the mempool buckets.
func (s *State) QueryMempool() []mempool.Relations {
	return s.mempool.Relations()
}

// QueryMempoolLength returns the current number of pending payloads.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryMempoolPayload returns the pending payload with the specified id.
func (s *State) QueryMempoolPayload(id database.Hash) (database.Payload, bool) {
	return s.mempool.Get(id)
}

// =============================================================================

// checkStateful checks the payload against the active chain. The caller must
// hold the write lock.
func (s *State) checkStateful(p database.Payload) error {
	if s.engine.IsIncluded(p.ID()) {
		return validation.Invalid("payload-included", "%s %s is already included in the active chain", p.Kind(), p.ID())
	}

	switch v := p.(type) {
	case database.VbkBlock:
		if idx := s.engine.Vbk().Get(v.Hash()); idx != nil && idx.Status().KnownInvalid() {
			return validation.Invalid("vbk-invalid", "block %s is known invalid", idx)
		}

	case database.VTB:
		if idx := s.engine.Vbk().Get(v.ContainingBlock.Hash()); idx != nil && idx.Pop.ContainsEndorsement(v.ID()) {
			return validation.Invalid("vtb-duplicate", "vtb %s is already contained in %s", v.ID(), idx)
		}

	case database.ATV:
		if err := s.checkSettlement(v); err != nil {
			return err
		}
	}

	return nil
}

// checkSettlement reports whether the ATV can still be included in the next
// block of the active chain.
func (s *State) checkSettlement(a database.ATV) error {
	alt := s.engine.Alt()

	endorsed := alt.Get(a.EndorsedBlock.ID)
	if endorsed == nil {
		return validation.Invalid("atv-unknown-endorsed", "endorsed block %s is unknown", a.EndorsedBlock.ID)
	}

	next := alt.Tip().Height() + 1
	if next-endorsed.Height() > s.genesis.Alt.SettlementInterval() {
		return validation.Invalid("atv-expired", "endorsed block %s is too old for height %d", endorsed, next)
	}

	return nil
}

// cleanUpMempool drops the payloads that can no longer be included on top of
// the active tip. The caller must hold the write lock.
func (s *State) cleanUpMempool() {
	keep := func(p database.Payload) bool {
		if s.engine.IsIncluded(p.ID()) {
			return false
		}

		if a, ok := p.(database.ATV); ok {
			if endorsed := s.engine.Alt().Get(a.EndorsedBlock.ID); endorsed != nil {
				next := s.engine.Alt().Tip().Height() + 1
				return next-endorsed.Height() <= s.genesis.Alt.SettlementInterval()
			}
		}

		return true
	}

	if n := s.mempool.CleanUp(keep); n > 0 {
		s.evHandler("state: cleanUpMempool: removed[%d] remaining[%d]", n, s.mempool.Count())
	}
}
