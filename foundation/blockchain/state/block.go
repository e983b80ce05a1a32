package state

import (
	"context"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/pop"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/worker"
)

// AcceptBlockHeader validates and links an altchain header. The active tip
// does not change.
func (s *State) AcceptBlockHeader(header database.AltBlock) (BlockInfo, error) {
	var info BlockInfo

	err := s.write("AcceptBlockHeader", func() error {
		idx, err := s.engine.AcceptBlockHeader(header)
		if err != nil {
			return err
		}

		info = newBlockInfo(s.engine.Alt(), idx)
		return nil
	})

	return info, err
}

// AcceptBlock validates the altchain header and attaches its PopData. The
// stateless checks of the payloads run on the worker pool before the state
// is locked. Payloads are validated against the chain state once the block
// is applied.
func (s *State) AcceptBlock(ctx context.Context, header database.AltBlock, pd database.PopData) (BlockInfo, error) {
	s.evHandler("state: AcceptBlock: started: block[%s] height[%d]", header.ID, header.Number)
	defer s.evHandler("state: AcceptBlock: completed: block[%s]", header.ID)

	if err := s.checkStateless(ctx, pd.Payloads()); err != nil {
		if validation.IsInvalid(err) {
			err = validation.Wrap(err, genesis.TierAlt+"-bad-pop-data")
		}
		return BlockInfo{}, err
	}

	var info BlockInfo

	err := s.write("AcceptBlock", func() error {
		idx, err := s.engine.AcceptBlock(header, pd)
		if err != nil {
			return err
		}

		info = newBlockInfo(s.engine.Alt(), idx)
		return nil
	})

	return info, err
}

// SetState makes the specified altchain block the active tip. When the
// payloads of the target branch fail to apply the active tip stays where it
// was and the reason is returned.
func (s *State) SetState(hash database.Hash) error {
	return s.write("SetState", func() error {
		idx := s.engine.Alt().Get(hash)
		if idx == nil {
			return validation.Invalid(genesis.TierAlt+"-unknown-block", "block %s is unknown", hash)
		}

		before := s.engine.Alt().Tip()
		if err := s.engine.SetState(idx); err != nil {
			return err
		}

		if before != idx {
			s.cleanUpMempool()
		}

		return nil
	})
}

// ComparePopScore compares the candidate with the active tip and switches to
// the candidate when it wins.
func (s *State) ComparePopScore(hash database.Hash) (pop.Result, error) {
	var res pop.Result

	err := s.write("ComparePopScore", func() error {
		idx := s.engine.Alt().Get(hash)
		if idx == nil {
			return validation.Invalid(genesis.TierAlt+"-unknown-block", "block %s is unknown", hash)
		}

		var err error
		res, err = s.engine.ComparePopScore(idx)
		if err != nil {
			return err
		}

		s.evHandler("state: ComparePopScore: candidate[%s] outcome[%s] reason[%s]", idx, res.Outcome, res.Reason)

		if res.Switched {
			s.cleanUpMempool()
		}

		return nil
	})

	return res, err
}

// DetermineBestChain compares every known tip with the active tip and
// returns the resulting active tip.
func (s *State) DetermineBestChain() (BlockInfo, error) {
	var info BlockInfo

	err := s.write("DetermineBestChain", func() error {
		before := s.engine.Alt().Tip()

		tip, err := s.engine.DetermineBestChain()
		if err != nil {
			return err
		}

		if tip != before {
			s.cleanUpMempool()
		}

		info = newBlockInfo(s.engine.Alt(), tip)
		return nil
	})

	return info, err
}

// RemovePayloads detaches the PopData of a block that is not applied.
func (s *State) RemovePayloads(hash database.Hash) error {
	return s.write("RemovePayloads", func() error {
		return s.engine.RemovePayloads(hash)
	})
}

// InvalidateBlock marks the block and its descendants as invalid, moving
// the active tip to its parent when the block is applied.
func (s *State) InvalidateBlock(hash database.Hash) error {
	return s.write("InvalidateBlock", func() error {
		before := s.engine.Alt().Tip()

		if err := s.engine.InvalidateBlock(hash); err != nil {
			return err
		}

		if s.engine.Alt().Tip() != before {
			s.cleanUpMempool()
		}

		return nil
	})
}

// FinalizeBlock marks an active block and its ancestors as final. The
// active chain can no longer be reorganized below it.
func (s *State) FinalizeBlock(hash database.Hash) error {
	return s.write("FinalizeBlock", func() error {
		return s.engine.FinalizeBlock(hash)
	})
}

// =============================================================================

// checkStateless runs the stateless checks of the payloads on the worker pool
// and returns the first failure in payload order.
func (s *State) checkStateless(ctx context.Context, payloads []database.Payload) error {
	if len(payloads) == 0 {
		return nil
	}

	checks := make([]func() error, len(payloads))
	for i, p := range payloads {
		checks[i] = p.Validate
	}

	errs, err := worker.WaitAll(ctx, s.pool.Run(checks...))
	if err != nil {
		return err
	}

	for i, err := range errs {
		if err != nil {
			p := payloads[i]
			s.evHandler("state: checkStateless: %s[%s]: %s", p.Kind(), p.ID(), err)
			return err
		}
	}

	return nil
}
