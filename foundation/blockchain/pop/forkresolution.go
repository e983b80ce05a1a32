package pop

import (
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
)

// ComparePopScore compares the candidate against the active tip and makes it
// the active tip when it wins. The returned error is only set for failures
// that are not a property of the candidate, such as storage errors.
func (e *Engine) ComparePopScore(candidate *AltIndex) (Result, error) {
	alt := e.trees.Alt
	current := alt.Tip()

	if candidate == current {
		return result(CandidateIsTip, false, "candidate %s is the active tip", candidate), nil
	}

	if status := candidate.Status(); status.KnownInvalid() {
		if status&(blocktree.StatusFailedBlock|blocktree.StatusFailedChild) != 0 {
			return result(CandidateInvalidChain, false, "candidate %s is on an invalid chain: %s", candidate, status), nil
		}
		return result(CandidateInvalidPayloads, false, "candidate %s has invalid payloads: %s", candidate, status), nil
	}

	active := alt.BestChain()
	if active.Contains(candidate) {
		return result(CandidatePartOfActiveChain, false, "candidate %s is part of the active chain", candidate), nil
	}

	if !candidate.IsValid(blocktree.StatusConnected) {
		return result(CandidateNotConnected, false, "payloads of candidate %s or its ancestors are missing", candidate), nil
	}

	fork := active.FindFork(candidate)
	validation.Assert(fork != nil, "fork resolution: no fork between %s and %s", current, candidate)

	if e.isFinal(active, fork) {
		return result(TipIsFinal, false, "candidate %s forks at %s below a final block", candidate, fork), nil
	}

	e.evHandler("pop: ComparePopScore: active[%s] candidate[%s] fork[%s]", current, candidate, fork)

	// The candidate extends the active tip so only its payloads decide.
	if fork == current {
		btcTip, vbkTip := e.trees.Btc.Tip(), e.trees.Vbk.Tip()

		if err := e.applyBranch(current, candidate); err != nil {
			e.restoreProtecting(btcTip, vbkTip)

			if !validation.IsInvalid(err) {
				return Result{}, err
			}
			return result(CandidateInvalidPayloads, false, "%s", err), nil
		}

		alt.SetTip(candidate)
		e.resolveProtecting()

		return result(CandidateIsTipSuccessor, true, "candidate %s extends the active tip by %d blocks", candidate, candidate.Height()-current.Height()), nil
	}

	interval := e.gen.Alt.KeystoneInterval()
	crossA := blocktree.IsCrossedKeystoneBoundary(fork.Height(), current.Height(), interval)
	crossB := blocktree.IsCrossedKeystoneBoundary(fork.Height(), candidate.Height(), interval)

	if !crossA && !crossB {
		if candidate.ChainWork() <= current.ChainWork() {
			return result(BothDontCrossKeystoneBoundary, false, "neither branch crosses a keystone and the candidate has no more work"), nil
		}

		if err := e.SetState(candidate); err != nil {
			if !validation.IsInvalid(err) {
				return Result{}, err
			}
			return result(CandidateInvalidIndependently, false, "%s", err), nil
		}

		return result(BothDontCrossKeystoneBoundary, true, "neither branch crosses a keystone and the candidate has more work"), nil
	}

	return e.scoreBranches(current, candidate, fork)
}

// scoreBranches applies the candidate branch on top of the active branch so
// the publications of both are known, scores them and switches to the
// candidate only when it scores strictly higher.
func (e *Engine) scoreBranches(current *AltIndex, candidate *AltIndex, fork *AltIndex) (Result, error) {
	btcTip, vbkTip := e.trees.Btc.Tip(), e.trees.Vbk.Tip()

	if err := e.applyBranch(fork, candidate); err != nil {
		e.restoreProtecting(btcTip, vbkTip)

		if !validation.IsInvalid(err) {
			return Result{}, err
		}
		return result(CandidateInvalidPayloads, false, "%s", err), nil
	}

	a := blocktree.NewChain(fork.Height(), current)
	b := blocktree.NewChain(fork.Height(), candidate)
	scoreA, scoreB := compareBranches(a, b, e.trees.Vbk, e.gen.Alt)

	e.unapplyBranch(fork, candidate)
	e.restoreProtecting(btcTip, vbkTip)

	e.evHandler("pop: ComparePopScore: active[%s] score[%d] candidate[%s] score[%d]", current, scoreA, candidate, scoreB)

	if scoreB <= scoreA {
		res := result(LowerPopScore, false, "candidate score %d does not exceed active score %d", scoreB, scoreA)
		res.ActiveScore, res.CandidateScore = scoreA, scoreB
		return res, nil
	}

	if err := e.SetState(candidate); err != nil {
		if !validation.IsInvalid(err) {
			return Result{}, err
		}
		res := result(CandidateInvalidIndependently, false, "%s", err)
		res.ActiveScore, res.CandidateScore = scoreA, scoreB
		return res, nil
	}

	res := result(HigherPopScore, true, "candidate score %d exceeds active score %d", scoreB, scoreA)
	res.ActiveScore, res.CandidateScore = scoreA, scoreB

	return res, nil
}

// DetermineBestChain compares every tip of the altchain tree against the
// active tip in a fixed order and returns the resulting active tip.
func (e *Engine) DetermineBestChain() (*AltIndex, error) {
	for _, candidate := range e.trees.Alt.Tips() {
		if candidate == e.trees.Alt.Tip() {
			continue
		}

		res, err := e.ComparePopScore(candidate)
		if err != nil {
			return e.trees.Alt.Tip(), err
		}

		e.evHandler("pop: DetermineBestChain: candidate[%s] outcome[%s] reason[%s]", candidate, res.Outcome, res.Reason)
	}

	return e.trees.Alt.Tip(), nil
}
