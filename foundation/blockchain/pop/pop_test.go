package pop_test

import (
	"testing"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database/storage/memory"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/pop"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/pop/poptest"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
	"github.com/google/go-cmp/cmp"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// block is an altchain block with the PopData it carries.
type block struct {
	header database.AltBlock
	pd     database.PopData
}

// scenario holds the blocks of the competing branches A and B built on top
// of the altchain genesis block.
//
//	G -> A1 -> A2          A2 carries an ATV of A1 published at VBK 10
//	G -> B1 -> B2 -> B3    B2 and B3 carry ATVs of B1 and B2 published at VBK 5 and 6
type scenario struct {
	gen genesis.Genesis
	b   *poptest.Builder
	vbk []database.VbkBlock
	A   []block
	B   []block
}

func newScenario(t *testing.T, altKeystone int32) *scenario {
	gen := genesis.Regtest()
	gen.Alt.Keystone = altKeystone

	b, err := poptest.New(gen)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the builder: %v", failed, err)
	}

	return &scenario{
		gen: gen,
		b:   b,
		vbk: b.MineVbk(gen.Vbk.Genesis, 12),
	}
}

// atv returns an ATV of the endorsed block published at the intermediate
// chain height.
func (s *scenario) atv(endorsed database.AltBlock, height int) database.ATV {
	return s.b.ATV(endorsed, s.vbk[height-1], s.vbk[:height-1])
}

// orphanATV returns an ATV whose block of proof sits on an intermediate
// branch that is never published.
func (s *scenario) orphanATV(endorsed database.AltBlock) database.ATV {
	orphans := s.b.MineVbkWithNonce(s.gen.Vbk.Genesis, 5, 7)
	return s.b.ATV(endorsed, orphans[4], nil)
}

// next builds the block on top of prev carrying the ATVs.
func (s *scenario) next(prev database.AltBlock, atvs ...database.ATV) block {
	pd := database.PopData{Version: 1, ATVs: atvs}
	return block{header: s.b.Alt(prev, pd), pd: pd}
}

// branches builds the standard A and B branches.
func (s *scenario) branches() {
	g := s.gen.Alt.Genesis

	a1 := s.next(g)
	a2 := s.next(a1.header, s.atv(a1.header, 10))
	s.A = []block{a1, a2}

	b1 := s.next(g)
	b2 := s.next(b1.header, s.atv(b1.header, 5))
	b3 := s.next(b2.header, s.atv(b2.header, 6))
	s.B = []block{b1, b2, b3}
}

func (s *scenario) engine(t *testing.T) *pop.Engine {
	db, err := database.New(memory.New())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the database: %v", failed, err)
	}

	e, err := pop.New(pop.Config{Genesis: s.gen, Store: db, Now: s.b.Clock()})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the engine: %v", failed, err)
	}

	return e
}

func accept(t *testing.T, e *pop.Engine, blocks ...block) {
	for _, blk := range blocks {
		if _, err := e.AcceptBlock(blk.header, blk.pd); err != nil {
			t.Fatalf("\t%s\tShould be able to accept block %d: %v", failed, blk.header.Number, err)
		}
	}
}

func index(e *pop.Engine, blk block) *pop.AltIndex {
	return e.Alt().Get(blk.header.ID)
}

// popState captures the endorsements of every altchain block.
func popState(e *pop.Engine) map[database.Hash][2][]database.Endorsement {
	state := make(map[database.Hash][2][]database.Endorsement)
	e.Alt().ForEach(func(idx *pop.AltIndex) bool {
		state[idx.Hash()] = [2][]database.Endorsement{
			append([]database.Endorsement(nil), idx.Pop.Containing()...),
			append([]database.Endorsement(nil), idx.Pop.EndorsedBy()...),
		}
		return true
	})
	return state
}

// =============================================================================

func TestSetState(t *testing.T) {
	t.Log("Given the need to move the applied state between blocks.")
	{
		s := newScenario(t, 1)
		s.branches()

		testID := 0
		t.Logf("\tTest %d:\tWhen applying a branch with an ATV.", testID)
		{
			e := s.engine(t)
			accept(t, e, s.A...)

			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the branch: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to apply the branch.", success, testID)

			if e.Alt().Tip() != index(e, s.A[1]) {
				t.Fatalf("\t%s\tTest %d:\tShould have A2 as the active tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have A2 as the active tip.", success, testID)

			if got := len(index(e, s.A[0]).Pop.EndorsedBy()); got != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have A1 endorsed once: got %d", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould have A1 endorsed once.", success, testID)

			if got := e.Vbk().Tip().Height(); got != 10 {
				t.Fatalf("\t%s\tTest %d:\tShould have the intermediate tip at 10: got %d", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould have the intermediate tip at 10.", success, testID)

			before := popState(e)
			if err := e.SetState(e.Alt().Tip()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to set the state to the tip: %v", failed, testID, err)
			}
			if diff := cmp.Diff(before, popState(e)); diff != "" {
				t.Fatalf("\t%s\tTest %d:\tShould not change anything when setting the state to the tip:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould not change anything when setting the state to the tip.", success, testID)

			if err := e.SetState(e.Alt().Root()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to unapply the branch: %v", failed, testID, err)
			}
			if len(index(e, s.A[0]).Pop.EndorsedBy()) != 0 || e.Vbk().Len() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould remove every effect of the branch.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove every effect of the branch.", success, testID)

			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the branch again: %v", failed, testID, err)
			}
			if diff := cmp.Diff(before, popState(e)); diff != "" {
				t.Fatalf("\t%s\tTest %d:\tShould restore the same state:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould restore the same state.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the target branch carries an invalid payload.", testID)
		{
			e := s.engine(t)
			accept(t, e, s.A...)

			bad := s.next(s.B[0].header, s.orphanATV(s.B[0].header))
			accept(t, e, s.B[0], bad)

			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the branch: %v", failed, testID, err)
			}
			before := popState(e)

			err := e.SetState(index(e, bad))
			if !validation.HasCode(err, "ALT-bad-command") {
				t.Fatalf("\t%s\tTest %d:\tShould fail to apply the invalid branch: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to apply the invalid branch: %v", success, testID, err)

			if e.Alt().Tip() != index(e, s.A[1]) {
				t.Fatalf("\t%s\tTest %d:\tShould keep A2 as the active tip.", failed, testID)
			}
			if diff := cmp.Diff(before, popState(e)); diff != "" {
				t.Fatalf("\t%s\tTest %d:\tShould restore the active branch exactly:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould restore the active branch exactly.", success, testID)

			if !index(e, bad).Status().KnownInvalid() {
				t.Fatalf("\t%s\tTest %d:\tShould mark the failing block invalid.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould mark the failing block invalid.", success, testID)
		}
	}
}

func TestComparePopScore(t *testing.T) {
	t.Log("Given the need to pick the branch with the better PoP score.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the candidate publishes its keystones earlier.", testID)
		{
			s := newScenario(t, 1)
			s.branches()

			e := s.engine(t)
			accept(t, e, s.A...)
			accept(t, e, s.B...)

			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply branch A: %v", failed, testID, err)
			}

			res, err := e.ComparePopScore(index(e, s.B[2]))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to compare: %v", failed, testID, err)
			}

			if res.Outcome != pop.HigherPopScore || !res.Switched {
				t.Logf("\t%s\tTest %d:\tgot: %s %s", failed, testID, res.Outcome, res.Reason)
				t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, pop.HigherPopScore)
				t.Fatalf("\t%s\tTest %d:\tShould switch to the candidate.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould switch to the candidate: %d > %d", success, testID, res.CandidateScore, res.ActiveScore)

			if e.Alt().BestChain().Tip() != index(e, s.B[2]) {
				t.Fatalf("\t%s\tTest %d:\tShould have B3 as the tip of the best chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have B3 as the tip of the best chain.", success, testID)

			if len(index(e, s.A[0]).Pop.EndorsedBy()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould remove the endorsements of branch A.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the endorsements of branch A.", success, testID)

			if len(index(e, s.B[0]).Pop.EndorsedBy()) != 1 || len(index(e, s.B[1]).Pop.EndorsedBy()) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould apply the endorsements of branch B.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould apply the endorsements of branch B.", success, testID)

			if got := e.Vbk().Tip().Height(); got != 6 {
				t.Fatalf("\t%s\tTest %d:\tShould keep only the intermediate blocks of branch B: got tip %d", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould keep only the intermediate blocks of branch B.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen both branches score the same.", testID)
		{
			s := newScenario(t, 1)
			g := s.gen.Alt.Genesis

			a1 := s.next(g)
			a2 := s.next(a1.header, s.atv(a1.header, 5))
			b1 := s.next(g)
			b2 := s.next(b1.header, s.atv(b1.header, 5))

			e := s.engine(t)
			accept(t, e, a1, a2, b1, b2)

			if err := e.SetState(index(e, a2)); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply branch A: %v", failed, testID, err)
			}
			before := popState(e)

			res, err := e.ComparePopScore(index(e, b2))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to compare: %v", failed, testID, err)
			}

			if res.Outcome != pop.LowerPopScore || res.Switched || res.ActiveScore != res.CandidateScore {
				t.Logf("\t%s\tTest %d:\tgot: %s %d %d", failed, testID, res.Outcome, res.ActiveScore, res.CandidateScore)
				t.Fatalf("\t%s\tTest %d:\tShould keep the incumbent on a tie.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the incumbent on a tie.", success, testID)

			if diff := cmp.Diff(before, popState(e)); diff != "" || e.Alt().Tip() != index(e, a2) {
				t.Fatalf("\t%s\tTest %d:\tShould leave the state untouched:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the state untouched.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the active chain is final below the fork.", testID)
		{
			s := newScenario(t, 1)
			s.branches()

			e := s.engine(t)
			accept(t, e, s.A...)
			accept(t, e, s.B...)

			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply branch A: %v", failed, testID, err)
			}
			if err := e.FinalizeBlock(s.A[0].header.ID); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to finalize A1: %v", failed, testID, err)
			}
			before := popState(e)

			res, err := e.ComparePopScore(index(e, s.B[2]))
			if err != nil || res.Outcome != pop.TipIsFinal {
				t.Fatalf("\t%s\tTest %d:\tShould refuse the candidate: %s %v", failed, testID, res.Outcome, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse the candidate.", success, testID)

			if diff := cmp.Diff(before, popState(e)); diff != "" {
				t.Fatalf("\t%s\tTest %d:\tShould leave the state untouched:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the state untouched.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the candidate carries an invalid payload.", testID)
		{
			s := newScenario(t, 1)
			s.branches()

			bad := s.next(s.B[0].header, s.orphanATV(s.B[0].header))

			e := s.engine(t)
			accept(t, e, s.A...)
			accept(t, e, s.B[0], bad)

			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply branch A: %v", failed, testID, err)
			}

			res, err := e.ComparePopScore(index(e, bad))
			if err != nil || res.Outcome != pop.CandidateInvalidPayloads {
				t.Fatalf("\t%s\tTest %d:\tShould reject the candidate: %s %v", failed, testID, res.Outcome, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the candidate: %s", success, testID, res.Reason)

			res, err = e.ComparePopScore(index(e, bad))
			if err != nil || res.Outcome != pop.CandidateInvalidPayloads {
				t.Fatalf("\t%s\tTest %d:\tShould remember the candidate is invalid: %s %v", failed, testID, res.Outcome, err)
			}
			t.Logf("\t%s\tTest %d:\tShould remember the candidate is invalid.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the candidate is related to the active chain.", testID)
		{
			s := newScenario(t, 5)
			s.branches()

			e := s.engine(t)
			accept(t, e, s.A...)
			accept(t, e, s.B[0])

			res, _ := e.ComparePopScore(index(e, s.A[0]))
			if res.Outcome != pop.CandidateIsTipSuccessor || !res.Switched {
				t.Fatalf("\t%s\tTest %d:\tShould adopt a successor: %s", failed, testID, res.Outcome)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt a successor.", success, testID)

			res, _ = e.ComparePopScore(index(e, s.A[0]))
			if res.Outcome != pop.CandidateIsTip {
				t.Fatalf("\t%s\tTest %d:\tShould report the tip: %s", failed, testID, res.Outcome)
			}
			t.Logf("\t%s\tTest %d:\tShould report the tip.", success, testID)

			res, _ = e.ComparePopScore(e.Alt().Root())
			if res.Outcome != pop.CandidatePartOfActiveChain {
				t.Fatalf("\t%s\tTest %d:\tShould report an ancestor: %s", failed, testID, res.Outcome)
			}
			t.Logf("\t%s\tTest %d:\tShould report an ancestor.", success, testID)

			res, _ = e.ComparePopScore(index(e, s.B[0]))
			if res.Outcome != pop.BothDontCrossKeystoneBoundary || res.Switched {
				t.Fatalf("\t%s\tTest %d:\tShould keep the tip when no keystone is crossed: %s", failed, testID, res.Outcome)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the tip when no keystone is crossed.", success, testID)
		}
	}
}

func TestDetermineBestChain(t *testing.T) {
	t.Log("Given the need to pick the best chain deterministically.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the blocks arrive in different orders.", testID)
		{
			s := newScenario(t, 1)
			s.branches()

			first := s.engine(t)
			accept(t, first, s.A...)
			accept(t, first, s.B...)

			second := s.engine(t)
			accept(t, second, s.B...)
			accept(t, second, s.A...)

			tip1, err := first.DetermineBestChain()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to determine the best chain: %v", failed, testID, err)
			}

			tip2, err := second.DetermineBestChain()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to determine the best chain: %v", failed, testID, err)
			}

			if tip1.Hash() != tip2.Hash() || tip1.Hash() != s.B[2].header.ID {
				t.Logf("\t%s\tTest %d:\tgot: %s %s", failed, testID, tip1, tip2)
				t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, s.B[2].header.ID)
				t.Fatalf("\t%s\tTest %d:\tShould pick the same tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould pick the same tip.", success, testID)

			if diff := cmp.Diff(popState(first), popState(second)); diff != "" {
				t.Fatalf("\t%s\tTest %d:\tShould end in the same state:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould end in the same state.", success, testID)
		}
	}
}

func TestRemovePayloads(t *testing.T) {
	t.Log("Given the need to detach payloads from a block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen removing the payloads of a block that is not applied.", testID)
		{
			s := newScenario(t, 1)
			s.branches()

			e := s.engine(t)
			accept(t, e, s.A...)

			atv := s.A[1].pd.ATVs[0]
			if len(e.ContainingBlocks(atv.ID())) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould index the payload.", failed, testID)
			}

			if err := e.RemovePayloads(s.A[1].header.ID); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to remove the payloads: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to remove the payloads.", success, testID)

			if len(e.ContainingBlocks(atv.ID())) != 0 || index(e, s.A[1]).Pop.HasPayloads() {
				t.Fatalf("\t%s\tTest %d:\tShould forget the payloads.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould forget the payloads.", success, testID)

			if err := e.SetState(index(e, s.A[1])); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not apply a block without payloads.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not apply a block without payloads.", success, testID)

			accept(t, e, s.A[1])
			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould apply the block once the payloads are back: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould apply the block once the payloads are back.", success, testID)

			if err := e.RemovePayloads(s.A[1].header.ID); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not remove the payloads of an applied block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not remove the payloads of an applied block.", success, testID)
		}
	}
}

func TestMutator(t *testing.T) {
	t.Log("Given the need to trial-apply payloads on the active tip.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen applying payloads through a mutator.", testID)
		{
			s := newScenario(t, 1)
			s.branches()

			e := s.engine(t)
			accept(t, e, s.A...)
			if err := e.SetState(index(e, s.A[1])); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply branch A: %v", failed, testID, err)
			}

			before := popState(e)
			blocks, vbkTip := e.Alt().Len(), e.Vbk().Tip()

			m, err := e.NewMutator()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct a mutator: %v", failed, testID, err)
			}

			fresh := s.atv(s.A[1].header, 11)
			if err := m.Apply(fresh); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply a new ATV: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to apply a new ATV.", success, testID)

			if err := m.Apply(fresh); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject the same ATV twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the same ATV twice.", success, testID)

			if err := m.Apply(s.A[1].pd.ATVs[0]); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an ATV already in the chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an ATV already in the chain.", success, testID)

			if m.Applied() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep only the valid ATV applied: got %d", failed, testID, m.Applied())
			}

			m.Close()

			if diff := cmp.Diff(before, popState(e)); diff != "" || e.Alt().Len() != blocks || e.Vbk().Tip() != vbkTip {
				t.Fatalf("\t%s\tTest %d:\tShould leave no trace after close:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould leave no trace after close.", success, testID)
		}
	}
}

// =============================================================================

// lostStore accepts payloads but never returns them.
type lostStore struct{}

func (lostStore) StorePayloads(database.PopData) error { return nil }

func (lostStore) PopData([database.NumKinds][]database.Hash) (database.PopData, error) {
	return database.PopData{}, database.ErrNotFound
}

func TestCorruption(t *testing.T) {
	t.Log("Given the need to tell corruption apart from invalid input.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the payloads of a block disappear.", testID)
		{
			s := newScenario(t, 1)
			s.branches()

			e, err := pop.New(pop.Config{Genesis: s.gen, Store: lostStore{}, Now: s.b.Clock()})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the engine: %v", failed, testID, err)
			}
			accept(t, e, s.A...)

			setState := func() (err error) {
				defer validation.Recover(&err)
				return e.SetState(index(e, s.A[1]))
			}

			err = setState()
			if !validation.IsCorruption(err) {
				t.Fatalf("\t%s\tTest %d:\tShould report corruption: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report corruption.", success, testID)

			if validation.IsInvalid(err) {
				t.Fatalf("\t%s\tTest %d:\tShould not report the block as invalid.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not report the block as invalid.", success, testID)
		}
	}
}
