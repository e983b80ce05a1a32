package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database/storage/memory"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/mempool"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/pop/poptest"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/state"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/validation"
	"github.com/google/go-cmp/cmp"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fixture struct {
	gen  genesis.Genesis
	b    *poptest.Builder
	repo *memory.Memory
	vbk  []database.VbkBlock
}

func newFixture(t *testing.T) *fixture {
	gen := genesis.Regtest()
	gen.Alt.Keystone = 1

	b, err := poptest.New(gen)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the builder: %v", failed, err)
	}

	return &fixture{
		gen:  gen,
		b:    b,
		repo: memory.New(),
		vbk:  b.MineVbk(gen.Vbk.Genesis, 12),
	}
}

func (f *fixture) state(t *testing.T, onCorruption func(error)) (*state.State, error) {
	return state.New(state.Config{
		Genesis:      f.gen,
		Repository:   f.repo,
		Workers:      2,
		EvHandler:    func(v string, args ...any) { t.Logf(v, args...) },
		OnCorruption: onCorruption,
		Now:          f.b.Clock(),
	})
}

func (f *fixture) mustState(t *testing.T) *state.State {
	s, err := f.state(t, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	return s
}

func (f *fixture) atv(endorsed database.AltBlock, height int) database.ATV {
	return f.b.ATV(endorsed, f.vbk[height-1], f.vbk[:height-1])
}

// chain accepts A1 and A2, with A2 carrying an ATV of A1, and applies them.
func (f *fixture) chain(t *testing.T, s *state.State) (database.AltBlock, database.AltBlock) {
	ctx := context.Background()

	a1 := f.b.Alt(f.gen.Alt.Genesis, database.PopData{Version: 1})
	if _, err := s.AcceptBlock(ctx, a1, database.PopData{Version: 1}); err != nil {
		t.Fatalf("\t%s\tShould be able to accept A1: %v", failed, err)
	}

	pd := database.PopData{Version: 1, ATVs: []database.ATV{f.atv(a1, 10)}}
	a2 := f.b.Alt(a1, pd)
	if _, err := s.AcceptBlock(ctx, a2, pd); err != nil {
		t.Fatalf("\t%s\tShould be able to accept A2: %v", failed, err)
	}

	if err := s.SetState(a2.ID); err != nil {
		t.Fatalf("\t%s\tShould be able to apply A2: %v", failed, err)
	}

	return a1, a2
}

func tamper(a database.ATV) database.ATV {
	a.Signature = append([]byte(nil), a.Signature...)
	a.Signature[0] ^= 0xff
	return a
}

// =============================================================================

func TestAcceptBlock(t *testing.T) {
	t.Log("Given the need to accept altchain blocks and move the active tip.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen accepting blocks with valid payloads.", testID)
		{
			f := newFixture(t)
			s := f.mustState(t)
			defer s.Shutdown()

			_, a2 := f.chain(t, s)

			tips, err := s.QueryTips()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to query the tips: %v", failed, testID, err)
			}

			if tips.Alt.Hash != a2.ID || tips.Vbk.Height != 10 {
				t.Logf("\t%s\tTest %d:\tgot: %s %d", failed, testID, tips.Alt.Hash, tips.Vbk.Height)
				t.Logf("\t%s\tTest %d:\texp: %s %d", failed, testID, a2.ID, 10)
				t.Fatalf("\t%s\tTest %d:\tShould apply the payloads of A2.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould apply the payloads of A2.", success, testID)

			info, found, err := s.QueryBlock(genesis.TierAlt, a2.ID)
			if err != nil || !found || !info.OnBestChain || len(info.Payloads) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould report A2 with its payloads: %+v %v", failed, testID, info, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report A2 with its payloads.", success, testID)

			if _, _, err := s.QueryBlock("ETH", a2.ID); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an unknown tier.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an unknown tier.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen accepting a block with a payload that fails the stateless checks.", testID)
		{
			f := newFixture(t)
			s := f.mustState(t)
			defer s.Shutdown()

			a1, _ := f.chain(t, s)

			pd := database.PopData{Version: 1, ATVs: []database.ATV{tamper(f.atv(a1, 11))}}
			bad := f.b.Alt(a1, pd)

			_, err := s.AcceptBlock(context.Background(), bad, pd)
			if !validation.HasCode(err, "ALT-bad-pop-data") || !validation.HasCode(err, "atv-bad-signature") {
				t.Fatalf("\t%s\tTest %d:\tShould reject the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the block: %v", success, testID, err)

			if _, found, _ := s.QueryBlock(genesis.TierAlt, bad.ID); found {
				t.Fatalf("\t%s\tTest %d:\tShould not store the block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not store the block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen setting the state to an unknown block.", testID)
		{
			f := newFixture(t)
			s := f.mustState(t)
			defer s.Shutdown()

			err := s.SetState(database.Hash{0x1})
			if !validation.HasCode(err, "ALT-unknown-block") {
				t.Fatalf("\t%s\tTest %d:\tShould reject the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)
		}
	}
}

func TestSubmitPayload(t *testing.T) {
	t.Log("Given the need to collect payloads for the next altchain block.")
	{
		f := newFixture(t)
		s := f.mustState(t)
		defer s.Shutdown()

		ctx := context.Background()
		a1, a2 := f.chain(t, s)
		fresh := f.atv(a2, 11)

		tt := []struct {
			name    string
			payload database.Payload
			status  mempool.Status
			added   bool
		}{
			{"new", fresh, mempool.StatusValid, true},
			{"pending", fresh, mempool.StatusValid, false},
			{"bad signature", tamper(f.atv(a2, 12)), mempool.StatusFailedStateless, false},
			{"included", f.atv(a1, 10), mempool.StatusFailedStateful, false},
		}

		for testID, test := range tt {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen submitting a %s payload.", testID, test.name)
				{
					res, err := s.SubmitPayload(ctx, test.payload)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to check the payload: %v", failed, testID, err)
					}

					if res.Status != test.status || res.Added != test.added {
						t.Logf("\t%s\tTest %d:\tgot: %s %t %s", failed, testID, res.Status, res.Added, res.Reason)
						t.Logf("\t%s\tTest %d:\texp: %s %t", failed, testID, test.status, test.added)
						t.Fatalf("\t%s\tTest %d:\tShould get the expected status.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected status.", success, testID)
				}
			}

			t.Run(test.name, tf)
		}

		testID := len(tt)
		t.Logf("\tTest %d:\tWhen mining the pending payloads.", testID)
		{
			if n := s.QueryMempoolLength(); n != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have one pending payload: got %d", failed, testID, n)
			}

			pd, err := s.GeneratePopData()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate pop data: %v", failed, testID, err)
			}

			if len(pd.ATVs) != 1 || pd.ATVs[0].ID() != fresh.ID() {
				t.Fatalf("\t%s\tTest %d:\tShould select the pending ATV: %+v", failed, testID, pd)
			}
			t.Logf("\t%s\tTest %d:\tShould select the pending ATV.", success, testID)

			tips, _ := s.QueryTips()
			if tips.Alt.Hash != a2.ID || tips.Vbk.Height != 10 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the state untouched.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the state untouched.", success, testID)

			a3 := f.b.Alt(a2, pd)
			if _, err := s.AcceptBlock(ctx, a3, pd); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to accept the mined block: %v", failed, testID, err)
			}

			res, err := s.ComparePopScore(a3.ID)
			if err != nil || !res.Switched {
				t.Fatalf("\t%s\tTest %d:\tShould switch to the mined block: %s %v", failed, testID, res.Outcome, err)
			}
			t.Logf("\t%s\tTest %d:\tShould switch to the mined block.", success, testID)

			if n := s.QueryMempoolLength(); n != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould drop the included payload from the mempool: got %d", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould drop the included payload from the mempool.", success, testID)
		}
	}
}

func TestPersistence(t *testing.T) {
	t.Log("Given the need to restore the state after a restart.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen restarting on the same repository.", testID)
		{
			f := newFixture(t)

			s := f.mustState(t)
			f.chain(t, s)

			before, err := s.QueryTips()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to query the tips: %v", failed, testID, err)
			}

			if err := s.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to shut down: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to shut down.", success, testID)

			restarted := f.mustState(t)
			defer restarted.Shutdown()

			after, err := restarted.QueryTips()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to query the tips: %v", failed, testID, err)
			}

			if diff := cmp.Diff(before, after); diff != "" {
				t.Fatalf("\t%s\tTest %d:\tShould restore the same tips:\n%s", failed, testID, diff)
			}
			t.Logf("\t%s\tTest %d:\tShould restore the same tips.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the stored payloads are lost.", testID)
		{
			f := newFixture(t)

			s := f.mustState(t)
			f.chain(t, s)
			if err := s.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to shut down: %v", failed, testID, err)
			}

			var keys [][]byte
			f.repo.Iterate([]byte{'p'}, func(key []byte, _ []byte) error {
				keys = append(keys, append([]byte(nil), key...))
				return nil
			})
			for _, key := range keys {
				f.repo.Remove(key)
			}

			var reported error
			_, err := f.state(t, func(err error) { reported = err })

			if !errors.Is(err, state.ErrCorrupted) {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to start: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to start: %v", success, testID, err)

			if !validation.IsCorruption(reported) {
				t.Fatalf("\t%s\tTest %d:\tShould report the corruption: %v", failed, testID, reported)
			}
			t.Logf("\t%s\tTest %d:\tShould report the corruption.", success, testID)
		}
	}
}
