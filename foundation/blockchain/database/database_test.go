package database_test

import (
	"errors"
	"testing"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database/storage/leveldb"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database/storage/memory"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/pop/poptest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type backend struct {
	name string
	open func(t *testing.T) database.Repository
}

var backends = []backend{
	{
		name: "memory",
		open: func(t *testing.T) database.Repository {
			return memory.New()
		},
	},
	{
		name: "leveldb",
		open: func(t *testing.T) database.Repository {
			repo, err := leveldb.New(t.TempDir())
			if err != nil {
				t.Fatalf("\t%s\tShould be able to open leveldb: %v", failed, err)
			}
			return repo
		},
	},
}

func popData(t *testing.T) database.PopData {
	gen := genesis.Regtest()

	b, err := poptest.New(gen)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the builder: %v", failed, err)
	}

	vbk := b.MineVbk(gen.Vbk.Genesis, 3)
	btc := b.MineBtc(gen.Btc.Genesis, 2)
	alt := b.Alt(gen.Alt.Genesis, database.PopData{Version: 1})

	return database.PopData{
		Version: 1,
		Context: vbk[:1],
		VTBs:    []database.VTB{b.VTB(vbk[0], vbk[1], btc[1], btc[:1])},
		ATVs:    []database.ATV{b.ATV(alt, vbk[2], vbk[:2])},
	}
}

// =============================================================================

func TestPayloads(t *testing.T) {
	t.Log("Given the need to store and resolve payload bodies.")
	{
		for testID, be := range backends {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen using the %s backend.", testID, be.name)
				{
					repo := be.open(t)
					defer repo.Close()

					pd := popData(t)

					db, err := database.New(repo)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the database: %v", failed, testID, err)
					}

					if err := db.StorePayloads(pd); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to store the payloads: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to store the payloads.", success, testID)

					// A second database has an empty cache and reads the repository.
					fresh, err := database.New(repo)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the database: %v", failed, testID, err)
					}

					got, err := fresh.PopData(pd.IDs())
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to resolve the payloads: %v", failed, testID, err)
					}

					if diff := cmp.Diff(pd, got, cmpopts.EquateEmpty()); diff != "" {
						t.Fatalf("\t%s\tTest %d:\tShould get back the same pop data:\n%s", failed, testID, diff)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the same pop data.", success, testID)

					if got.Root() != pd.Root() {
						t.Fatalf("\t%s\tTest %d:\tShould get back the same root.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the same root.", success, testID)

					_, err = fresh.Payload(database.KindATV, database.Hash{0x1})
					if !errors.Is(err, database.ErrNotFound) {
						t.Fatalf("\t%s\tTest %d:\tShould report an unknown payload as not found: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould report an unknown payload as not found.", success, testID)
				}
			}

			t.Run(be.name, tf)
		}
	}
}

func TestBlocks(t *testing.T) {
	t.Log("Given the need to store block snapshots of a tree.")
	{
		for testID, be := range backends {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen using the %s backend.", testID, be.name)
				{
					repo := be.open(t)
					defer repo.Close()

					db, err := database.New(repo)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the database: %v", failed, testID, err)
					}

					blocks, tip, err := db.ReadBlocks(genesis.TierAlt)
					if err != nil || len(blocks) != 0 || tip != database.ZeroHash {
						t.Fatalf("\t%s\tTest %d:\tShould read nothing from an empty repository: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould read nothing from an empty repository.", success, testID)

					stored := map[database.Hash]database.StoredBlock{
						{0x1}: {Header: []byte(`{"id":"1"}`), Status: 3},
						{0x2}: {Header: []byte(`{"id":"2"}`), Status: 5, Finalized: true},
					}

					if err := db.WriteBlocks(genesis.TierAlt, stored, database.Hash{0x2}); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to write the blocks: %v", failed, testID, err)
					}

					blocks, tip, err = db.ReadBlocks(genesis.TierAlt)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to read the blocks: %v", failed, testID, err)
					}

					if tip != (database.Hash{0x2}) || len(blocks) != len(stored) {
						t.Fatalf("\t%s\tTest %d:\tShould read back every block and the tip: got %d blocks", failed, testID, len(blocks))
					}
					t.Logf("\t%s\tTest %d:\tShould read back every block and the tip.", success, testID)

					other, _, err := db.ReadBlocks(genesis.TierVbk)
					if err != nil || len(other) != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould keep the trees apart: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould keep the trees apart.", success, testID)
				}
			}

			t.Run(be.name, tf)
		}
	}
}

func TestPayloadID(t *testing.T) {
	pd := popData(t)
	a := pd.ATVs[0]
	v := pd.VTBs[0]

	resigned := func(sig []byte) []byte {
		return append(append([]byte(nil), sig...), 0x00)
	}

	type table struct {
		name string
		a    database.ATV
		v    database.VTB
		same bool
	}

	a2, v2 := a, v
	a2.Signature, v2.Signature = resigned(a.Signature), resigned(v.Signature)

	a3, v3 := a, v
	a3.Fee, v3.Fee = a.Fee+1, v.Fee+1

	a4, v4 := a, v
	a4.PublicKey, v4.PublicKey = resigned(a.PublicKey), resigned(v.PublicKey)

	tt := []table{
		{name: "signature", a: a2, v: v2, same: true},
		{name: "content", a: a3, v: v3, same: false},
		{name: "signer", a: a4, v: v4, same: false},
	}

	t.Log("Given the need to identify payloads independently of the signature encoding.")
	{
		for testID, tst := range tt {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen only the %s differs.", testID, tst.name)
				{
					if (tst.a.ID() == a.ID()) != tst.same {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tst.a.ID())
						t.Logf("\t%s\tTest %d:\texp: %s same[%t]", failed, testID, a.ID(), tst.same)
						t.Fatalf("\t%s\tTest %d:\tShould get the expected ATV id.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected ATV id.", success, testID)

					if (tst.v.ID() == v.ID()) != tst.same {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tst.v.ID())
						t.Logf("\t%s\tTest %d:\texp: %s same[%t]", failed, testID, v.ID(), tst.same)
						t.Fatalf("\t%s\tTest %d:\tShould get the expected VTB id.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected VTB id.", success, testID)
				}
			}

			t.Run(tst.name, tf)
		}
	}
}
