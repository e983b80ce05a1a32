// Package genesis maintains access to the genesis file which carries the
// chain parameters of the base, intermediate and altchain tiers.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/go-playground/validator/v10"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date time.Time `json:"date"`
	Btc  BtcParams `json:"btc"`
	Vbk  VbkParams `json:"vbk"`
	Alt  AltParams `json:"alt"`
}

// =============================================================================

// Load opens and consumes the genesis file. The parameters are validated
// before they are returned.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	gen := Regtest()
	if err := json.Unmarshal(content, &gen); err != nil {
		return Genesis{}, err
	}

	if err := gen.Validate(); err != nil {
		return Genesis{}, err
	}

	return gen, nil
}

// Validate checks the parameters of every tier.
func (g Genesis) Validate() error {
	validate := validator.New()

	if err := validate.Struct(g); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		fe := verrors[0]
		return fmt.Errorf("genesis: field %s failed on %q", fe.Namespace(), fe.Tag())
	}

	return nil
}

// Regtest returns parameters suitable for local networks and tests.
func Regtest() Genesis {
	return Genesis{
		Date: time.Date(2019, time.March, 27, 0, 0, 0, 0, time.UTC),
		Btc: BtcParams{
			Network:            "btc-regtest",
			Genesis:            database.BtcBlock{Version: 1, Time: 1296688602, Difficulty: 1},
			MinDifficulty:      1,
			MaxFutureBlockTime: 2 * 60 * 60,
		},
		Vbk: VbkParams{
			Network:                       "vbk-regtest",
			Genesis:                       database.VbkBlock{Version: 2, Time: 1553699059, Difficulty: 1},
			MinDifficulty:                 1,
			MaxFutureBlockTime:            5 * 60,
			Keystone:                      20,
			Finality:                      11,
			LookUpTable:                   []uint32{100, 100, 95, 89, 80, 69, 56, 40, 21},
			EndorsementSettlementInterval: 400,
		},
		Alt: AltParams{
			ChainID:                       0x3ae6ca,
			Genesis:                       database.AltBlock{ID: database.Hash{0xa1, 0x7}, Time: 1600000000},
			MaxFutureBlockTime:            10 * 60,
			Keystone:                      5,
			Finality:                      100,
			LookUpTable:                   []uint32{100, 100, 95, 89, 80, 69, 56, 40, 21},
			EndorsementSettlementInterval: 50,
			MaxReorgBlocks:                2000,
			MaxVbkBlocksInAltBlock:        200,
			MaxVTBsInAltBlock:             200,
			MaxATVsInAltBlock:             1000,
			MaxPopDataSize:                5_500_000,
		},
	}
}
