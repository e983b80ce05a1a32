// Package cmd contains the admin commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database/storage/leveldb"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/state"
	"github.com/VeriBlock/alt-integration-go/foundation/logger"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	genesisPath string
	verbose     bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "zblock/pop.db", "Path to the node repository.")
	rootCmd.PersistentFlags().StringVarP(&genesisPath, "genesis", "g", "", "Path to the genesis file, regtest parameters when empty.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log the state events.")
}

var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Administrative tasks for the PoP node",
	SilenceUsage: true,
}

// Execute runs the command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================

func loadGenesis() (genesis.Genesis, error) {
	if genesisPath == "" {
		return genesis.Regtest(), nil
	}
	return genesis.Load(genesisPath)
}

// openState restores the PoP state from the repository. The node must not
// be running since the repository is opened exclusively.
func openState() (*state.State, error) {
	gen, err := loadGenesis()
	if err != nil {
		return nil, err
	}

	repo, err := leveldb.New(dbPath)
	if err != nil {
		return nil, err
	}

	var ev state.EventHandler
	if verbose {
		log, err := logger.New("ADMIN", "stderr")
		if err != nil {
			repo.Close()
			return nil, err
		}
		ev = logger.EventHandler(log)
	}

	st, err := state.New(state.Config{
		Genesis:    gen,
		Repository: repo,
		Workers:    1,
		EvHandler:  ev,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	return st, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}
