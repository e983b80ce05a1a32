package cmd

import (
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database/storage/leveldb"
	"github.com/VeriBlock/alt-integration-go/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var payloadCmd = &cobra.Command{
	Use:   "payload <vbk|vtb|atv> <id>",
	Short: "Print a payload stored in the repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := database.ParseKind(args[0])
		if err != nil {
			return err
		}

		if len(common.FromHex(args[1])) != common.HashLength {
			return fmt.Errorf("id %q is not a hash", args[1])
		}
		id := common.HexToHash(args[1])

		repo, err := leveldb.New(dbPath)
		if err != nil {
			return err
		}

		db, err := database.New(repo)
		if err != nil {
			repo.Close()
			return err
		}
		defer db.Close()

		p, err := db.Payload(kind, id)
		if err != nil {
			return fmt.Errorf("%s %s: %w", kind, id, err)
		}

		ns, err := nameservice.New(minersPath)
		if err != nil {
			return err
		}

		out := struct {
			Payload database.Payload `json:"payload"`
			Miner   string           `json:"miner,omitempty"`
		}{
			Payload: p,
		}

		switch v := p.(type) {
		case database.ATV:
			out.Miner = ns.Lookup(v.PublicKey)
		case database.VTB:
			out.Miner = ns.Lookup(v.PublicKey)
		}

		return printJSON(out)
	},
}

var minersPath string

func init() {
	rootCmd.AddCommand(payloadCmd)
	payloadCmd.Flags().StringVarP(&minersPath, "miners", "m", "", "Folder of miner keys used to name the signer.")
}
