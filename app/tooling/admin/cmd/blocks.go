package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/blocktree"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database/storage/leveldb"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/genesis"
	"github.com/spf13/cobra"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List the altchain blocks written to the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		stored, tip, err := db.ReadBlocks(genesis.TierAlt)
		if err != nil {
			return err
		}

		type row struct {
			header   database.AltBlock
			status   blocktree.Status
			final    bool
			payloads int
		}

		rows := make([]row, len(stored))
		for i, sb := range stored {
			if err := json.Unmarshal(sb.Header, &rows[i].header); err != nil {
				return fmt.Errorf("unmarshal header: %w", err)
			}
			rows[i].status = blocktree.Status(sb.Status)
			rows[i].final = sb.Finalized
			for _, ids := range sb.Payloads {
				rows[i].payloads += len(ids)
			}
		}

		sort.Slice(rows, func(i, j int) bool {
			if rows[i].header.Number != rows[j].header.Number {
				return rows[i].header.Number < rows[j].header.Number
			}
			return rows[i].header.ID.Hex() < rows[j].header.ID.Hex()
		})

		for _, r := range rows {
			marker := " "
			if r.header.ID == tip {
				marker = "*"
			}
			fmt.Printf("%s %6d %s status[%s] payloads[%d] finalized[%t]\n", marker, r.header.Number, r.header.ID, r.status, r.payloads, r.final)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(blocksCmd)
}
