package cmd

import (
	"fmt"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var keyPath string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a key pair for signing payloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return err
		}

		if err := crypto.SaveECDSA(keyPath, privateKey); err != nil {
			return err
		}

		address, err := signature.Address(crypto.FromECDSAPub(&privateKey.PublicKey))
		if err != nil {
			return err
		}

		fmt.Printf("key written to %s, address %s\n", keyPath, address)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key", "k", "zblock/miner.ecdsa", "Path to the private key.")
}
