package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/database"
	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	url  string
	sign bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <vbk|vtb|atv> <file>",
	Short: "Submit a payload to the mempool of a running node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := database.ParseKind(args[0])
		if err != nil {
			return err
		}

		content, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		if sign {
			if content, err = resign(kind, content); err != nil {
				return err
			}
		}

		client := http.Client{Timeout: 10 * time.Second}

		resp, err := client.Post(fmt.Sprintf("%s/v1/pop/%s", url, kind), "application/json", bytes.NewReader(content))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("node responded %d: %s", resp.StatusCode, body)
		}

		fmt.Println(string(body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	submitCmd.Flags().BoolVarP(&sign, "sign", "s", false, "Sign the payload with the key before submitting it.")
}

// resign replaces the signature of an ATV or VTB with one made by the key.
func resign(kind database.PayloadKind, content []byte) ([]byte, error) {
	privateKey, err := crypto.LoadECDSA(keyPath)
	if err != nil {
		return nil, err
	}

	var v any
	switch kind {
	case database.KindATV:
		var atv database.ATV
		if err := json.Unmarshal(content, &atv); err != nil {
			return nil, err
		}
		if atv.PublicKey, atv.Signature, err = signature.Sign(atv.SignedContent(), privateKey); err != nil {
			return nil, err
		}
		v = atv

	case database.KindVTB:
		var vtb database.VTB
		if err := json.Unmarshal(content, &vtb); err != nil {
			return nil, err
		}
		if vtb.PublicKey, vtb.Signature, err = signature.Sign(vtb.SignedContent(), privateKey); err != nil {
			return nil, err
		}
		v = vtb

	default:
		return nil, fmt.Errorf("%s payloads are not signed", kind)
	}

	return json.Marshal(v)
}
