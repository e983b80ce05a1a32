// Package nameservice reads a folder of miner keys and resolves the signer
// of a payload to the name of the miner that produced it.
package nameservice

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/VeriBlock/alt-integration-go/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

const keyExtension = ".ecdsa"

// NameService maintains a map of signer addresses for name lookup.
type NameService struct {
	miners map[string]string
}

// New constructs a name service with the keys found under root. The name of
// a miner is the file name of its key without the extension. An empty root
// returns an empty name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		miners: make(map[string]string),
	}

	if root == "" {
		return &ns, nil
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != keyExtension {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		address, err := signature.Address(crypto.FromECDSAPub(&privateKey.PublicKey))
		if err != nil {
			return err
		}

		ns.miners[address] = strings.TrimSuffix(path.Base(fileName), keyExtension)

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the miner name for the public key a payload was signed
// with. Unknown signers resolve to their address.
func (ns *NameService) Lookup(publicKey []byte) string {
	address, err := signature.Address(publicKey)
	if err != nil {
		return "unknown"
	}

	name, exists := ns.miners[address]
	if !exists {
		return address
	}
	return name
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.miners))
	for address, name := range ns.miners {
		cpy[address] = name
	}
	return cpy
}
