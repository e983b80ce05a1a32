// Package signature provides the hash functions used by each chain tier and
// the helper functions for signing and verifying endorsement payloads.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
var ZeroHash common.Hash

// popID is an arbitrary prefix for signing messages. This will make it clear
// that the signature was produced for a PoP payload.
const popID = "\x19PoP Signed Message:\n32"

// =============================================================================

// Hash returns a unique sha256 digest for the value. It is used for content
// ids of payloads and endorsements.
func Hash(value any) common.Hash {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	return sha256.Sum256(data)
}

// DoubleHash returns the double sha256 digest for the value. It is used by
// the base chain tier.
func DoubleHash(value any) common.Hash {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Keccak returns the keccak256 digest for the value. It is used by the
// intermediate chain tier.
func Keccak(value any) common.Hash {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	return crypto.Keccak256Hash(data)
}

// =============================================================================

// Sign uses the specified private key to sign the value. It returns the
// uncompressed public key and the 64 byte [R|S] signature.
func Sign(value any, privateKey *ecdsa.PrivateKey) (publicKey []byte, sig []byte, err error) {
	data, err := stamp(value)
	if err != nil {
		return nil, nil, err
	}

	rsv, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, nil, err
	}

	return crypto.FromECDSAPub(&privateKey.PublicKey), rsv[:crypto.RecoveryIDOffset], nil
}

// Verify checks the signature was produced over the value by the owner of
// the specified public key.
func Verify(value any, publicKey []byte, sig []byte) error {
	if len(sig) != crypto.RecoveryIDOffset {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	if _, err := crypto.UnmarshalPubkey(publicKey); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	data, err := stamp(value)
	if err != nil {
		return err
	}

	if !crypto.VerifySignature(publicKey, data, sig) {
		return errors.New("invalid signature")
	}

	return nil
}

// Address returns the account address for the public key.
func Address(publicKey []byte) (string, error) {
	pk, err := crypto.UnmarshalPubkey(publicKey)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*pk).String(), nil
}

// String returns the hex encoded form of the signature.
func String(sig []byte) string {
	return hexutil.Encode(sig)
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this value with the PoP
// stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	txHash := crypto.Keccak256(v)
	return crypto.Keccak256([]byte(popID), txHash), nil
}
