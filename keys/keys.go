// Package keys derives the signing capabilities the settlement engine holds.
//
// Every capability is an HKDF-SHA256 expansion of the operator seed:
//
//	key = HKDF(seed, salt, purpose)
//
// where purpose names the role (operator, escrow authority, account custody,
// storage reserve) and salt binds the key to one record. The same seed always
// yields the same keys, so no per-record private material is ever persisted.
package keys

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/hkdf"
)

// SeedSize is the required operator seed length in bytes.
const SeedSize = 32

// Purpose is the HKDF info string naming a capability role.
type Purpose string

const (
	PurposeOperator Purpose = "settle-operator"
	PurposeEscrow   Purpose = "settle-escrow-authority"
	PurposeCustody  Purpose = "settle-account-custody"
	PurposeReserve  Purpose = "settle-storage-reserve"
)

// Keyring derives capabilities from a single operator seed.
type Keyring struct {
	seed []byte
}

// NewKeyring wraps seed, which must be exactly SeedSize bytes.
func NewKeyring(seed []byte) (*Keyring, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSeed, SeedSize, len(seed))
	}
	if bytes.Equal(seed, make([]byte, SeedSize)) {
		return nil, fmt.Errorf("%w: seed is all zero", ErrInvalidSeed)
	}
	s := make([]byte, SeedSize)
	copy(s, seed)
	return &Keyring{seed: s}, nil
}

// GenerateSeed returns a fresh random operator seed.
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return seed, nil
}

// Derive expands the seed into a private key for purpose, bound to salt.
func (k *Keyring) Derive(purpose Purpose, salt []byte) (*ec.PrivateKey, error) {
	r := hkdf.New(sha256.New, k.seed, salt, []byte(purpose))
	scalar := make([]byte, 32)
	if _, err := io.ReadFull(r, scalar); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	if bytes.Equal(scalar, make([]byte, 32)) {
		return nil, fmt.Errorf("%w: zero scalar for %s", ErrDerivationFailed, purpose)
	}
	priv, _ := ec.PrivateKeyFromBytes(scalar)
	return priv, nil
}

// Operator returns the operator identity key. It is the sole mint authority
// for reward assets and owns the fee-collection and native holders.
func (k *Keyring) Operator() (*ec.PrivateKey, error) {
	return k.Derive(PurposeOperator, nil)
}

// EscrowAuthority returns the key that signs outbound transfers from the
// custodial holder of the escrow entry at address.
func (k *Keyring) EscrowAuthority(address []byte) (*ec.PrivateKey, error) {
	return k.Derive(PurposeEscrow, address)
}

// Custody returns the key that owns the default holders of account id.
func (k *Keyring) Custody(accountID string) (*ec.PrivateKey, error) {
	return k.Derive(PurposeCustody, []byte(accountID))
}

// Reserve returns the key that owns the storage-deposit reserve holder.
func (k *Keyring) Reserve() (*ec.PrivateKey, error) {
	return k.Derive(PurposeReserve, nil)
}
