package escrow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/google/uuid"
)

const (
	// IDSize is the maximum byte length of a release or buyer id.
	IDSize = 32

	// SeedSize is the number of derived bytes each id contributes to an address.
	SeedSize = 7

	// AddressSize is the length of an entry or grant address.
	AddressSize = 32
)

// Namespace tags separating entry addresses from grant addresses.
const (
	TagEscrow = "release_escrow"
	TagAccess = "release_access"
)

// Address identifies one escrow entry or access grant.
type Address [AddressSize]byte

// String returns the hex encoding of a.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// ParseAddress decodes a 64-character hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != AddressSize {
		return a, fmt.Errorf("%w: bad address %q", ErrInvalidEntryData, s)
	}
	copy(a[:], b)
	return a, nil
}

// NormalizeID validates id and returns its canonical form. UUIDs are
// lowercased with hyphens stripped; any other id is used as given.
func NormalizeID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if u, err := uuid.Parse(id); err == nil {
		return strings.ReplaceAll(u.String(), "-", ""), nil
	}
	if len(id) > IDSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidID, len(id), IDSize)
	}
	return id, nil
}

func checkNormalized(id string) error {
	norm, err := NormalizeID(id)
	if err != nil {
		return err
	}
	if norm != id {
		return fmt.Errorf("%w: %q is not in canonical form", ErrInvalidID, id)
	}
	return nil
}

// Seed returns the first SeedSize bytes of SHA256 of the normalized id.
func Seed(id string) ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	norm, err := NormalizeID(id)
	if err != nil {
		return seed, err
	}
	sum := sha256.Sum256([]byte(norm))
	copy(seed[:], sum[:SeedSize])
	return seed, nil
}

// DeriveAddress computes the deterministic address of (tag, releaseID, buyerID):
//
//	addr = SHA256(tag || seed(releaseID) || seed(buyerID) || bump)
//
// Bumps are tried from 255 down; the first addr that is not the x-coordinate
// of a secp256k1 point wins, so no private key can ever sign for it.
func DeriveAddress(tag, releaseID, buyerID string) (Address, uint8, error) {
	rs, err := Seed(releaseID)
	if err != nil {
		return Address{}, 0, fmt.Errorf("release id: %w", err)
	}
	bs, err := Seed(buyerID)
	if err != nil {
		return Address{}, 0, fmt.Errorf("buyer id: %w", err)
	}
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		h.Write([]byte(tag))
		h.Write(rs[:])
		h.Write(bs[:])
		h.Write([]byte{byte(bump)})
		var addr Address
		copy(addr[:], h.Sum(nil))
		if !onCurve(addr) {
			return addr, uint8(bump), nil
		}
	}
	return Address{}, 0, ErrNoAddress
}

// VerifyAddress reports whether addr and bump are the derivation of the ids.
func VerifyAddress(tag, releaseID, buyerID string, addr Address, bump uint8) bool {
	got, gotBump, err := DeriveAddress(tag, releaseID, buyerID)
	return err == nil && got == addr && gotBump == bump
}

func onCurve(addr Address) bool {
	compressed := make([]byte, 0, 1+AddressSize)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, addr[:]...)
	_, err := ec.PublicKeyFromBytes(compressed)
	return err == nil
}
