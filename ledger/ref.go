package ledger

import (
	"encoding/hex"
	"fmt"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

// RefSize is the length of a holding reference (Hash160).
const RefSize = 20

// AssetID names a fungible asset, e.g. "usdc" or "music".
type AssetID string

// Ref is a holding reference: the address of one holder of one asset.
type Ref [RefSize]byte

// AssociatedRef derives the default holding reference of owner for asset:
//
//	ref = HASH160(owner || asset)
//
// owner is a compressed public key or an escrow entry address.
func AssociatedRef(owner []byte, asset AssetID) Ref {
	buf := make([]byte, 0, len(owner)+len(asset))
	buf = append(buf, owner...)
	buf = append(buf, asset...)
	var r Ref
	copy(r[:], bsvhash.Hash160(buf))
	return r
}

// ParseRef decodes a 40-character hex holding reference.
func ParseRef(s string) (Ref, error) {
	var r Ref
	b, err := hex.DecodeString(s)
	if err != nil {
		return r, fmt.Errorf("%w: %w", ErrInvalidRef, err)
	}
	if len(b) != RefSize {
		return r, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidRef, RefSize, len(b))
	}
	copy(r[:], b)
	return r, nil
}

// String returns the hex encoding of r.
func (r Ref) String() string { return hex.EncodeToString(r[:]) }

// IsZero reports whether r is the all-zero reference.
func (r Ref) IsZero() bool { return r == Ref{} }

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(text []byte) error {
	parsed, err := ParseRef(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
