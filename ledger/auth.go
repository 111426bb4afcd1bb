package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Signer authorizes debits and mints. *ec.PrivateKey satisfies it.
type Signer interface {
	PubKey() *ec.PublicKey
	Sign(hash []byte) (*ec.Signature, error)
}

const (
	opTransfer byte = 0x01
	opMint     byte = 0x02
	opClose    byte = 0x03
	opRevoke   byte = 0x04
)

// authDigest computes SHA256(op || asset || from || to || amount).
func authDigest(op byte, asset AssetID, from, to Ref, amount uint64) []byte {
	h := sha256.New()
	h.Write([]byte{op})
	h.Write([]byte(asset))
	h.Write(from[:])
	h.Write(to[:])
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amount)
	h.Write(amt[:])
	return h.Sum(nil)
}

// authorize checks that signer is owner and that it signs digest validly.
func authorize(signer Signer, owner []byte, digest []byte) error {
	if signer == nil {
		return fmt.Errorf("%w: signer", ErrNilParam)
	}
	pub := signer.PubKey()
	if pub == nil || string(pub.Compressed()) != string(owner) {
		return ErrUnauthorized
	}
	sig, err := signer.Sign(digest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	ownerPub, err := ec.PublicKeyFromBytes(owner)
	if err != nil {
		return fmt.Errorf("%w: owner key: %w", ErrBadSignature, err)
	}
	if !sig.Verify(digest, ownerPub) {
		return ErrBadSignature
	}
	return nil
}
