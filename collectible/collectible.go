// Package collectible mints one-of-one release collectibles and stores their
// metadata.
package collectible

import (
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/store"
)

const (
	MaxNameLen        = 32
	MaxSymbolLen      = 10
	MaxURILen         = 200
	MaxCreators       = 5
	MaxSellerFeeBps   = 10_000
	TotalCreatorShare = 100

	// MetadataSize is the accounted storage footprint of one metadata record.
	MetadataSize = 679

	// AssetPrefix prefixes every collectible asset id.
	AssetPrefix = "collectible:"
)

// Creator is one entry of a collectible's creator list.
type Creator struct {
	Key      []byte // compressed public key
	Share    uint8  // percent
	Verified bool
}

// Metadata describes a minted collectible.
type Metadata struct {
	Asset                ledger.AssetID
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	IsMutable            bool
	Creators             []Creator
	UpdateAuthority      []byte
	ReleaseID            string
	BuyerID              string
	Owner                ledger.Ref
}

// Validate checks field limits and the creator list.
func (m *Metadata) Validate() error {
	switch {
	case m.Name == "" || len(m.Name) > MaxNameLen:
		return fmt.Errorf("%w: name length %d", ErrInvalidMetadata, len(m.Name))
	case len(m.Symbol) > MaxSymbolLen:
		return fmt.Errorf("%w: symbol length %d", ErrInvalidMetadata, len(m.Symbol))
	case m.URI == "" || len(m.URI) > MaxURILen:
		return fmt.Errorf("%w: uri length %d", ErrInvalidMetadata, len(m.URI))
	case m.SellerFeeBasisPoints > MaxSellerFeeBps:
		return fmt.Errorf("%w: seller fee %d bps", ErrInvalidMetadata, m.SellerFeeBasisPoints)
	}
	return ValidateCreators(m.Creators)
}

// ValidateCreators checks count, keys and that shares sum to 100.
// An empty list is allowed.
func ValidateCreators(creators []Creator) error {
	if len(creators) == 0 {
		return nil
	}
	if len(creators) > MaxCreators {
		return fmt.Errorf("%w: %d creators, max %d", ErrInvalidCreators, len(creators), MaxCreators)
	}
	seen := make(map[string]bool, len(creators))
	total := 0
	for i, c := range creators {
		if _, err := ec.PublicKeyFromBytes(c.Key); err != nil {
			return fmt.Errorf("%w: creator %d key: %w", ErrInvalidCreators, i, err)
		}
		if seen[string(c.Key)] {
			return fmt.Errorf("%w: duplicate creator %x", ErrInvalidCreators, c.Key)
		}
		seen[string(c.Key)] = true
		total += int(c.Share)
	}
	if total != TotalCreatorShare {
		return fmt.Errorf("%w: shares sum to %d, want %d", ErrInvalidCreators, total, TotalCreatorShare)
	}
	return nil
}

// MarkVerified returns a copy of creators where only the creator whose key
// is authority is verified. Caller-supplied verified bits are ignored.
func MarkVerified(creators []Creator, authority *ec.PublicKey) []Creator {
	out := make([]Creator, len(creators))
	var auth []byte
	if authority != nil {
		auth = authority.Compressed()
	}
	for i, c := range creators {
		out[i] = Creator{Key: append([]byte(nil), c.Key...), Share: c.Share}
		out[i].Verified = auth != nil && string(c.Key) == string(auth)
	}
	return out
}

// ParseCreator parses "<hex pubkey>:<share>".
func ParseCreator(s string) (Creator, error) {
	keyHex, shareStr, ok := strings.Cut(s, ":")
	if !ok {
		return Creator{}, fmt.Errorf("%w: %q is not key:share", ErrInvalidCreators, s)
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return Creator{}, fmt.Errorf("%w: %w", ErrInvalidCreators, err)
	}
	var share uint8
	if _, err := fmt.Sscanf(shareStr, "%d", &share); err != nil {
		return Creator{}, fmt.Errorf("%w: share %q: %w", ErrInvalidCreators, shareStr, err)
	}
	return Creator{Key: key, Share: share}, nil
}

// Ledger is the asset surface a collectible is minted through.
type Ledger interface {
	CreateMint(asset ledger.AssetID, authority *ec.PublicKey) error
	OpenHolder(ref ledger.Ref, asset ledger.AssetID, owner *ec.PublicKey) (bool, error)
	MintTo(asset ledger.AssetID, to ledger.Ref, amount uint64, auth ledger.Signer) error
	RevokeMintAuthority(asset ledger.AssetID, auth ledger.Signer) error
}

// Registry stores collectible metadata inside one bbolt transaction.
type Registry struct {
	b     *bbolt.Bucket
	newID func() uuid.UUID
}

// NewRegistry binds a Registry to tx.
func NewRegistry(tx *bbolt.Tx) (*Registry, error) {
	b, err := store.Bucket(tx, store.BucketCollectibles)
	if err != nil {
		return nil, err
	}
	return &Registry{b: b, newID: uuid.New}, nil
}

// Minted reports what CreateAndAttach created.
type Minted struct {
	Asset    ledger.AssetID
	Holder   ledger.Ref
	Metadata *Metadata
}

// NewAssetID returns a fresh collectible asset id.
func (r *Registry) NewAssetID() ledger.AssetID {
	return ledger.AssetID(AssetPrefix + strings.ReplaceAll(r.newID().String(), "-", ""))
}

// CreateAndAttach creates a new collectible asset under authority, mints
// exactly one unit to owner's holder, stores meta and then revokes the mint
// authority so supply stays 1. Creators are re-marked with MarkVerified.
func (r *Registry) CreateAndAttach(l Ledger, meta Metadata, authority ledger.Signer, owner *ec.PublicKey) (*Minted, error) {
	if l == nil || authority == nil || owner == nil {
		return nil, fmt.Errorf("%w: ledger, authority or owner", ErrNilParam)
	}
	meta.Creators = MarkVerified(meta.Creators, authority.PubKey())
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	asset := r.NewAssetID()
	if r.b.Get([]byte(asset)) != nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, asset)
	}
	if err := l.CreateMint(asset, authority.PubKey()); err != nil {
		return nil, fmt.Errorf("collectible: create mint: %w", err)
	}
	holder := ledger.AssociatedRef(owner.Compressed(), asset)
	if _, err := l.OpenHolder(holder, asset, owner); err != nil {
		return nil, fmt.Errorf("collectible: open holder: %w", err)
	}
	if err := l.MintTo(asset, holder, 1, authority); err != nil {
		return nil, fmt.Errorf("collectible: mint: %w", err)
	}
	if err := l.RevokeMintAuthority(asset, authority); err != nil {
		return nil, fmt.Errorf("collectible: revoke authority: %w", err)
	}

	meta.Asset = asset
	meta.Owner = holder
	meta.UpdateAuthority = authority.PubKey().Compressed()
	data, err := store.EncodeGob(&meta)
	if err != nil {
		return nil, fmt.Errorf("collectible: encode: %w", err)
	}
	if err := r.b.Put([]byte(asset), data); err != nil {
		return nil, fmt.Errorf("collectible: put: %w", err)
	}
	return &Minted{Asset: asset, Holder: holder, Metadata: &meta}, nil
}

// Get returns the metadata of asset.
func (r *Registry) Get(asset ledger.AssetID) (*Metadata, error) {
	data := r.b.Get([]byte(asset))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, asset)
	}
	var m Metadata
	if err := store.DecodeGob(data, &m); err != nil {
		return nil, fmt.Errorf("collectible: decode: %w", err)
	}
	return &m, nil
}
