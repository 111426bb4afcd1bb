package ledger

import (
	"fmt"
	"math"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsettle-go/store"
)

const (
	// HolderSize is the accounted storage footprint of one holder record.
	HolderSize = 165

	// MintSize is the accounted storage footprint of one mint record.
	MintSize = 82
)

// Holder is one balance of one asset, owned by one key.
type Holder struct {
	Ref     Ref
	Asset   AssetID
	Owner   []byte // compressed public key allowed to debit
	Balance uint64
}

// Mint is the issuance record of an asset.
type Mint struct {
	Asset     AssetID
	Authority []byte // compressed public key; empty once revoked
	Supply    uint64
}

// TransferService is the asset movement surface the settlement engine consumes.
type TransferService interface {
	Transfer(from, to Ref, amount uint64, auth Signer) error
	MintTo(asset AssetID, to Ref, amount uint64, auth Signer) error
	Balance(ref Ref) (uint64, error)
}

// Book reads and writes holders and mints inside one bbolt transaction.
// Nothing a Book writes is visible until the transaction commits.
type Book struct {
	holders *bbolt.Bucket
	mints   *bbolt.Bucket
}

// Compile-time interface check.
var _ TransferService = (*Book)(nil)

// NewBook binds a Book to tx.
func NewBook(tx *bbolt.Tx) (*Book, error) {
	holders, err := store.Bucket(tx, store.BucketHolders)
	if err != nil {
		return nil, err
	}
	mints, err := store.Bucket(tx, store.BucketMints)
	if err != nil {
		return nil, err
	}
	return &Book{holders: holders, mints: mints}, nil
}

// CreateMint registers asset with authority. Re-registering with the same
// authority is a no-op.
func (b *Book) CreateMint(asset AssetID, authority *ec.PublicKey) error {
	if asset == "" {
		return fmt.Errorf("%w: asset", ErrNilParam)
	}
	if authority == nil {
		return fmt.Errorf("%w: authority", ErrNilParam)
	}
	auth := authority.Compressed()
	existing, err := b.Mint(asset)
	if err == nil {
		if string(existing.Authority) != string(auth) {
			return fmt.Errorf("%w: %s", ErrMintConflict, asset)
		}
		return nil
	}
	return b.putMint(&Mint{Asset: asset, Authority: auth})
}

// Mint returns the mint record of asset.
func (b *Book) Mint(asset AssetID) (*Mint, error) {
	data := b.mints.Get([]byte(asset))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, asset)
	}
	var m Mint
	if err := store.DecodeGob(data, &m); err != nil {
		return nil, fmt.Errorf("ledger: decode mint: %w", err)
	}
	return &m, nil
}

// RevokeMintAuthority removes the mint authority so supply is frozen.
func (b *Book) RevokeMintAuthority(asset AssetID, auth Signer) error {
	m, err := b.Mint(asset)
	if err != nil {
		return err
	}
	if len(m.Authority) == 0 {
		return fmt.Errorf("%w: %s", ErrMintAuthorityRevoked, asset)
	}
	if err := authorize(auth, m.Authority, authDigest(opRevoke, asset, Ref{}, Ref{}, m.Supply)); err != nil {
		return err
	}
	m.Authority = nil
	return b.putMint(m)
}

// OpenHolder creates the holder ref for asset owned by owner. Opening an
// existing holder with the same asset and owner is a no-op and reports
// created=false.
func (b *Book) OpenHolder(ref Ref, asset AssetID, owner *ec.PublicKey) (bool, error) {
	if owner == nil {
		return false, fmt.Errorf("%w: owner", ErrNilParam)
	}
	if ref.IsZero() {
		return false, fmt.Errorf("%w: zero reference", ErrInvalidRef)
	}
	if _, err := b.Mint(asset); err != nil {
		return false, err
	}
	ownerKey := owner.Compressed()
	existing, err := b.Holder(ref)
	if err == nil {
		if existing.Asset != asset || string(existing.Owner) != string(ownerKey) {
			return false, fmt.Errorf("%w: %s", ErrHolderConflict, ref)
		}
		return false, nil
	}
	return true, b.putHolder(&Holder{Ref: ref, Asset: asset, Owner: ownerKey})
}

// Holder returns the holder record for ref.
func (b *Book) Holder(ref Ref) (*Holder, error) {
	data := b.holders.Get(ref[:])
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrHolderNotFound, ref)
	}
	var h Holder
	if err := store.DecodeGob(data, &h); err != nil {
		return nil, fmt.Errorf("ledger: decode holder: %w", err)
	}
	return &h, nil
}

// Balance returns the balance held at ref.
func (b *Book) Balance(ref Ref) (uint64, error) {
	h, err := b.Holder(ref)
	if err != nil {
		return 0, err
	}
	return h.Balance, nil
}

// Transfer moves amount from one holder to another of the same asset.
// auth must be the owner of from. A zero amount is a no-op once authorized;
// a non-zero amount between a holder and itself fails ErrSelfTransfer.
func (b *Book) Transfer(from, to Ref, amount uint64, auth Signer) error {
	src, err := b.Holder(from)
	if err != nil {
		return err
	}
	dst, err := b.Holder(to)
	if err != nil {
		return err
	}
	if src.Asset != dst.Asset {
		return fmt.Errorf("%w: %s -> %s", ErrAssetMismatch, src.Asset, dst.Asset)
	}
	if err := authorize(auth, src.Owner, authDigest(opTransfer, src.Asset, from, to, amount)); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfTransfer, from)
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientFunds, from, src.Balance, amount)
	}
	if dst.Balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: credit to %s", ErrOverflow, to)
	}
	src.Balance -= amount
	dst.Balance += amount
	if err := b.putHolder(src); err != nil {
		return err
	}
	return b.putHolder(dst)
}

// MintTo issues amount new units of asset into to. auth must be the mint authority.
func (b *Book) MintTo(asset AssetID, to Ref, amount uint64, auth Signer) error {
	m, err := b.Mint(asset)
	if err != nil {
		return err
	}
	if len(m.Authority) == 0 {
		return fmt.Errorf("%w: %s", ErrMintAuthorityRevoked, asset)
	}
	dst, err := b.Holder(to)
	if err != nil {
		return err
	}
	if dst.Asset != asset {
		return fmt.Errorf("%w: holder %s holds %s, not %s", ErrAssetMismatch, to, dst.Asset, asset)
	}
	if err := authorize(auth, m.Authority, authDigest(opMint, asset, Ref{}, to, amount)); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if m.Supply > math.MaxUint64-amount || dst.Balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: mint %d %s", ErrOverflow, amount, asset)
	}
	m.Supply += amount
	dst.Balance += amount
	if err := b.putMint(m); err != nil {
		return err
	}
	return b.putHolder(dst)
}

// CloseHolder deletes an empty holder. auth must be its owner.
func (b *Book) CloseHolder(ref Ref, auth Signer) error {
	h, err := b.Holder(ref)
	if err != nil {
		return err
	}
	if err := authorize(auth, h.Owner, authDigest(opClose, h.Asset, ref, Ref{}, h.Balance)); err != nil {
		return err
	}
	if h.Balance != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrHolderNotEmpty, ref, h.Balance)
	}
	if err := b.holders.Delete(ref[:]); err != nil {
		return fmt.Errorf("ledger: delete holder: %w", err)
	}
	return nil
}

// Holders returns every holder record.
func (b *Book) Holders() ([]*Holder, error) {
	var out []*Holder
	err := b.holders.ForEach(func(_, v []byte) error {
		var h Holder
		if err := store.DecodeGob(v, &h); err != nil {
			return fmt.Errorf("ledger: decode holder in list: %w", err)
		}
		out = append(out, &h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Book) putHolder(h *Holder) error {
	data, err := store.EncodeGob(h)
	if err != nil {
		return fmt.Errorf("ledger: encode holder: %w", err)
	}
	if err := b.holders.Put(h.Ref[:], data); err != nil {
		return fmt.Errorf("ledger: put holder: %w", err)
	}
	return nil
}

func (b *Book) putMint(m *Mint) error {
	data, err := store.EncodeGob(m)
	if err != nil {
		return fmt.Errorf("ledger: encode mint: %w", err)
	}
	if err := b.mints.Put([]byte(m.Asset), data); err != nil {
		return fmt.Errorf("ledger: put mint: %w", err)
	}
	return nil
}
