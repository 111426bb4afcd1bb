// Package accounts provisions buyer and artist accounts and resolves the
// holding references settlement pays into.
//
// Each account owns custodial default holders derived from a per-account
// custody key. An account may override a default with a custom reference,
// set directly or resolved from a DNS payout handle.
package accounts

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/store"
)

// Role distinguishes buyers from artists.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleArtist
)

// String returns "user" or "artist".
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleArtist:
		return "artist"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole parses "user" or "artist".
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "artist":
		return RoleArtist, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, s)
}

// Slot names one holding reference of an account.
type Slot uint8

const (
	SlotPayment Slot = iota + 1
	SlotListener
	SlotCreator
)

// String returns the slot name.
func (s Slot) String() string {
	switch s {
	case SlotPayment:
		return "payment"
	case SlotListener:
		return "listener"
	case SlotCreator:
		return "creator"
	default:
		return fmt.Sprintf("slot(%d)", uint8(s))
	}
}

// ParseSlot parses "payment", "listener" or "creator".
func ParseSlot(s string) (Slot, error) {
	switch s {
	case "payment":
		return SlotPayment, nil
	case "listener":
		return SlotListener, nil
	case "creator":
		return SlotCreator, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, s)
}

// Assets names the assets an account holds.
type Assets struct {
	Payment  ledger.AssetID
	Listener ledger.AssetID
	Creator  ledger.AssetID
}

// RecordSize is the accounted storage footprint of one account record.
const RecordSize = 1 + escrow.IDSize + // role + id
	33 + 33 + // custody + auth
	ledger.RefSize*6 + // three defaults, three customs
	64 + // payout handle
	8 + 8 + 8 // fees waived, waived count, created at

// Account is a provisioned buyer or artist.
type Account struct {
	ID      string
	Role    Role
	Custody []byte // compressed key owning the default holders
	Auth    []byte // optional compressed wallet key allowed to change custom refs

	Payment  ledger.Ref
	Listener ledger.Ref // users only
	Creator  ledger.Ref

	Custom map[Slot]ledger.Ref

	PayoutHandle string
	FeesWaived   uint64
	WaivedCount  uint64
	CreatedAt    int64
}

// Slots lists the slots the role owns.
func (r Role) Slots() []Slot {
	if r == RoleUser {
		return []Slot{SlotPayment, SlotListener, SlotCreator}
	}
	return []Slot{SlotPayment, SlotCreator}
}

// HasSlot reports whether the role owns slot.
func (r Role) HasSlot(slot Slot) bool {
	for _, s := range r.Slots() {
		if s == slot {
			return true
		}
	}
	return false
}

// Default returns the custodial default reference of slot.
func (a *Account) Default(slot Slot) (ledger.Ref, error) {
	if !a.Role.HasSlot(slot) {
		return ledger.Ref{}, fmt.Errorf("%w: %s has no %s holder", ErrInvalidSlot, a.Role, slot)
	}
	switch slot {
	case SlotPayment:
		return a.Payment, nil
	case SlotListener:
		return a.Listener, nil
	default:
		return a.Creator, nil
	}
}

// Ref returns the effective reference of slot: the custom one when set,
// the custodial default otherwise.
func (a *Account) Ref(slot Slot) (ledger.Ref, error) {
	if r, ok := a.Custom[slot]; ok && !r.IsZero() {
		return r, nil
	}
	return a.Default(slot)
}

// Directory reads and writes accounts inside one bbolt transaction.
type Directory struct {
	b *bbolt.Bucket
}

// NewDirectory binds a Directory to tx.
func NewDirectory(tx *bbolt.Tx) (*Directory, error) {
	b, err := store.Bucket(tx, store.BucketAccounts)
	if err != nil {
		return nil, err
	}
	return &Directory{b: b}, nil
}

func accountKey(role Role, id string) []byte {
	return []byte(role.String() + "/" + id)
}

// Resolve returns the account of id in role.
func (d *Directory) Resolve(role Role, id string) (*Account, error) {
	norm, err := escrow.NormalizeID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	data := d.b.Get(accountKey(role, norm))
	if data == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrAccountNotFound, role, norm)
	}
	var a Account
	if err := store.DecodeGob(data, &a); err != nil {
		return nil, fmt.Errorf("accounts: decode: %w", err)
	}
	return &a, nil
}

// Put writes a.
func (d *Directory) Put(a *Account) error {
	data, err := store.EncodeGob(a)
	if err != nil {
		return fmt.Errorf("accounts: encode: %w", err)
	}
	if err := d.b.Put(accountKey(a.Role, a.ID), data); err != nil {
		return fmt.Errorf("accounts: put: %w", err)
	}
	return nil
}

// List returns every account.
func (d *Directory) List() ([]*Account, error) {
	var out []*Account
	err := d.b.ForEach(func(_, v []byte) error {
		var a Account
		if err := store.DecodeGob(v, &a); err != nil {
			return fmt.Errorf("accounts: decode in list: %w", err)
		}
		out = append(out, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HolderOpener creates ledger holders.
type HolderOpener interface {
	OpenHolder(ref ledger.Ref, asset ledger.AssetID, owner *ec.PublicKey) (bool, error)
}

// Provisioned reports what Provision did.
type Provisioned struct {
	Account *Account
	Created bool
	Holders int // holders newly opened
}

// Provision creates the account of id in role with default holders owned by
// custody. Provisioning an existing account with the same custody key is a
// no-op.
func (d *Directory) Provision(book HolderOpener, role Role, id string, custody, auth *ec.PublicKey, assets Assets, now int64) (*Provisioned, error) {
	if custody == nil {
		return nil, fmt.Errorf("%w: custody key", ErrNilParam)
	}
	if role != RoleUser && role != RoleArtist {
		return nil, fmt.Errorf("%w: role %d", ErrInvalidUser, role)
	}
	norm, err := escrow.NormalizeID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}
	owner := custody.Compressed()
	if existing, err := d.Resolve(role, norm); err == nil {
		if string(existing.Custody) != string(owner) {
			return nil, fmt.Errorf("%w: %s %s", ErrAccountExists, role, norm)
		}
		return &Provisioned{Account: existing}, nil
	}

	a := &Account{ID: norm, Role: role, Custody: owner, CreatedAt: now, Custom: map[Slot]ledger.Ref{}}
	if auth != nil {
		a.Auth = auth.Compressed()
	}
	opened := 0
	open := func(asset ledger.AssetID) (ledger.Ref, error) {
		ref := ledger.AssociatedRef(owner, asset)
		created, err := book.OpenHolder(ref, asset, custody)
		if err != nil {
			return ledger.Ref{}, fmt.Errorf("accounts: open %s holder: %w", asset, err)
		}
		if created {
			opened++
		}
		return ref, nil
	}
	if a.Payment, err = open(assets.Payment); err != nil {
		return nil, err
	}
	if a.Creator, err = open(assets.Creator); err != nil {
		return nil, err
	}
	if role == RoleUser {
		if a.Listener, err = open(assets.Listener); err != nil {
			return nil, err
		}
	}
	if err := d.Put(a); err != nil {
		return nil, err
	}
	return &Provisioned{Account: a, Created: true, Holders: opened}, nil
}

// SetCustomRef overrides slot of the account with ref. A zero ref clears
// the override.
func (d *Directory) SetCustomRef(role Role, id string, slot Slot, ref ledger.Ref) (*Account, error) {
	a, err := d.Resolve(role, id)
	if err != nil {
		return nil, err
	}
	if !role.HasSlot(slot) {
		return nil, fmt.Errorf("%w: %s has no %s holder", ErrInvalidSlot, role, slot)
	}
	if a.Custom == nil {
		a.Custom = map[Slot]ledger.Ref{}
	}
	if ref.IsZero() {
		delete(a.Custom, slot)
	} else {
		a.Custom[slot] = ref
	}
	return a, d.Put(a)
}

// SetPayoutHandle records the handle a custom payment ref was resolved from.
func (d *Directory) SetPayoutHandle(role Role, id string, handle string) error {
	a, err := d.Resolve(role, id)
	if err != nil {
		return err
	}
	a.PayoutHandle = handle
	return d.Put(a)
}

// RecordFeeWaiver adds amount to the account's waived fees and bumps the
// waiver count.
func (d *Directory) RecordFeeWaiver(role Role, id string, amount uint64) (*Account, error) {
	a, err := d.Resolve(role, id)
	if err != nil {
		return nil, err
	}
	a.FeesWaived += amount
	a.WaivedCount++
	return a, d.Put(a)
}

// CanEdit reports whether key may change the account's custom references.
func (a *Account) CanEdit(key *ec.PublicKey) bool {
	return key != nil && len(a.Auth) > 0 && string(a.Auth) == string(key.Compressed())
}
