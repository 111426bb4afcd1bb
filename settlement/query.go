package settlement

import (
	"errors"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/admin"
	"github.com/bitfsorg/libsettle-go/collectible"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/store"
)

// Entry returns the escrow entry of a release and buyer.
func (e *Engine) Entry(releaseID, buyerID string) (*escrow.Entry, error) {
	var out *escrow.Entry
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.entry(releaseID, buyerID, &Result{})
		return err
	})
	return out, err
}

// Entries returns every open escrow entry.
func (e *Engine) Entries() ([]*escrow.Entry, error) {
	var out []*escrow.Entry
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.escrows.Entries()
		return err
	})
	return out, err
}

// Grant returns the access grant of a release and buyer.
func (e *Engine) Grant(releaseID, buyerID string) (*escrow.Grant, error) {
	var out *escrow.Grant
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.grant(releaseID, buyerID)
		return err
	})
	return out, err
}

// Grants returns every access grant.
func (e *Engine) Grants() ([]*escrow.Grant, error) {
	var out []*escrow.Grant
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.escrows.Grants()
		return err
	})
	return out, err
}

// HasAccess reports whether the buyer holds an unexpired grant for the
// release carrying every right in want.
func (e *Engine) HasAccess(releaseID, buyerID string, want escrow.Rights) (bool, error) {
	g, err := e.Grant(releaseID, buyerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !g.Expired(e.nowFunc()) && g.Rights.Has(want), nil
}

// Balance returns the balance held at ref.
func (e *Engine) Balance(ref ledger.Ref) (uint64, error) {
	var out uint64
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.book.Balance(ref)
		return err
	})
	return out, err
}

// Holders returns every ledger holder.
func (e *Engine) Holders() ([]*ledger.Holder, error) {
	var out []*ledger.Holder
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.book.Holders()
		return err
	})
	return out, err
}

// LineItems returns every open storage-deposit line item.
func (e *Engine) LineItems() ([]*reimburse.LineItem, error) {
	var out []*reimburse.LineItem
	err := e.view(func(t *txn) error {
		b, err := store.Bucket(t.tx, store.BucketDeposits)
		if err != nil {
			return err
		}
		out, err = reimburse.ListItems(b)
		return err
	})
	return out, err
}

// Account returns the account of id in role.
func (e *Engine) Account(role accounts.Role, id string) (*accounts.Account, error) {
	var out *accounts.Account
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.dir.Resolve(role, id)
		return err
	})
	return out, err
}

// Accounts returns every provisioned account.
func (e *Engine) Accounts() ([]*accounts.Account, error) {
	var out []*accounts.Account
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.dir.List()
		return err
	})
	return out, err
}

// Admins returns the administrator roster.
func (e *Engine) Admins() ([]*admin.Admin, error) {
	var out []*admin.Admin
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.admins.List()
		return err
	})
	return out, err
}

// Collectible returns the metadata of a minted collectible.
func (e *Engine) Collectible(asset ledger.AssetID) (*collectible.Metadata, error) {
	var out *collectible.Metadata
	err := e.view(func(t *txn) error {
		var err error
		out, err = t.nfts.Get(asset)
		return err
	})
	return out, err
}
