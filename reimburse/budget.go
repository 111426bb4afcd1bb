// Package reimburse accounts for storage deposits and operator
// reimbursement of administrators.
//
// Every persistent record an operation creates carries a deposit, paid by
// the acting administrator into the storage reserve and recorded as a line
// item. Deleting the record releases the line item's deposit from the
// reserve to the operator. After an operation's primary effect succeeds, the
// operator pays the administrator back the deposits it fronted plus any
// declared compensation.
package reimburse

import (
	"encoding/hex"
	"fmt"
	"math"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/store"
)

// Kind names the record type of a line item.
type Kind string

const (
	KindEntry       Kind = "escrow"
	KindGrant       Kind = "grant"
	KindHolder      Kind = "holder"
	KindMint        Kind = "mint"
	KindCollectible Kind = "collectible"
	KindAccount     Kind = "account"
	KindAdmin       Kind = "admin"
)

// LineItem is the deposit reserved for one persistent record.
type LineItem struct {
	Kind      Kind
	Record    string // hex record key
	Size      int
	Deposit   uint64
	Payer     ledger.Ref
	CreatedAt int64
}

// Transferer moves funds between holders.
type Transferer interface {
	Transfer(from, to ledger.Ref, amount uint64, auth ledger.Signer) error
}

// Budget reserves and releases storage deposits inside one transaction.
type Budget struct {
	xfer        Transferer
	items       *bbolt.Bucket
	rate        Rate
	reserve     ledger.Ref
	reserveAuth ledger.Signer
}

// NewBudget binds a Budget to tx. reserve is the storage-reserve holder and
// reserveAuth its owner.
func NewBudget(tx *bbolt.Tx, xfer Transferer, rate Rate, reserve ledger.Ref, reserveAuth ledger.Signer) (*Budget, error) {
	if xfer == nil || reserveAuth == nil {
		return nil, fmt.Errorf("%w: transferer or reserve signer", ErrNilParam)
	}
	if err := rate.Validate(); err != nil {
		return nil, err
	}
	items, err := store.Bucket(tx, store.BucketDeposits)
	if err != nil {
		return nil, err
	}
	return &Budget{xfer: xfer, items: items, rate: rate, reserve: reserve, reserveAuth: reserveAuth}, nil
}

// Rate returns the schedule the budget prices records with.
func (b *Budget) Rate() Rate { return b.rate }

func itemKey(kind Kind, record []byte) []byte {
	return []byte(string(kind) + ":" + hex.EncodeToString(record))
}

// Reserve charges the deposit for a size-byte record from payer into the
// reserve and records the line item. It returns the deposit.
func (b *Budget) Reserve(kind Kind, record []byte, size int, payer ledger.Ref, payerAuth ledger.Signer, now int64) (uint64, error) {
	key := itemKey(kind, record)
	if b.items.Get(key) != nil {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyReserved, key)
	}
	deposit := b.rate.Deposit(size)
	if err := b.xfer.Transfer(payer, b.reserve, deposit, payerAuth); err != nil {
		return 0, fmt.Errorf("reimburse: reserve %s: %w", key, err)
	}
	item := &LineItem{
		Kind:      kind,
		Record:    hex.EncodeToString(record),
		Size:      size,
		Deposit:   deposit,
		Payer:     payer,
		CreatedAt: now,
	}
	data, err := store.EncodeGob(item)
	if err != nil {
		return 0, fmt.Errorf("reimburse: encode line item: %w", err)
	}
	if err := b.items.Put(key, data); err != nil {
		return 0, fmt.Errorf("reimburse: put line item: %w", err)
	}
	return deposit, nil
}

// Release pays the record's deposit from the reserve to to and removes the
// line item. It returns the released deposit.
func (b *Budget) Release(kind Kind, record []byte, to ledger.Ref) (uint64, error) {
	item, err := b.Item(kind, record)
	if err != nil {
		return 0, err
	}
	if err := b.xfer.Transfer(b.reserve, to, item.Deposit, b.reserveAuth); err != nil {
		return 0, fmt.Errorf("reimburse: release %s:%s: %w", kind, item.Record, err)
	}
	if err := b.items.Delete(itemKey(kind, record)); err != nil {
		return 0, fmt.Errorf("reimburse: delete line item: %w", err)
	}
	return item.Deposit, nil
}

// Item returns the line item of a record.
func (b *Budget) Item(kind Kind, record []byte) (*LineItem, error) {
	data := b.items.Get(itemKey(kind, record))
	if data == nil {
		return nil, fmt.Errorf("%w: %s:%x", ErrNoLineItem, kind, record)
	}
	var item LineItem
	if err := store.DecodeGob(data, &item); err != nil {
		return nil, fmt.Errorf("reimburse: decode line item: %w", err)
	}
	return &item, nil
}

// Items returns every open line item.
func (b *Budget) Items() ([]*LineItem, error) {
	return ListItems(b.items)
}

// ListItems decodes every line item in bucket.
func ListItems(bucket *bbolt.Bucket) ([]*LineItem, error) {
	var out []*LineItem
	err := bucket.ForEach(func(_, v []byte) error {
		var item LineItem
		if err := store.DecodeGob(v, &item); err != nil {
			return fmt.Errorf("reimburse: decode line item in list: %w", err)
		}
		out = append(out, &item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reimburse pays deposit + compensation from the operator holder to the
// administrator holder. It must run after the operation's primary effect;
// a shortfall fails the whole call rather than paying part.
func Reimburse(xfer Transferer, operator ledger.Ref, operatorAuth ledger.Signer, admin ledger.Ref, deposit, compensation uint64) (uint64, error) {
	if deposit > math.MaxUint64-compensation {
		return 0, fmt.Errorf("%w: deposit %d + compensation %d", ErrOverflow, deposit, compensation)
	}
	amount := deposit + compensation
	if amount == 0 {
		return 0, nil
	}
	if err := xfer.Transfer(operator, admin, amount, operatorAuth); err != nil {
		return 0, fmt.Errorf("reimburse: pay administrator: %w", err)
	}
	return amount, nil
}
