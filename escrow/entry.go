package escrow

import (
	"fmt"
	"math"
	"strings"

	"github.com/bitfsorg/libsettle-go/ledger"
)

// MaxSplits is the capacity of the persisted split table.
const MaxSplits = 10

// Split is one recipient's share of a purchase.
type Split struct {
	Recipient       ledger.Ref // holder credited at fulfill
	RewardRecipient ledger.Ref // creator-reward holder credited at complete
	Amount          uint64
}

// Flags are the monotonic progress bits of an entry. Bits are only ever set.
type Flags uint8

const (
	FlagPaymentsFulfilled Flags = 1 << iota
	// FlagCollectibleMinted marks the deliverable as issued: a collectible
	// minted, or the access grant created on the access branch.
	FlagCollectibleMinted
	FlagRewardsPaid
	FlagFulfilled
)

// Has reports whether every bit in x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// String lists the set flags.
func (f Flags) String() string {
	var names []string
	for _, n := range []struct {
		flag Flags
		name string
	}{
		{FlagPaymentsFulfilled, "payments"},
		{FlagCollectibleMinted, "minted"},
		{FlagRewardsPaid, "rewards"},
		{FlagFulfilled, "fulfilled"},
	} {
		if f.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Delivery selects what fulfill issues to the buyer.
type Delivery uint8

const (
	DeliveryCollectible Delivery = iota
	DeliveryAccess
)

// String returns "collectible" or "access".
func (d Delivery) String() string {
	if d == DeliveryAccess {
		return "access"
	}
	return "collectible"
}

// AccessTerms are the grant parameters recorded at open on the access branch.
type AccessTerms struct {
	Kind      GrantKind
	Rights    Rights
	ExpiresAt int64 // unix seconds; 0 means no expiry
}

// Entry is the custodial record of one in-flight purchase.
type Entry struct {
	Address      Address
	Bump         uint8 // derivation proof
	ReleaseID    string
	BuyerID      string
	Fee          uint64
	Splits       []Split
	Total        uint64
	Flags        Flags
	PurchaseDate int64
	Custody      ledger.Ref // holder of the locked funds
	Delivery     Delivery
	Access       AccessTerms
	Collectible  ledger.AssetID // minted collectible asset, once issued
}

// TotalOf returns fee + sum(splits) or ErrTotalOverflow.
func TotalOf(fee uint64, splits []Split) (uint64, error) {
	total := fee
	for i, s := range splits {
		if total > math.MaxUint64-s.Amount {
			return 0, fmt.Errorf("%w: at split %d", ErrTotalOverflow, i)
		}
		total += s.Amount
	}
	return total, nil
}

// SplitSum returns sum(splits.amount). Callers validate overflow with TotalOf.
func SplitSum(splits []Split) uint64 {
	var sum uint64
	for _, s := range splits {
		sum += s.Amount
	}
	return sum
}

// Validate checks the entry's structural invariants.
func (e *Entry) Validate() error {
	if err := checkNormalized(e.ReleaseID); err != nil {
		return fmt.Errorf("release id: %w", err)
	}
	if err := checkNormalized(e.BuyerID); err != nil {
		return fmt.Errorf("buyer id: %w", err)
	}
	if len(e.Splits) > MaxSplits {
		return fmt.Errorf("%w: %d > %d", ErrTooManySplits, len(e.Splits), MaxSplits)
	}
	total, err := TotalOf(e.Fee, e.Splits)
	if err != nil {
		return err
	}
	if total != e.Total {
		return fmt.Errorf("%w: %d != %d", ErrTotalMismatch, e.Total, total)
	}
	if len(e.Collectible) > markerSize {
		return fmt.Errorf("%w: %d bytes", ErrMarkerTooLong, len(e.Collectible))
	}
	return nil
}

// SetFlags sets bits in the entry's flags. Bits already set stay set.
func (e *Entry) SetFlags(x Flags) { e.Flags |= x }

// Funded reports whether the entry has locked funds.
func (e *Entry) Funded() bool { return e.Total > 0 }

// State names the lifecycle state of the entry.
func (e *Entry) State() string {
	switch {
	case !e.Funded():
		return "empty"
	case e.Flags.Has(FlagFulfilled):
		return "fulfilled"
	default:
		return "funded"
	}
}
