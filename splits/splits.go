// Package splits validates payment split tables and walks them against
// caller-supplied recipient references.
//
// A supplied reference is never trusted on its own: the walk compares it,
// element by element, with the reference recorded when funds were locked,
// and authorizes the payment for an element only after that element matched.
package splits

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
)

// Field selects which recorded reference of a split a walk checks.
type Field int

const (
	// Recipient checks the payment recipient (fulfill).
	Recipient Field = iota
	// RewardRecipient checks the creator-reward recipient (complete).
	RewardRecipient
)

func (f Field) of(s escrow.Split) ledger.Ref {
	if f == RewardRecipient {
		return s.RewardRecipient
	}
	return s.Recipient
}

// ValidateTable checks a split table before any funds move and returns
// fee + sum(amounts). limit bounds the table length and is capped at
// escrow.MaxSplits.
func ValidateTable(fee uint64, table []escrow.Split, limit int) (uint64, error) {
	if limit > escrow.MaxSplits || limit <= 0 {
		limit = escrow.MaxSplits
	}
	if len(table) > limit {
		return 0, fmt.Errorf("%w: %d splits, max %d", ErrInvalidPaymentSplits, len(table), limit)
	}
	for i, s := range table {
		if s.Recipient.IsZero() {
			return 0, fmt.Errorf("%w: split %d recipient", ErrZeroReference, i)
		}
		if s.RewardRecipient.IsZero() {
			return 0, fmt.Errorf("%w: split %d reward recipient", ErrZeroReference, i)
		}
	}
	total, err := escrow.TotalOf(fee, table)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSplitTotal, err)
	}
	return total, nil
}

// ExcludeSource fails when any split would pay source, the holder its
// amounts are drawn from.
func ExcludeSource(table []escrow.Split, source ledger.Ref) error {
	for i, s := range table {
		if s.Recipient == source {
			return fmt.Errorf("%w: split %d pays %s", ErrSourceRecipient, i, source)
		}
	}
	return nil
}

// Payee performs the effect for split i once its reference has matched.
type Payee func(i int, s escrow.Split) error

// Walk compares refs with table in lockstep on field and calls pay for
// every matching split with a non-zero amount.
//
// A length mismatch fails before pay is ever called. A value mismatch stops
// the walk at the first divergent element; pay has run for earlier elements
// only, and the caller's transaction decides whether those survive.
// Walk returns the sum of amounts handed to pay.
func Walk(table []escrow.Split, refs []ledger.Ref, field Field, pay Payee) (uint64, error) {
	if len(refs) < len(table) {
		return 0, fmt.Errorf("%w: got %d, need %d", ErrNotEnoughAccounts, len(refs), len(table))
	}
	if len(refs) > len(table) {
		return 0, fmt.Errorf("%w: got %d, need %d", ErrUnexpectedAccounts, len(refs), len(table))
	}
	var paid uint64
	for i, s := range table {
		want := field.of(s)
		if refs[i] != want {
			return paid, &ReceiverError{Index: i, Want: want, Got: refs[i]}
		}
		if s.Amount == 0 {
			continue
		}
		if err := pay(i, s); err != nil {
			return paid, err
		}
		paid += s.Amount
	}
	return paid, nil
}

// Match checks refs against table on field without paying anything.
func Match(table []escrow.Split, refs []ledger.Ref, field Field) error {
	_, err := Walk(table, refs, field, func(int, escrow.Split) error { return nil })
	return err
}

// ReceiverError reports the first split whose supplied reference diverged.
type ReceiverError struct {
	Index int
	Want  ledger.Ref
	Got   ledger.Ref
}

func (e *ReceiverError) Error() string {
	return fmt.Sprintf("%s: split %d expected %s, got %s", ErrInvalidPaymentReceiver, e.Index, e.Want, e.Got)
}

// Unwrap lets errors.Is match ErrInvalidPaymentReceiver.
func (e *ReceiverError) Unwrap() error { return ErrInvalidPaymentReceiver }

// MismatchIndex returns the split index of a ReceiverError in err's chain, or -1.
func MismatchIndex(err error) int {
	var re *ReceiverError
	if errors.As(err, &re) {
		return re.Index
	}
	return -1
}
