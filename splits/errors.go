package splits

import "errors"

var (
	// ErrInvalidPaymentSplits indicates the split table exceeds the configured maximum.
	ErrInvalidPaymentSplits = errors.New("splits: too many payment splits")

	// ErrInvalidSplitTotal indicates fee plus splits overflows or does not match.
	ErrInvalidSplitTotal = errors.New("splits: invalid split total")

	// ErrNotEnoughAccounts indicates fewer references were supplied than splits.
	ErrNotEnoughAccounts = errors.New("splits: not enough recipient references")

	// ErrUnexpectedAccounts indicates more references were supplied than splits.
	ErrUnexpectedAccounts = errors.New("splits: more recipient references than splits")

	// ErrInvalidPaymentReceiver indicates a supplied reference differs from the recorded one.
	ErrInvalidPaymentReceiver = errors.New("splits: recipient reference does not match split table")

	// ErrZeroReference indicates a split names the zero holding reference.
	ErrZeroReference = errors.New("splits: zero recipient reference")

	// ErrSourceRecipient indicates a split pays the holder the funds are drawn from.
	ErrSourceRecipient = errors.New("splits: recipient is the paying holder")
)
