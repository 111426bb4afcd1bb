package escrow

import "errors"

var (
	// ErrInvalidID indicates a release or buyer id is empty or too long.
	ErrInvalidID = errors.New("escrow: invalid identifier")

	// ErrTooManySplits indicates the split table exceeds MaxSplits.
	ErrTooManySplits = errors.New("escrow: too many payment splits")

	// ErrTotalOverflow indicates fee plus splits does not fit in 64 bits.
	ErrTotalOverflow = errors.New("escrow: total amount overflows")

	// ErrTotalMismatch indicates total != fee + sum(splits).
	ErrTotalMismatch = errors.New("escrow: total does not equal fee plus splits")

	// ErrNoAddress indicates no bump yields an off-curve address.
	ErrNoAddress = errors.New("escrow: no valid address for identity")

	// ErrInvalidEntryData indicates a persisted entry is malformed.
	ErrInvalidEntryData = errors.New("escrow: invalid entry data")

	// ErrEntryNotFound indicates no entry exists at the address.
	ErrEntryNotFound = errors.New("escrow: entry not found")

	// ErrInvalidGrantData indicates a persisted access grant is malformed.
	ErrInvalidGrantData = errors.New("escrow: invalid access grant data")

	// ErrGrantNotFound indicates no access grant exists at the address.
	ErrGrantNotFound = errors.New("escrow: access grant not found")

	// ErrGrantExists indicates an access grant was already created.
	ErrGrantExists = errors.New("escrow: access grant already exists")

	// ErrMarkerTooLong indicates the collectible marker exceeds its fixed width.
	ErrMarkerTooLong = errors.New("escrow: collectible marker too long")
)
