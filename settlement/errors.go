package settlement

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/admin"
	"github.com/bitfsorg/libsettle-go/collectible"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/rewards"
	"github.com/bitfsorg/libsettle-go/splits"
)

var (
	// ErrUnauthorized indicates the caller is not an administrator or does not hold the key it claims.
	ErrUnauthorized = errors.New("settlement: unauthorized")

	// ErrInvalidUser indicates the buyer or artist account does not exist or is malformed.
	ErrInvalidUser = errors.New("settlement: invalid user")

	// ErrInvalidInput indicates a malformed request argument.
	ErrInvalidInput = errors.New("settlement: invalid input")

	// ErrInvalidSplitTotal indicates fee plus splits does not fit in 64 bits.
	ErrInvalidSplitTotal = errors.New("settlement: invalid split total")

	// ErrInvalidPaymentSplits indicates the split table exceeds the configured maximum.
	ErrInvalidPaymentSplits = errors.New("settlement: invalid payment splits")

	// ErrNotEnoughAccounts indicates fewer recipient references than splits were supplied.
	ErrNotEnoughAccounts = errors.New("settlement: not enough accounts")

	// ErrEscrowAlreadyFulfilled indicates fulfill ran on an entry that is already fulfilled.
	ErrEscrowAlreadyFulfilled = errors.New("settlement: escrow already fulfilled")

	// ErrEscrowNotFulfilled indicates complete ran before fulfill.
	ErrEscrowNotFulfilled = errors.New("settlement: escrow not fulfilled")

	// ErrPaymentsNotFulfilled indicates complete ran before the splits were paid.
	ErrPaymentsNotFulfilled = errors.New("settlement: payments not fulfilled")

	// ErrCollectibleNotMinted indicates complete ran before the deliverable was issued.
	ErrCollectibleNotMinted = errors.New("settlement: collectible not minted")

	// ErrRewardsAlreadyPaid indicates rewards were already issued for the entry.
	ErrRewardsAlreadyPaid = errors.New("settlement: rewards already paid")

	// ErrAccessGrantExists indicates the buyer already holds an access grant for the release.
	ErrAccessGrantExists = errors.New("settlement: access grant already exists")

	// ErrInsufficientFunds indicates a holder balance is below the amount to move.
	ErrInsufficientFunds = errors.New("settlement: insufficient funds")

	// ErrInvalidPaymentReceiver indicates a supplied reference differs from the recorded split.
	ErrInvalidPaymentReceiver = errors.New("settlement: invalid payment receiver")

	// ErrTransferFailed indicates the asset ledger rejected a transfer or mint.
	ErrTransferFailed = errors.New("settlement: transfer failed")

	// ErrCloseAccountFailed indicates the custodial holder could not be closed.
	ErrCloseAccountFailed = errors.New("settlement: close account failed")

	// ErrTokenAccountNotEmpty indicates the custodial holder still holds funds.
	ErrTokenAccountNotEmpty = errors.New("settlement: token account not empty")

	// ErrNotFound indicates the escrow entry, grant or record does not exist.
	ErrNotFound = errors.New("settlement: not found")

	// ErrAdminAlreadyExists indicates the key is already an administrator.
	ErrAdminAlreadyExists = errors.New("settlement: admin already exists")

	// ErrAdminNotFound indicates the key is not an administrator.
	ErrAdminNotFound = errors.New("settlement: admin not found")

	// ErrCannotRemoveLastAdmin indicates the roster would become empty.
	ErrCannotRemoveLastAdmin = errors.New("settlement: cannot remove last admin")
)

// Class groups errors by how a caller should react to them.
type Class int

const (
	ClassNone Class = iota
	ClassAuthorization
	ClassValidation
	ClassState
	ClassFunds
	ClassResource
	ClassNotFound
	ClassInternal
)

// String returns the lower-case class name.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassAuthorization:
		return "authorization"
	case ClassValidation:
		return "validation"
	case ClassState:
		return "state"
	case ClassFunds:
		return "funds"
	case ClassResource:
		return "resource"
	case ClassNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var classes = []struct {
	err   error
	class Class
}{
	{ErrUnauthorized, ClassAuthorization},
	{ErrInvalidUser, ClassAuthorization},
	{ErrInvalidInput, ClassValidation},
	{ErrInvalidSplitTotal, ClassValidation},
	{ErrInvalidPaymentSplits, ClassValidation},
	{ErrNotEnoughAccounts, ClassValidation},
	{ErrEscrowAlreadyFulfilled, ClassState},
	{ErrEscrowNotFulfilled, ClassState},
	{ErrPaymentsNotFulfilled, ClassState},
	{ErrCollectibleNotMinted, ClassState},
	{ErrRewardsAlreadyPaid, ClassState},
	{ErrAccessGrantExists, ClassState},
	{ErrAdminAlreadyExists, ClassState},
	{ErrAdminNotFound, ClassState},
	{ErrCannotRemoveLastAdmin, ClassState},
	{ErrInsufficientFunds, ClassFunds},
	{ErrInvalidPaymentReceiver, ClassFunds},
	{ErrTransferFailed, ClassFunds},
	{ErrCloseAccountFailed, ClassResource},
	{ErrTokenAccountNotEmpty, ClassResource},
	{ErrNotFound, ClassNotFound},
}

// ClassOf returns the class of err. A nil error is ClassNone and an error
// outside the settlement set is ClassInternal.
func ClassOf(err error) Class {
	if err == nil {
		return ClassNone
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return ClassInternal
}

// translations maps lower-level sentinels to the public error set. The
// first match wins, so more specific causes come first.
var translations = []struct {
	cause  error
	public error
}{
	{admin.ErrUnauthorized, ErrUnauthorized},
	{admin.ErrAlreadyBootstrapped, ErrUnauthorized},
	{admin.ErrAdminExists, ErrAdminAlreadyExists},
	{admin.ErrAdminNotFound, ErrAdminNotFound},
	{admin.ErrCannotRemoveLastAdmin, ErrCannotRemoveLastAdmin},

	{accounts.ErrAccountNotFound, ErrInvalidUser},
	{accounts.ErrAccountExists, ErrInvalidUser},
	{accounts.ErrInvalidUser, ErrInvalidUser},
	{accounts.ErrInvalidSlot, ErrInvalidInput},
	{accounts.ErrInvalidHandle, ErrInvalidInput},
	{accounts.ErrDNSLookupFailed, ErrInvalidInput},
	{accounts.ErrDNSSECValidationFailed, ErrInvalidInput},
	{accounts.ErrNoPayoutRecord, ErrInvalidInput},

	{splits.ErrInvalidPaymentSplits, ErrInvalidPaymentSplits},
	{splits.ErrInvalidSplitTotal, ErrInvalidSplitTotal},
	{splits.ErrNotEnoughAccounts, ErrNotEnoughAccounts},
	{splits.ErrUnexpectedAccounts, ErrInvalidInput},
	{splits.ErrInvalidPaymentReceiver, ErrInvalidPaymentReceiver},
	{splits.ErrZeroReference, ErrInvalidInput},
	{splits.ErrSourceRecipient, ErrInvalidPaymentSplits},

	{escrow.ErrTooManySplits, ErrInvalidPaymentSplits},
	{escrow.ErrTotalOverflow, ErrInvalidSplitTotal},
	{escrow.ErrTotalMismatch, ErrInvalidSplitTotal},
	{escrow.ErrInvalidID, ErrInvalidInput},
	{escrow.ErrInvalidGrantData, ErrInvalidInput},
	{escrow.ErrMarkerTooLong, ErrInvalidInput},
	{escrow.ErrEntryNotFound, ErrNotFound},
	{escrow.ErrGrantNotFound, ErrNotFound},
	{escrow.ErrGrantExists, ErrAccessGrantExists},

	{collectible.ErrInvalidMetadata, ErrInvalidInput},
	{collectible.ErrInvalidCreators, ErrInvalidInput},
	{collectible.ErrNotFound, ErrNotFound},

	{rewards.ErrRefCount, ErrNotEnoughAccounts},

	{ledger.ErrInsufficientFunds, ErrInsufficientFunds},
	{ledger.ErrHolderNotEmpty, ErrTokenAccountNotEmpty},
	{ledger.ErrInvalidRef, ErrInvalidInput},
	{ledger.ErrHolderNotFound, ErrTransferFailed},
	{ledger.ErrHolderConflict, ErrTransferFailed},
	{ledger.ErrMintNotFound, ErrTransferFailed},
	{ledger.ErrMintConflict, ErrTransferFailed},
	{ledger.ErrMintAuthorityRevoked, ErrTransferFailed},
	{ledger.ErrAssetMismatch, ErrTransferFailed},
	{ledger.ErrUnauthorized, ErrTransferFailed},
	{ledger.ErrBadSignature, ErrTransferFailed},
	{ledger.ErrOverflow, ErrTransferFailed},
	{ledger.ErrSelfTransfer, ErrInvalidInput},

	{reimburse.ErrOverflow, ErrInvalidInput},
	{reimburse.ErrNoLineItem, ErrNotFound},
}

// translate wraps err with its public counterpart. Both stay in the chain.
func translate(err error) error {
	if err == nil || ClassOf(err) != ClassInternal {
		return err
	}
	for _, t := range translations {
		if errors.Is(err, t.cause) {
			return fmt.Errorf("%w: %w", t.public, err)
		}
	}
	return err
}
