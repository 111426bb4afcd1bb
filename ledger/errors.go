package ledger

import "errors"

var (
	// ErrInvalidRef indicates a holding reference is malformed.
	ErrInvalidRef = errors.New("ledger: invalid holding reference")

	// ErrHolderNotFound indicates no holder exists for the reference.
	ErrHolderNotFound = errors.New("ledger: holder not found")

	// ErrHolderConflict indicates a holder exists with a different asset or owner.
	ErrHolderConflict = errors.New("ledger: holder already exists with different asset or owner")

	// ErrHolderNotEmpty indicates a holder with a non-zero balance cannot be closed.
	ErrHolderNotEmpty = errors.New("ledger: holder balance is not zero")

	// ErrMintNotFound indicates the asset has no mint record.
	ErrMintNotFound = errors.New("ledger: mint not found")

	// ErrMintConflict indicates the asset is already minted under a different authority.
	ErrMintConflict = errors.New("ledger: mint already exists with different authority")

	// ErrMintAuthorityRevoked indicates the asset can no longer be minted.
	ErrMintAuthorityRevoked = errors.New("ledger: mint authority revoked")

	// ErrAssetMismatch indicates the two holders hold different assets.
	ErrAssetMismatch = errors.New("ledger: asset mismatch")

	// ErrInsufficientFunds indicates the source balance is below the amount.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrUnauthorized indicates the signer does not own the holder or mint.
	ErrUnauthorized = errors.New("ledger: signer is not the owner or authority")

	// ErrBadSignature indicates the authorization signature did not verify.
	ErrBadSignature = errors.New("ledger: authorization signature invalid")

	// ErrOverflow indicates a balance or supply would exceed 2^64-1.
	ErrOverflow = errors.New("ledger: amount overflow")

	// ErrSelfTransfer indicates a non-zero transfer whose source and destination are the same holder.
	ErrSelfTransfer = errors.New("ledger: transfer to the source holder")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("ledger: required parameter is nil")
)
