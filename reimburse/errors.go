package reimburse

import "errors"

var (
	// ErrInvalidRate indicates a storage rate parameter is zero.
	ErrInvalidRate = errors.New("reimburse: invalid storage rate")

	// ErrAlreadyReserved indicates the record already has a deposit line item.
	ErrAlreadyReserved = errors.New("reimburse: deposit already reserved")

	// ErrNoLineItem indicates the record has no deposit line item.
	ErrNoLineItem = errors.New("reimburse: no deposit line item")

	// ErrOverflow indicates deposit plus compensation exceeds 2^64-1.
	ErrOverflow = errors.New("reimburse: amount overflow")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("reimburse: required parameter is nil")
)
