package rewards

import "errors"

var (
	// ErrInvalidPolicy indicates a reward policy setting is out of range.
	ErrInvalidPolicy = errors.New("rewards: invalid policy")

	// ErrRefCount indicates creator references do not align with the plan.
	ErrRefCount = errors.New("rewards: creator reference count mismatch")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("rewards: required parameter is nil")
)
