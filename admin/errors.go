package admin

import "errors"

var (
	// ErrUnauthorized indicates the caller is not an administrator.
	ErrUnauthorized = errors.New("admin: caller is not an administrator")

	// ErrAdminExists indicates the key is already an administrator.
	ErrAdminExists = errors.New("admin: administrator already exists")

	// ErrAdminNotFound indicates the key is not an administrator.
	ErrAdminNotFound = errors.New("admin: administrator not found")

	// ErrCannotRemoveLastAdmin indicates removal would leave the registry empty.
	ErrCannotRemoveLastAdmin = errors.New("admin: cannot remove the last administrator")

	// ErrAlreadyBootstrapped indicates the registry already has a different first administrator.
	ErrAlreadyBootstrapped = errors.New("admin: registry already bootstrapped")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("admin: required parameter is nil")
)
