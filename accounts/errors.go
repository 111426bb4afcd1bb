package accounts

import "errors"

var (
	// ErrAccountNotFound indicates no account exists for the id and role.
	ErrAccountNotFound = errors.New("accounts: account not found")

	// ErrAccountExists indicates the account was provisioned with different custody.
	ErrAccountExists = errors.New("accounts: account already exists")

	// ErrInvalidUser indicates the account id is malformed.
	ErrInvalidUser = errors.New("accounts: invalid account id")

	// ErrInvalidSlot indicates a custom reference slot the role does not have.
	ErrInvalidSlot = errors.New("accounts: invalid reference slot")

	// ErrInvalidHandle indicates a payout handle is not alias@domain.
	ErrInvalidHandle = errors.New("accounts: invalid payout handle")

	// ErrDNSLookupFailed indicates a DNS TXT lookup failed.
	ErrDNSLookupFailed = errors.New("accounts: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("accounts: DNSSEC validation failed")

	// ErrNoPayoutRecord indicates the domain publishes no payout record for the alias.
	ErrNoPayoutRecord = errors.New("accounts: no payout record")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("accounts: required parameter is nil")
)
