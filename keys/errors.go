package keys

import "errors"

var (
	// ErrInvalidSeed indicates the operator seed is missing or has the wrong length.
	ErrInvalidSeed = errors.New("keys: invalid operator seed")

	// ErrDerivationFailed indicates HKDF or scalar conversion failed.
	ErrDerivationFailed = errors.New("keys: key derivation failed")

	// ErrDecryptionFailed indicates a wrong password or corrupt seed file.
	ErrDecryptionFailed = errors.New("keys: seed decryption failed")

	// ErrChecksumMismatch indicates the decrypted seed fails its checksum.
	ErrChecksumMismatch = errors.New("keys: seed checksum mismatch")

	// ErrSeedFileExists indicates a seed file is already present.
	ErrSeedFileExists = errors.New("keys: seed file already exists")

	// ErrSeedFileNotFound indicates no seed file at the given path.
	ErrSeedFileNotFound = errors.New("keys: seed file not found")

	// ErrInvalidMnemonic indicates a backup phrase that is not valid BIP39.
	ErrInvalidMnemonic = errors.New("keys: invalid mnemonic")
)
