package reimburse

import (
	"fmt"
	"math"
)

// Rate is the published storage price schedule:
//
//	deposit(size) = (size + RecordOverhead) * ByteRate * ExemptionFactor
type Rate struct {
	ByteRate        uint64 `toml:"byte_rate" env:"BYTE_RATE"`
	ExemptionFactor uint64 `toml:"exemption_factor" env:"EXEMPTION_FACTOR"`
	RecordOverhead  uint64 `toml:"record_overhead" env:"RECORD_OVERHEAD"`
}

// DefaultRate returns the reference schedule of 3480 units per byte, a two
// times exemption factor and 128 bytes of per-record overhead.
func DefaultRate() Rate {
	return Rate{ByteRate: 3480, ExemptionFactor: 2, RecordOverhead: 128}
}

// Validate checks that every multiplier is non-zero.
func (r Rate) Validate() error {
	if r.ByteRate == 0 {
		return fmt.Errorf("%w: byte_rate is zero", ErrInvalidRate)
	}
	if r.ExemptionFactor == 0 {
		return fmt.Errorf("%w: exemption_factor is zero", ErrInvalidRate)
	}
	return nil
}

// Deposit returns the storage deposit for a record of size bytes. It
// saturates at 2^64-1.
func (r Rate) Deposit(size int) uint64 {
	if size < 0 {
		size = 0
	}
	units := uint64(size) + r.RecordOverhead
	return satMul(satMul(units, r.ByteRate), r.ExemptionFactor)
}

func satMul(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}
