package rewards

import "fmt"

// BuyerMode selects how the buyer (listener) reward is sized.
type BuyerMode string

const (
	// BuyerTotal rewards the buyer one unit per unit of total spend.
	BuyerTotal BuyerMode = "total"
	// BuyerPercent rewards the buyer BuyerBasisPoints/10000 of total spend.
	BuyerPercent BuyerMode = "percent"
)

// RemainderMode selects what happens to creator-reward rounding remainder.
type RemainderMode string

const (
	// RemainderOperator mints the remainder to the operator's creator-reward holder.
	RemainderOperator RemainderMode = "operator"
	// RemainderUnclaimed leaves the remainder unissued.
	RemainderUnclaimed RemainderMode = "unclaimed"
)

// MaxBasisPoints is 100%.
const MaxBasisPoints = 10_000

// Policy configures reward sizing.
type Policy struct {
	BuyerMode        BuyerMode     `toml:"buyer_mode" env:"BUYER_MODE"`
	BuyerBasisPoints uint32        `toml:"buyer_basis_points" env:"BUYER_BASIS_POINTS"`
	Remainder        RemainderMode `toml:"remainder" env:"REMAINDER"`
}

// DefaultPolicy rewards buyers with their total spend and gives rounding
// remainder to the operator.
func DefaultPolicy() Policy {
	return Policy{BuyerMode: BuyerTotal, Remainder: RemainderOperator}
}

// Validate checks the policy fields.
func (p Policy) Validate() error {
	switch p.BuyerMode {
	case BuyerTotal:
	case BuyerPercent:
		if p.BuyerBasisPoints > MaxBasisPoints {
			return fmt.Errorf("%w: buyer_basis_points %d exceeds %d", ErrInvalidPolicy, p.BuyerBasisPoints, MaxBasisPoints)
		}
	default:
		return fmt.Errorf("%w: buyer_mode %q", ErrInvalidPolicy, p.BuyerMode)
	}
	switch p.Remainder {
	case RemainderOperator, RemainderUnclaimed:
	default:
		return fmt.Errorf("%w: remainder %q", ErrInvalidPolicy, p.Remainder)
	}
	return nil
}
