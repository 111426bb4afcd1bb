package rewards

import (
	"math/big"

	"github.com/bitfsorg/libsettle-go/escrow"
)

// Plan is the reward issuance computed for one settled purchase.
type Plan struct {
	Buyer     uint64
	Creators  []uint64 // aligned with the split table
	Remainder uint64   // total - sum(Creators) when positive, if the policy claims it
}

// Issued returns the total creator-side issuance including remainder.
func (p *Plan) Issued() uint64 {
	sum := p.Remainder
	for _, c := range p.Creators {
		sum += c
	}
	return sum
}

// Compute builds the reward plan for a purchase of total with table.
func Compute(policy Policy, total uint64, table []escrow.Split) *Plan {
	creators := CreatorRewards(total, table)
	plan := &Plan{
		Buyer:    BuyerReward(policy, total),
		Creators: creators,
	}
	if policy.Remainder == RemainderOperator {
		plan.Remainder = Remainder(total, creators)
	}
	return plan
}

// BuyerReward sizes the buyer reward for total under policy. Percent mode
// rounds half up.
func BuyerReward(policy Policy, total uint64) uint64 {
	if policy.BuyerMode != BuyerPercent {
		return total
	}
	return mulDivRoundHalfUp(total, uint64(policy.BuyerBasisPoints), MaxBasisPoints)
}

// CreatorRewards splits total across the table in proportion to each split's
// amount:
//
//	reward[i] = round_half_up(total * amount[i] / sum(amounts))
//
// A table whose amounts sum to zero yields all-zero rewards. Rounding each
// share up at .5 can make the rewards sum above total.
func CreatorRewards(total uint64, table []escrow.Split) []uint64 {
	out := make([]uint64, len(table))
	var sum uint64
	for _, s := range table {
		sum += s.Amount
	}
	if sum == 0 {
		return out
	}
	for i, s := range table {
		out[i] = mulDivRoundHalfUp(total, s.Amount, sum)
	}
	return out
}

// Remainder returns total - sum(rewards), or zero when rounding pushed the
// rewards at or above total.
func Remainder(total uint64, rewards []uint64) uint64 {
	var sum uint64
	for _, r := range rewards {
		sum += r
		if sum >= total {
			return 0
		}
	}
	return total - sum
}

// mulDivRoundHalfUp returns floor((a*b*2 + d) / (2*d)) without overflow.
// The result is capped at 2^64-1.
func mulDivRoundHalfUp(a, b, d uint64) uint64 {
	num := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	num.Lsh(num, 1)
	den := new(big.Int).SetUint64(d)
	num.Add(num, den)
	den.Lsh(den, 1)
	num.Quo(num, den)
	if !num.IsUint64() {
		return ^uint64(0)
	}
	return num.Uint64()
}
