package rewards

import (
	"fmt"

	"github.com/bitfsorg/libsettle-go/ledger"
)

// Minter is the issuance surface of the asset ledger.
type Minter interface {
	MintTo(asset ledger.AssetID, to ledger.Ref, amount uint64, auth ledger.Signer) error
}

// Assets names the two reward assets.
type Assets struct {
	Listener ledger.AssetID
	Creator  ledger.AssetID
}

// Issuer mints reward assets under the operator's mint authority.
type Issuer struct {
	minter    Minter
	authority ledger.Signer
	assets    Assets
}

// NewIssuer returns an Issuer that mints through minter signed by authority.
func NewIssuer(minter Minter, authority ledger.Signer, assets Assets) (*Issuer, error) {
	if minter == nil {
		return nil, fmt.Errorf("%w: minter", ErrNilParam)
	}
	if authority == nil {
		return nil, fmt.Errorf("%w: authority", ErrNilParam)
	}
	return &Issuer{minter: minter, authority: authority, assets: assets}, nil
}

// Recipients are the holders a plan is minted into.
type Recipients struct {
	Buyer     ledger.Ref   // listener-reward holder of the buyer
	Creators  []ledger.Ref // creator-reward holders, aligned with Plan.Creators
	Remainder ledger.Ref   // operator creator-reward holder
}

// Issue mints plan into to. Zero amounts are skipped.
func (is *Issuer) Issue(plan *Plan, to Recipients) error {
	if plan == nil {
		return fmt.Errorf("%w: plan", ErrNilParam)
	}
	if len(to.Creators) != len(plan.Creators) {
		return fmt.Errorf("%w: %d refs for %d rewards", ErrRefCount, len(to.Creators), len(plan.Creators))
	}
	if plan.Buyer > 0 {
		if err := is.minter.MintTo(is.assets.Listener, to.Buyer, plan.Buyer, is.authority); err != nil {
			return fmt.Errorf("rewards: mint buyer reward: %w", err)
		}
	}
	for i, amount := range plan.Creators {
		if amount == 0 {
			continue
		}
		if err := is.minter.MintTo(is.assets.Creator, to.Creators[i], amount, is.authority); err != nil {
			return fmt.Errorf("rewards: mint creator reward %d: %w", i, err)
		}
	}
	if plan.Remainder > 0 {
		if err := is.minter.MintTo(is.assets.Creator, to.Remainder, plan.Remainder, is.authority); err != nil {
			return fmt.Errorf("rewards: mint remainder: %w", err)
		}
	}
	return nil
}
