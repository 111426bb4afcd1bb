package settlement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/splits"
)

// createGrant writes the access grant of a release and buyer, dated
// createdAt, and reserves its deposit. A buyer holds at most one grant per
// release.
func (t *txn) createGrant(caller ledger.Signer, releaseID, buyerID string, terms escrow.AccessTerms, createdAt int64, res *Result) error {
	addr, bump, err := escrow.DeriveAddress(escrow.TagAccess, releaseID, buyerID)
	if err != nil {
		return err
	}
	g := &escrow.Grant{
		Address:   addr,
		Bump:      bump,
		ReleaseID: releaseID,
		BuyerID:   buyerID,
		Kind:      terms.Kind,
		Rights:    terms.Rights,
		CreatedAt: createdAt,
		ExpiresAt: terms.ExpiresAt,
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if err := t.escrows.CreateGrant(g); err != nil {
		return err
	}
	if err := t.reserve(caller, reimburse.KindGrant, addr[:], escrow.GrantSize, res); err != nil {
		return err
	}
	res.Grant = g
	t.log(zap.Stringer("grant", addr), zap.Stringer("rights", g.Rights), zap.Stringer("kind", g.Kind))
	return nil
}

// AccessRequest buys an access grant without an escrow entry.
type AccessRequest struct {
	ReleaseID string
	BuyerID   string
	Fee       uint64
	Splits    []escrow.Split
	Terms     escrow.AccessTerms

	// CreatorRewardRefs must equal the splits' reward recipients, in order.
	CreatorRewardRefs []ledger.Ref

	FeeCompensation uint64
}

// PurchaseAccess creates the buyer's access grant, pays the fee and every
// split straight from the buyer's payment holder and mints the buyer and
// creator rewards, all in one operation.
func (e *Engine) PurchaseAccess(ctx context.Context, caller ledger.Signer, req AccessRequest) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "PurchaseAccess", idAttrs(req.ReleaseID, req.BuyerID), func(t *txn) error {
		if _, err := t.requireAdmin(caller, "PurchaseAccess"); err != nil {
			return err
		}
		rid, bid, err := normalizeIDs(req.ReleaseID, req.BuyerID)
		if err != nil {
			return err
		}
		t.log(zap.String("release_id", rid), zap.String("buyer_id", bid))
		total, err := splits.ValidateTable(req.Fee, req.Splits, e.maxSplits)
		if err != nil {
			return err
		}
		if total == 0 {
			return fmt.Errorf("%w: fee and splits are all zero", ErrInvalidInput)
		}
		if err := splits.Match(req.Splits, req.CreatorRewardRefs, splits.RewardRecipient); err != nil {
			return err
		}
		acct, err := t.buyer(bid)
		if err != nil {
			return err
		}
		if err := splits.ExcludeSource(req.Splits, acct.Payment); err != nil {
			return err
		}
		if err := t.createGrant(caller, rid, bid, req.Terms, t.now.Unix(), res); err != nil {
			return err
		}
		res.Address = res.Grant.Address

		buyerKey, err := e.custody(acct.Role, acct.ID)
		if err != nil {
			return err
		}
		if err := t.book.Transfer(acct.Payment, e.OperatorRefs().Fee, req.Fee, buyerKey); err != nil {
			return fmt.Errorf("pay fee: %w", err)
		}
		recipients := make([]ledger.Ref, len(req.Splits))
		for i, s := range req.Splits {
			recipients[i] = s.Recipient
		}
		paid, err := splits.Walk(req.Splits, recipients, splits.Recipient, func(i int, s escrow.Split) error {
			if err := t.book.Transfer(acct.Payment, s.Recipient, s.Amount, buyerKey); err != nil {
				return fmt.Errorf("pay split %d: %w", i, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.Total, res.Paid = total, req.Fee+paid

		plan, err := t.issueRewards(bid, total, req.Splits, req.CreatorRewardRefs)
		if err != nil {
			return err
		}
		res.Rewards = plan
		t.log(zap.Uint64("total", total), zap.Uint64("buyer_reward", plan.Buyer), zap.Uint64("creator_rewards", plan.Issued()))
		return t.reimburse(caller, req.FeeCompensation, res)
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("access %s granted (%s, %s) for %d", res.Address, res.Grant.Kind, res.Grant.Rights, res.Total)
	return res, nil
}

// CloseGrantRequest deletes an access grant.
type CloseGrantRequest struct {
	ReleaseID       string
	BuyerID         string
	FeeCompensation uint64
}

// CloseAccessGrant deletes the access grant of a release and buyer and
// releases its deposit to the operator.
func (e *Engine) CloseAccessGrant(ctx context.Context, caller ledger.Signer, req CloseGrantRequest) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "CloseAccessGrant", idAttrs(req.ReleaseID, req.BuyerID), func(t *txn) error {
		if _, err := t.requireAdmin(caller, "CloseAccessGrant"); err != nil {
			return err
		}
		g, err := t.grant(req.ReleaseID, req.BuyerID)
		if err != nil {
			return err
		}
		res.Address, res.Grant = g.Address, g
		t.log(zap.String("release_id", g.ReleaseID), zap.String("buyer_id", g.BuyerID), zap.Stringer("grant", g.Address))
		if err := t.escrows.DeleteGrant(g.Address); err != nil {
			return err
		}
		if err := t.release(reimburse.KindGrant, g.Address[:], res); err != nil {
			return err
		}
		return t.reimburse(caller, req.FeeCompensation, res)
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("access %s closed, released %d", res.Address, res.Released)
	return res, nil
}

// grant loads the access grant of a release and buyer id pair.
func (t *txn) grant(releaseID, buyerID string) (*escrow.Grant, error) {
	rid, bid, err := normalizeIDs(releaseID, buyerID)
	if err != nil {
		return nil, err
	}
	addr, _, err := escrow.DeriveAddress(escrow.TagAccess, rid, bid)
	if err != nil {
		return nil, err
	}
	return t.escrows.Grant(addr)
}
