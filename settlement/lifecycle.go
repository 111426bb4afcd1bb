package settlement

import (
	"context"
	"errors"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/collectible"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/rewards"
	"github.com/bitfsorg/libsettle-go/splits"
)

// OpenRequest locks a buyer's funds for one release purchase.
type OpenRequest struct {
	ReleaseID    string
	BuyerID      string
	Fee          uint64
	Splits       []escrow.Split
	PurchaseDate int64 // unix seconds

	// Access selects the access-grant branch; nil issues a collectible.
	Access *escrow.AccessTerms

	FeeCompensation uint64
}

// Open debits fee + sum(splits) from the buyer's payment holder into a new
// escrow entry. Opening an entry that is already funded charges nobody and
// only reimburses the caller's compensation.
func (e *Engine) Open(ctx context.Context, caller ledger.Signer, req OpenRequest) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "Open", idAttrs(req.ReleaseID, req.BuyerID), func(t *txn) error {
		if _, err := t.requireAdmin(caller, "Open"); err != nil {
			return err
		}
		rid, bid, err := normalizeIDs(req.ReleaseID, req.BuyerID)
		if err != nil {
			return err
		}
		total, err := splits.ValidateTable(req.Fee, req.Splits, e.maxSplits)
		if err != nil {
			return err
		}
		if total == 0 {
			return fmt.Errorf("%w: fee and splits are all zero", ErrInvalidInput)
		}
		addr, bump, err := escrow.DeriveAddress(escrow.TagEscrow, rid, bid)
		if err != nil {
			return err
		}
		res.Address = addr
		t.log(zap.String("release_id", rid), zap.String("buyer_id", bid), zap.Stringer("entry", addr))

		existing, err := t.escrows.Entry(addr)
		switch {
		case err == nil && existing.Funded():
			res.Entry, res.Total, res.Idempotent = existing, existing.Total, true
			t.log(zap.Bool("idempotent", true))
			return t.reimburse(caller, req.FeeCompensation, res)
		case err != nil && !errors.Is(err, escrow.ErrEntryNotFound):
			return err
		}

		acct, err := t.buyer(bid)
		if err != nil {
			return err
		}
		entry := &escrow.Entry{
			Address:      addr,
			Bump:         bump,
			ReleaseID:    rid,
			BuyerID:      bid,
			Fee:          req.Fee,
			Splits:       append([]escrow.Split(nil), req.Splits...),
			Total:        total,
			PurchaseDate: req.PurchaseDate,
			Custody:      ledger.AssociatedRef(addr[:], e.assets.Payment),
		}
		if err := splits.ExcludeSource(entry.Splits, entry.Custody); err != nil {
			return err
		}
		if req.Access != nil {
			draft := escrow.Grant{
				ReleaseID: rid,
				BuyerID:   bid,
				Kind:      req.Access.Kind,
				Rights:    req.Access.Rights,
				CreatedAt: entry.PurchaseDate,
				ExpiresAt: req.Access.ExpiresAt,
			}
			if err := draft.Validate(); err != nil {
				return err
			}
			entry.Delivery = escrow.DeliveryAccess
			entry.Access = *req.Access
		}
		if err := entry.Validate(); err != nil {
			return err
		}

		authority, err := e.kr.EscrowAuthority(addr[:])
		if err != nil {
			return err
		}
		created, err := t.book.OpenHolder(entry.Custody, e.assets.Payment, authority.PubKey())
		if err != nil {
			return err
		}
		buyerKey, err := e.custody(acct.Role, acct.ID)
		if err != nil {
			return err
		}
		if err := t.book.Transfer(acct.Payment, entry.Custody, total, buyerKey); err != nil {
			return err
		}
		if err := t.escrows.PutEntry(entry); err != nil {
			return err
		}

		if err := t.reserve(caller, reimburse.KindEntry, addr[:], escrow.EntrySize, res); err != nil {
			return err
		}
		if created {
			if err := t.reserve(caller, reimburse.KindHolder, entry.Custody[:], ledger.HolderSize, res); err != nil {
				return err
			}
		}
		res.Entry, res.Total = entry, total
		t.log(zap.Uint64("total", total), zap.Int("splits", len(entry.Splits)), zap.String("delivery", entry.Delivery.String()))
		return t.reimburse(caller, req.FeeCompensation, res)
	})
	if err != nil {
		return nil, err
	}
	if res.Idempotent {
		res.Message = fmt.Sprintf("escrow %s already funded with %d", res.Address, res.Total)
	} else {
		res.Message = fmt.Sprintf("escrow %s funded with %d", res.Address, res.Total)
	}
	return res, nil
}

// FulfillRequest pays out a funded entry and issues the buyer's deliverable.
type FulfillRequest struct {
	ReleaseID string
	BuyerID   string

	// Metadata and Creators describe the collectible; the access branch
	// ignores them.
	Metadata collectible.Metadata
	Creators []collectible.Creator

	// RecipientRefs must equal the entry's split recipients, in order.
	RecipientRefs []ledger.Ref

	FeeCompensation uint64
}

// Fulfill pays the platform fee and every split from the entry's custody,
// then mints the collectible or creates the access grant and marks the
// entry fulfilled.
func (e *Engine) Fulfill(ctx context.Context, caller ledger.Signer, req FulfillRequest) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "Fulfill", idAttrs(req.ReleaseID, req.BuyerID), func(t *txn) error {
		if _, err := t.requireAdmin(caller, "Fulfill"); err != nil {
			return err
		}
		entry, err := t.entry(req.ReleaseID, req.BuyerID, res)
		if err != nil {
			return err
		}
		if entry.Flags.Has(escrow.FlagFulfilled) {
			return fmt.Errorf("%w: %s", ErrEscrowAlreadyFulfilled, entry.Address)
		}
		if err := splits.Match(entry.Splits, req.RecipientRefs, splits.Recipient); err != nil {
			return err
		}

		authority, err := e.kr.EscrowAuthority(entry.Address[:])
		if err != nil {
			return err
		}
		if err := t.book.Transfer(entry.Custody, e.OperatorRefs().Fee, entry.Fee, authority); err != nil {
			return fmt.Errorf("pay fee: %w", err)
		}
		paid, err := splits.Walk(entry.Splits, req.RecipientRefs, splits.Recipient, func(i int, s escrow.Split) error {
			if err := t.book.Transfer(entry.Custody, s.Recipient, s.Amount, authority); err != nil {
				return fmt.Errorf("pay split %d: %w", i, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.Paid = entry.Fee + paid

		if entry.Delivery == escrow.DeliveryAccess {
			if err := t.createGrant(caller, entry.ReleaseID, entry.BuyerID, entry.Access, entry.PurchaseDate, res); err != nil {
				return err
			}
		} else {
			if err := t.mintCollectible(caller, entry, req, res); err != nil {
				return err
			}
			entry.Collectible = res.Collectible
		}

		entry.SetFlags(escrow.FlagPaymentsFulfilled | escrow.FlagCollectibleMinted | escrow.FlagFulfilled)
		if err := t.escrows.PutEntry(entry); err != nil {
			return err
		}
		res.Entry, res.Total = entry, entry.Total
		t.log(zap.Uint64("paid", res.Paid), zap.Stringer("flags", entry.Flags))
		return t.reimburse(caller, req.FeeCompensation, res)
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("escrow %s fulfilled, paid %d", res.Address, res.Paid)
	return res, nil
}

// mintCollectible mints the one-of-one collectible of entry to the buyer's
// custody key and reserves the deposits of the records it creates.
func (t *txn) mintCollectible(caller ledger.Signer, entry *escrow.Entry, req FulfillRequest, res *Result) error {
	acct, err := t.buyer(entry.BuyerID)
	if err != nil {
		return err
	}
	owner, err := ec.PublicKeyFromBytes(acct.Custody)
	if err != nil {
		return fmt.Errorf("%w: custody key: %w", ErrInvalidUser, err)
	}
	meta := req.Metadata
	meta.Creators = append([]collectible.Creator(nil), req.Creators...)
	meta.ReleaseID = entry.ReleaseID
	meta.BuyerID = entry.BuyerID
	minted, err := t.nfts.CreateAndAttach(t.book, meta, t.e.operator, owner)
	if err != nil {
		return err
	}
	asset := []byte(minted.Asset)
	if err := t.reserve(caller, reimburse.KindMint, asset, ledger.MintSize, res); err != nil {
		return err
	}
	if err := t.reserve(caller, reimburse.KindHolder, minted.Holder[:], ledger.HolderSize, res); err != nil {
		return err
	}
	if err := t.reserve(caller, reimburse.KindCollectible, asset, collectible.MetadataSize, res); err != nil {
		return err
	}
	res.Collectible = minted.Asset
	t.log(zap.String("collectible", string(minted.Asset)))
	return nil
}

// CompleteRequest settles rewards for a fulfilled entry.
type CompleteRequest struct {
	ReleaseID string
	BuyerID   string

	// CreatorRewardRefs must equal the entry's reward recipients, in order.
	CreatorRewardRefs []ledger.Ref

	FeeCompensation uint64
}

// Complete mints the buyer and creator rewards of a fulfilled entry, then
// closes its custody holder and deletes it, releasing both deposits to the
// operator.
func (e *Engine) Complete(ctx context.Context, caller ledger.Signer, req CompleteRequest) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "Complete", idAttrs(req.ReleaseID, req.BuyerID), func(t *txn) error {
		if _, err := t.requireAdmin(caller, "Complete"); err != nil {
			return err
		}
		entry, err := t.entry(req.ReleaseID, req.BuyerID, res)
		if err != nil {
			return err
		}
		switch {
		case !entry.Flags.Has(escrow.FlagFulfilled):
			return fmt.Errorf("%w: %s", ErrEscrowNotFulfilled, entry.Address)
		case !entry.Flags.Has(escrow.FlagPaymentsFulfilled):
			return fmt.Errorf("%w: %s", ErrPaymentsNotFulfilled, entry.Address)
		case !entry.Flags.Has(escrow.FlagCollectibleMinted):
			return fmt.Errorf("%w: %s", ErrCollectibleNotMinted, entry.Address)
		case entry.Flags.Has(escrow.FlagRewardsPaid):
			return fmt.Errorf("%w: %s", ErrRewardsAlreadyPaid, entry.Address)
		}
		if err := splits.Match(entry.Splits, req.CreatorRewardRefs, splits.RewardRecipient); err != nil {
			return err
		}

		plan, err := t.issueRewards(entry.BuyerID, entry.Total, entry.Splits, req.CreatorRewardRefs)
		if err != nil {
			return err
		}
		entry.SetFlags(escrow.FlagRewardsPaid)
		res.Rewards = plan

		if err := t.closeEntry(entry, false, res); err != nil {
			return err
		}
		res.Entry, res.Total = entry, entry.Total
		t.log(zap.Uint64("buyer_reward", plan.Buyer), zap.Uint64("creator_rewards", plan.Issued()))
		return t.reimburse(caller, req.FeeCompensation, res)
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("escrow %s completed, buyer reward %d, creator rewards %d",
		res.Address, res.Rewards.Buyer, res.Rewards.Issued())
	return res, nil
}

// CloseRequest cancels an entry.
type CloseRequest struct {
	ReleaseID       string
	BuyerID         string
	FeeCompensation uint64
}

// Close cancels an entry: any custodial balance goes to the operator's fee
// holder, then the custody holder and the entry are deleted and their
// deposits released to the operator.
func (e *Engine) Close(ctx context.Context, caller ledger.Signer, req CloseRequest) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "Close", idAttrs(req.ReleaseID, req.BuyerID), func(t *txn) error {
		if _, err := t.requireAdmin(caller, "Close"); err != nil {
			return err
		}
		entry, err := t.entry(req.ReleaseID, req.BuyerID, res)
		if err != nil {
			return err
		}
		if err := t.closeEntry(entry, true, res); err != nil {
			return err
		}
		res.Entry, res.Total = entry, entry.Total
		t.log(zap.String("state", entry.State()), zap.Uint64("swept", res.Paid))
		return t.reimburse(caller, req.FeeCompensation, res)
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("escrow %s closed, %d returned to operator", res.Address, res.Paid)
	return res, nil
}

// entry loads the escrow entry of a release and buyer id pair.
func (t *txn) entry(releaseID, buyerID string, res *Result) (*escrow.Entry, error) {
	rid, bid, err := normalizeIDs(releaseID, buyerID)
	if err != nil {
		return nil, err
	}
	addr, _, err := escrow.DeriveAddress(escrow.TagEscrow, rid, bid)
	if err != nil {
		return nil, err
	}
	res.Address = addr
	t.log(zap.String("release_id", rid), zap.String("buyer_id", bid), zap.Stringer("entry", addr))
	return t.escrows.Entry(addr)
}

// closeEntry deletes entry and its custody holder. With sweep, a non-zero
// custodial balance is first moved to the operator's fee holder; without
// it, a non-zero balance fails the close.
func (t *txn) closeEntry(entry *escrow.Entry, sweep bool, res *Result) error {
	authority, err := t.e.kr.EscrowAuthority(entry.Address[:])
	if err != nil {
		return err
	}
	balance, err := t.book.Balance(entry.Custody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCloseAccountFailed, err)
	}
	if sweep && balance > 0 {
		if err := t.book.Transfer(entry.Custody, t.e.OperatorRefs().Fee, balance, authority); err != nil {
			return fmt.Errorf("sweep custody: %w", err)
		}
		res.Paid += balance
	}
	if err := t.book.CloseHolder(entry.Custody, authority); err != nil {
		if errors.Is(err, ledger.ErrHolderNotEmpty) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCloseAccountFailed, err)
	}
	if err := t.release(reimburse.KindHolder, entry.Custody[:], res); err != nil {
		return err
	}
	if err := t.release(reimburse.KindEntry, entry.Address[:], res); err != nil {
		return err
	}
	return t.escrows.DeleteEntry(entry.Address)
}

// issueRewards mints the reward plan of a purchase of total by buyerID.
func (t *txn) issueRewards(buyerID string, total uint64, table []escrow.Split, creatorRefs []ledger.Ref) (*rewards.Plan, error) {
	acct, err := t.buyer(buyerID)
	if err != nil {
		return nil, err
	}
	listener, err := acct.Ref(accounts.SlotListener)
	if err != nil {
		return nil, err
	}
	issuer, err := rewards.NewIssuer(t.book, t.e.operator, rewards.Assets{
		Listener: t.e.assets.Listener,
		Creator:  t.e.assets.Creator,
	})
	if err != nil {
		return nil, err
	}
	plan := rewards.Compute(t.e.policy, total, table)
	err = issuer.Issue(plan, rewards.Recipients{
		Buyer:     listener,
		Creators:  creatorRefs,
		Remainder: t.e.OperatorRefs().CreatorReward,
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}
