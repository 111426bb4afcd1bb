package settlement

import (
	"context"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
)

// ProvisionRequest creates a buyer or artist account.
type ProvisionRequest struct {
	Role accounts.Role
	ID   string

	// Auth is the participant's own wallet key, allowed to change the
	// account's custom references. Optional.
	Auth *ec.PublicKey

	FeeCompensation uint64
}

// Provision creates an account and its custodial default holders. The
// caller pays and is reimbursed the deposits of every record created.
// Provisioning an existing account changes nothing.
func (e *Engine) Provision(ctx context.Context, caller ledger.Signer, req ProvisionRequest) (*Result, error) {
	res := &Result{}
	attrs := []attribute.KeyValue{attribute.String("role", req.Role.String()), attribute.String("account_id", req.ID)}
	err := e.run(ctx, "Provision", attrs, func(t *txn) error {
		if _, err := t.requireAdmin(caller, "Provision"); err != nil {
			return err
		}
		id, err := escrow.NormalizeID(req.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUser, err)
		}
		custody, err := e.custody(req.Role, id)
		if err != nil {
			return err
		}
		p, err := t.dir.Provision(t.book, req.Role, id, custody.PubKey(), req.Auth, e.accountAssets(), t.now.Unix())
		if err != nil {
			return err
		}
		res.Account = p.Account
		res.Idempotent = !p.Created
		if p.Created {
			if err := t.reserve(caller, reimburse.KindAccount, accountRecord(req.Role, id), accounts.RecordSize, res); err != nil {
				return err
			}
			for _, slot := range req.Role.Slots() {
				ref, err := p.Account.Default(slot)
				if err != nil {
					return err
				}
				if _, err := t.budget.Item(reimburse.KindHolder, ref[:]); err == nil {
					continue
				}
				if err := t.reserve(caller, reimburse.KindHolder, ref[:], ledger.HolderSize, res); err != nil {
					return err
				}
			}
		}
		t.log(zap.String("role", req.Role.String()), zap.String("account_id", id), zap.Int("holders_opened", p.Holders))
		return t.reimburse(caller, req.FeeCompensation, res)
	})
	if err != nil {
		return nil, err
	}
	if res.Idempotent {
		res.Message = fmt.Sprintf("%s %s already provisioned", req.Role, res.Account.ID)
	} else {
		res.Message = fmt.Sprintf("provisioned %s %s", req.Role, res.Account.ID)
	}
	return res, nil
}

// ProvisionUser provisions a buyer account.
func (e *Engine) ProvisionUser(ctx context.Context, caller ledger.Signer, id string, auth *ec.PublicKey) (*Result, error) {
	return e.Provision(ctx, caller, ProvisionRequest{Role: accounts.RoleUser, ID: id, Auth: auth})
}

// ProvisionArtist provisions an artist account.
func (e *Engine) ProvisionArtist(ctx context.Context, caller ledger.Signer, id string, auth *ec.PublicKey) (*Result, error) {
	return e.Provision(ctx, caller, ProvisionRequest{Role: accounts.RoleArtist, ID: id, Auth: auth})
}

// CustomRefRequest overrides one reference slot of an account.
type CustomRefRequest struct {
	Role accounts.Role
	ID   string
	Slot accounts.Slot
	Ref  ledger.Ref // zero clears the override
}

// SetCustomRef points a slot of an account at a holder the participant
// controls. The caller must be an administrator or the account's own auth
// key, and the holder must hold the slot's asset.
func (e *Engine) SetCustomRef(ctx context.Context, caller ledger.Signer, req CustomRefRequest) (*Result, error) {
	res := &Result{}
	attrs := []attribute.KeyValue{
		attribute.String("role", req.Role.String()),
		attribute.String("account_id", req.ID),
		attribute.String("slot", req.Slot.String()),
	}
	err := e.run(ctx, "SetCustomRef", attrs, func(t *txn) error {
		acct, err := t.setCustomRef(caller, req)
		if err != nil {
			return err
		}
		res.Account = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("%s %s %s -> %s", req.Role, res.Account.ID, req.Slot, req.Ref)
	return res, nil
}

func (t *txn) setCustomRef(caller ledger.Signer, req CustomRefRequest) (*accounts.Account, error) {
	pub, err := proveKey(caller, "SetCustomRef", []byte(req.ID), req.Ref[:])
	if err != nil {
		return nil, err
	}
	acct, err := t.dir.Resolve(req.Role, req.ID)
	if err != nil {
		return nil, err
	}
	if !t.admins.IsAdmin(pub) && !acct.CanEdit(pub) {
		return nil, fmt.Errorf("%w: %x may not edit %s %s", ErrUnauthorized, pub.Compressed(), req.Role, acct.ID)
	}
	if !req.Ref.IsZero() {
		h, err := t.book.Holder(req.Ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if want := t.e.slotAsset(req.Slot); h.Asset != want {
			return nil, fmt.Errorf("%w: %s holds %s, slot %s needs %s", ErrInvalidInput, req.Ref, h.Asset, req.Slot, want)
		}
	}
	acct, err = t.dir.SetCustomRef(req.Role, acct.ID, req.Slot, req.Ref)
	if err != nil {
		return nil, err
	}
	t.log(zap.String("account_id", acct.ID), zap.String("slot", req.Slot.String()), zap.Stringer("ref", req.Ref))
	return acct, nil
}

// PayoutHandleRequest binds an artist's payment slot to a DNS payout handle.
type PayoutHandleRequest struct {
	ID     string
	Handle string // alias@domain
}

// BindPayoutHandle resolves handle over DNS and points the artist's payment
// slot at the published reference. The lookup runs before the operation's
// transaction opens.
func (e *Engine) BindPayoutHandle(ctx context.Context, caller ledger.Signer, req PayoutHandleRequest) (*Result, error) {
	handle, err := accounts.ParseHandle(req.Handle)
	if err != nil {
		return nil, translate(err)
	}
	ref, err := accounts.ResolvePayoutRef(e.resolver, handle)
	if err != nil {
		err = translate(err)
		e.log.Warn("payout handle lookup failed", zap.String("handle", handle.String()), zap.Error(err))
		return nil, err
	}

	res := &Result{}
	attrs := []attribute.KeyValue{attribute.String("account_id", req.ID), attribute.String("handle", handle.String())}
	err = e.run(ctx, "BindPayoutHandle", attrs, func(t *txn) error {
		acct, err := t.setCustomRef(caller, CustomRefRequest{
			Role: accounts.RoleArtist,
			ID:   req.ID,
			Slot: accounts.SlotPayment,
			Ref:  ref,
		})
		if err != nil {
			return err
		}
		if err := t.dir.SetPayoutHandle(accounts.RoleArtist, acct.ID, handle.String()); err != nil {
			return err
		}
		acct.PayoutHandle = handle.String()
		res.Account = acct
		t.log(zap.String("handle", handle.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("artist %s pays out to %s via %s", res.Account.ID, ref, handle)
	return res, nil
}

// RecordFeeWaiver adds a waived platform fee to an account's counters.
func (e *Engine) RecordFeeWaiver(ctx context.Context, caller ledger.Signer, role accounts.Role, id string, amount uint64) (*Result, error) {
	res := &Result{}
	attrs := []attribute.KeyValue{attribute.String("role", role.String()), attribute.String("account_id", id)}
	err := e.run(ctx, "RecordFeeWaiver", attrs, func(t *txn) error {
		if _, err := t.requireAdmin(caller, "RecordFeeWaiver"); err != nil {
			return err
		}
		acct, err := t.dir.RecordFeeWaiver(role, id, amount)
		if err != nil {
			return err
		}
		res.Account, res.Total = acct, amount
		t.log(zap.String("account_id", acct.ID), zap.Uint64("waived", amount), zap.Uint64("waived_total", acct.FeesWaived))
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("%s %s waived %d (%d waivers)", role, res.Account.ID, amount, res.Account.WaivedCount)
	return res, nil
}

func (e *Engine) accountAssets() accounts.Assets {
	return accounts.Assets{Payment: e.assets.Payment, Listener: e.assets.Listener, Creator: e.assets.Creator}
}

func (e *Engine) slotAsset(slot accounts.Slot) ledger.AssetID {
	switch slot {
	case accounts.SlotListener:
		return e.assets.Listener
	case accounts.SlotCreator:
		return e.assets.Creator
	default:
		return e.assets.Payment
	}
}

func accountRecord(role accounts.Role, id string) []byte {
	return []byte(role.String() + "/" + id)
}
