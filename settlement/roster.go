package settlement

import (
	"context"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsettle-go/admin"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
)

// Initialize creates the engine's mints, the operator and reserve holders
// and the first administrator. Every asset is minted under the operator
// key. Repeating it with the same administrator changes nothing.
func (e *Engine) Initialize(ctx context.Context, first *ec.PublicKey) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "Initialize", nil, func(t *txn) error {
		if first == nil {
			return fmt.Errorf("%w: first administrator key", ErrInvalidInput)
		}
		op := e.operator.PubKey()
		for _, asset := range []ledger.AssetID{e.assets.Payment, e.assets.Native, e.assets.Listener, e.assets.Creator} {
			if err := t.book.CreateMint(asset, op); err != nil {
				return err
			}
		}

		refs := e.OperatorRefs()
		opened := 0
		for _, h := range []struct {
			ref   ledger.Ref
			asset ledger.AssetID
			owner *ec.PublicKey
		}{
			{refs.Fee, e.assets.Payment, op},
			{refs.Native, e.assets.Native, op},
			{refs.CreatorReward, e.assets.Creator, op},
			{refs.Reserve, e.assets.Native, e.reserve.PubKey()},
			{e.AdminRef(first), e.assets.Native, first},
		} {
			created, err := t.book.OpenHolder(h.ref, h.asset, h.owner)
			if err != nil {
				return err
			}
			if created {
				opened++
			}
		}

		bootstrapped, err := t.admins.Bootstrap(first, t.now.Unix())
		if err != nil {
			return err
		}
		res.Idempotent = !bootstrapped && opened == 0
		t.log(zap.String("operator", fmt.Sprintf("%x", op.Compressed())),
			zap.String("admin", fmt.Sprintf("%x", first.Compressed())),
			zap.Int("holders_opened", opened))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Idempotent {
		res.Message = "already initialized"
	} else {
		res.Message = fmt.Sprintf("initialized operator %x", e.operator.PubKey().Compressed())
	}
	return res, nil
}

// AddAdmin registers key as an administrator and opens its native holder.
// The caller pays and is reimbursed the deposits of both records.
func (e *Engine) AddAdmin(ctx context.Context, caller ledger.Signer, key *ec.PublicKey, compensation uint64) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "AddAdmin", keyAttrs(key), func(t *txn) error {
		pub, err := t.requireAdmin(caller, "AddAdmin")
		if err != nil {
			return err
		}
		if key == nil {
			return fmt.Errorf("%w: administrator key", ErrInvalidInput)
		}
		if err := t.admins.Add(pub, key, t.now.Unix()); err != nil {
			return err
		}
		ref := e.AdminRef(key)
		created, err := t.book.OpenHolder(ref, e.assets.Native, key)
		if err != nil {
			return err
		}
		if err := t.reserve(caller, reimburse.KindAdmin, key.Compressed(), admin.RecordSize, res); err != nil {
			return err
		}
		if created {
			if err := t.reserve(caller, reimburse.KindHolder, ref[:], ledger.HolderSize, res); err != nil {
				return err
			}
		}
		t.log(zap.String("admin", fmt.Sprintf("%x", key.Compressed())))
		return t.reimburse(caller, compensation, res)
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("added administrator %x", key.Compressed())
	return res, nil
}

// RemoveAdmin removes key from the roster and releases its record deposit.
// The last administrator can never be removed. The removed administrator
// keeps its native holder and balance.
func (e *Engine) RemoveAdmin(ctx context.Context, caller ledger.Signer, key *ec.PublicKey, compensation uint64) (*Result, error) {
	res := &Result{}
	err := e.run(ctx, "RemoveAdmin", keyAttrs(key), func(t *txn) error {
		pub, err := t.requireAdmin(caller, "RemoveAdmin")
		if err != nil {
			return err
		}
		if key == nil {
			return fmt.Errorf("%w: administrator key", ErrInvalidInput)
		}
		if err := t.admins.Remove(pub, key); err != nil {
			return err
		}
		if err := t.release(reimburse.KindAdmin, key.Compressed(), res); err != nil {
			return err
		}
		t.log(zap.String("admin", fmt.Sprintf("%x", key.Compressed())))
		return t.reimburse(caller, compensation, res)
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("removed administrator %x", key.Compressed())
	return res, nil
}

// CreditRequest on-ramps funds into a holder.
type CreditRequest struct {
	Asset  ledger.AssetID
	To     ledger.Ref
	Amount uint64
}

// Credit mints amount of the payment or native asset into a holder under
// the operator's authority. Reward assets are only ever minted by settlement.
func (e *Engine) Credit(ctx context.Context, caller ledger.Signer, req CreditRequest) (*Result, error) {
	res := &Result{}
	attrs := []attribute.KeyValue{
		attribute.String("asset", string(req.Asset)),
		attribute.String("to", req.To.String()),
	}
	err := e.run(ctx, "Credit", attrs, func(t *txn) error {
		if _, err := t.requireAdmin(caller, "Credit"); err != nil {
			return err
		}
		if req.Asset != e.assets.Payment && req.Asset != e.assets.Native {
			return fmt.Errorf("%w: asset %q cannot be credited", ErrInvalidInput, req.Asset)
		}
		if err := t.book.MintTo(req.Asset, req.To, req.Amount, e.operator); err != nil {
			return err
		}
		res.Total = req.Amount
		t.log(zap.String("asset", string(req.Asset)), zap.Stringer("to", req.To), zap.Uint64("amount", req.Amount))
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("credited %d %s to %s", req.Amount, req.Asset, req.To)
	return res, nil
}

func keyAttrs(key *ec.PublicKey) []attribute.KeyValue {
	if key == nil {
		return nil
	}
	return []attribute.KeyValue{attribute.String("admin", fmt.Sprintf("%x", key.Compressed()))}
}
