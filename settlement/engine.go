// Package settlement is the release settlement engine.
//
// An escrow entry moves through open → fulfill → complete, or open → close
// on cancellation. Every operation runs inside one bbolt read-write
// transaction: the transfers, mints, flag updates and deposit line items it
// makes commit together or not at all. Administrator reimbursement is the
// last step of every mutating operation, so a failed operation never pays.
package settlement

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/admin"
	"github.com/bitfsorg/libsettle-go/collectible"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/keys"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/rewards"
	"github.com/bitfsorg/libsettle-go/store"
)

const tracerName = "github.com/bitfsorg/libsettle-go/settlement"

// Assets names every fungible asset the engine moves or mints.
type Assets struct {
	Payment  ledger.AssetID // purchase currency
	Listener ledger.AssetID // buyer reward
	Creator  ledger.AssetID // creator reward
	Native   ledger.AssetID // storage deposits and reimbursement
}

// Validate checks that every asset is named and distinct.
func (a Assets) Validate() error {
	seen := map[ledger.AssetID]bool{}
	for _, id := range []ledger.AssetID{a.Payment, a.Listener, a.Creator, a.Native} {
		if id == "" {
			return fmt.Errorf("%w: empty asset id", ErrInvalidInput)
		}
		if seen[id] {
			return fmt.Errorf("%w: asset %q used twice", ErrInvalidInput, id)
		}
		seen[id] = true
	}
	return nil
}

// DefaultAssets returns the reference asset names.
func DefaultAssets() Assets {
	return Assets{Payment: "usdc", Listener: "music", Creator: "cnctd", Native: "native"}
}

// Options configure an Engine. Zero fields take defaults.
type Options struct {
	Assets         Assets
	Rate           reimburse.Rate
	Rewards        rewards.Policy
	MaxSplits      int
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	Resolver       accounts.DNSResolver
}

// Engine settles release purchases against one store.
type Engine struct {
	db        *store.DB
	kr        *keys.Keyring
	operator  *ec.PrivateKey
	reserve   *ec.PrivateKey
	assets    Assets
	rate      reimburse.Rate
	policy    rewards.Policy
	maxSplits int
	log       *zap.Logger
	tracer    trace.Tracer
	resolver  accounts.DNSResolver
	nowFunc   func() time.Time
}

// New returns an Engine over db whose capabilities derive from kr.
func New(db *store.DB, kr *keys.Keyring, opts Options) (*Engine, error) {
	if db == nil || kr == nil {
		return nil, fmt.Errorf("%w: store and keyring are required", ErrInvalidInput)
	}
	if opts.Assets == (Assets{}) {
		opts.Assets = DefaultAssets()
	}
	if err := opts.Assets.Validate(); err != nil {
		return nil, err
	}
	if opts.Rate == (reimburse.Rate{}) {
		opts.Rate = reimburse.DefaultRate()
	}
	if err := opts.Rate.Validate(); err != nil {
		return nil, err
	}
	if opts.Rewards == (rewards.Policy{}) {
		opts.Rewards = rewards.DefaultPolicy()
	}
	if err := opts.Rewards.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxSplits <= 0 || opts.MaxSplits > escrow.MaxSplits {
		opts.MaxSplits = escrow.MaxSplits
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.Resolver == nil {
		opts.Resolver = accounts.DefaultDNSResolver
	}

	operator, err := kr.Operator()
	if err != nil {
		return nil, fmt.Errorf("settlement: operator key: %w", err)
	}
	reserve, err := kr.Reserve()
	if err != nil {
		return nil, fmt.Errorf("settlement: reserve key: %w", err)
	}

	return &Engine{
		db:        db,
		kr:        kr,
		operator:  operator,
		reserve:   reserve,
		assets:    opts.Assets,
		rate:      opts.Rate,
		policy:    opts.Rewards,
		maxSplits: opts.MaxSplits,
		log:       opts.Logger.Named("settlement"),
		tracer:    opts.TracerProvider.Tracer(tracerName),
		resolver:  opts.Resolver,
		nowFunc:   time.Now,
	}, nil
}

// SetNowFunc overrides the clock used for timestamps.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFunc = now
}

// OperatorKey returns the operator identity public key.
func (e *Engine) OperatorKey() *ec.PublicKey { return e.operator.PubKey() }

// OperatorRefs are the holders the operator owns.
type OperatorRefs struct {
	Fee           ledger.Ref // payment asset: platform fees, cancelled escrows
	Native        ledger.Ref // native asset: released deposits, reimbursement source
	CreatorReward ledger.Ref // creator reward asset: rounding remainder
	Reserve       ledger.Ref // native asset: storage deposits in flight
}

// OperatorRefs returns the operator's holding references.
func (e *Engine) OperatorRefs() OperatorRefs {
	op := e.operator.PubKey().Compressed()
	return OperatorRefs{
		Fee:           ledger.AssociatedRef(op, e.assets.Payment),
		Native:        ledger.AssociatedRef(op, e.assets.Native),
		CreatorReward: ledger.AssociatedRef(op, e.assets.Creator),
		Reserve:       ledger.AssociatedRef(e.reserve.PubKey().Compressed(), e.assets.Native),
	}
}

// AdminRef returns the native holder an administrator pays deposits from
// and is reimbursed into.
func (e *Engine) AdminRef(key *ec.PublicKey) ledger.Ref {
	return ledger.AssociatedRef(key.Compressed(), e.assets.Native)
}

// Result reports the effects of a committed operation.
type Result struct {
	Address     escrow.Address
	Entry       *escrow.Entry
	Grant       *escrow.Grant
	Account     *accounts.Account
	Collectible ledger.AssetID
	Rewards     *rewards.Plan
	Total       uint64 // amount locked or moved
	Paid        uint64 // amount paid out to recipients and operator
	Deposits    uint64 // storage deposits reserved
	Released    uint64 // storage deposits released to the operator
	Reimbursed  uint64 // paid to the calling administrator
	Idempotent  bool   // the operation found its effect already applied
	Message     string
}

// txn is the per-operation view of every store, bound to one transaction.
type txn struct {
	e       *Engine
	tx      *bbolt.Tx
	book    *ledger.Book
	escrows *escrow.Store
	admins  *admin.Registry
	dir     *accounts.Directory
	nfts    *collectible.Registry
	budget  *reimburse.Budget
	now     time.Time
	fields  []zap.Field
}

// newTxn binds every store to tx. Only writable transactions get a budget.
func (e *Engine) newTxn(tx *bbolt.Tx) (*txn, error) {
	book, err := ledger.NewBook(tx)
	if err != nil {
		return nil, err
	}
	escrows, err := escrow.NewStore(tx)
	if err != nil {
		return nil, err
	}
	admins, err := admin.NewRegistry(tx)
	if err != nil {
		return nil, err
	}
	dir, err := accounts.NewDirectory(tx)
	if err != nil {
		return nil, err
	}
	nfts, err := collectible.NewRegistry(tx)
	if err != nil {
		return nil, err
	}
	t := &txn{
		e:       e,
		tx:      tx,
		book:    book,
		escrows: escrows,
		admins:  admins,
		dir:     dir,
		nfts:    nfts,
		now:     e.nowFunc(),
	}
	if tx.Writable() {
		t.budget, err = reimburse.NewBudget(tx, book, e.rate, e.OperatorRefs().Reserve, e.reserve)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// log appends fields to the operation's completion line.
func (t *txn) log(fields ...zap.Field) { t.fields = append(t.fields, fields...) }

// run executes fn as one atomic operation named op. Any error rolls back
// every write fn made and is returned translated to the public error set.
func (e *Engine) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(t *txn) error) error {
	ctx, span := e.tracer.Start(ctx, "settlement."+op, trace.WithAttributes(attrs...))
	defer span.End()

	var fields []zap.Field
	err := ctx.Err()
	if err == nil {
		err = e.db.Update(func(tx *bbolt.Tx) error {
			t, err := e.newTxn(tx)
			if err != nil {
				return err
			}
			if err := fn(t); err != nil {
				return err
			}
			fields = t.fields
			return nil
		})
	}
	err = translate(err)

	logFields := append([]zap.Field{zap.String("op", op)}, traceFields(ctx)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Warn("operation rejected", append(logFields,
			zap.String("class", ClassOf(err).String()),
			zap.Error(err))...)
		return err
	}
	span.SetStatus(codes.Ok, "")
	e.log.Info("operation committed", append(logFields, fields...)...)
	return nil
}

// view runs fn in a read-only transaction.
func (e *Engine) view(fn func(t *txn) error) error {
	return translate(e.db.View(func(tx *bbolt.Tx) error {
		t, err := e.newTxn(tx)
		if err != nil {
			return err
		}
		return fn(t)
	}))
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

func idAttrs(releaseID, buyerID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("release_id", releaseID),
		attribute.String("buyer_id", buyerID),
	}
}

// proveKey checks that s holds the private key of the public key it
// reports, by signing and verifying a digest of op and parts.
func proveKey(s ledger.Signer, op string, parts ...[]byte) (*ec.PublicKey, error) {
	if s == nil || s.PubKey() == nil {
		return nil, fmt.Errorf("%w: no caller key", ErrUnauthorized)
	}
	h := sha256.New()
	h.Write([]byte("settle-caller:" + op))
	for _, p := range parts {
		h.Write(p)
	}
	digest := h.Sum(nil)
	sig, err := s.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %w", ErrUnauthorized, err)
	}
	pub := s.PubKey()
	if !sig.Verify(digest, pub) {
		return nil, fmt.Errorf("%w: caller signature invalid", ErrUnauthorized)
	}
	return pub, nil
}

// requireAdmin authenticates caller and checks it is an administrator.
func (t *txn) requireAdmin(caller ledger.Signer, op string) (*ec.PublicKey, error) {
	pub, err := proveKey(caller, op)
	if err != nil {
		return nil, err
	}
	if !t.admins.IsAdmin(pub) {
		return nil, fmt.Errorf("%w: %x is not an administrator", ErrUnauthorized, pub.Compressed())
	}
	return pub, nil
}

// reserve charges the storage deposit of a record to the calling
// administrator's native holder.
func (t *txn) reserve(caller ledger.Signer, kind reimburse.Kind, record []byte, size int, res *Result) error {
	deposit, err := t.budget.Reserve(kind, record, size, t.e.AdminRef(caller.PubKey()), caller, t.now.Unix())
	if err != nil {
		return err
	}
	res.Deposits += deposit
	return nil
}

// release returns a record's deposit to the operator. A record without a
// line item is skipped.
func (t *txn) release(kind reimburse.Kind, record []byte, res *Result) error {
	if _, err := t.budget.Item(kind, record); errors.Is(err, reimburse.ErrNoLineItem) {
		return nil
	} else if err != nil {
		return err
	}
	released, err := t.budget.Release(kind, record, t.e.OperatorRefs().Native)
	if err != nil {
		return err
	}
	res.Released += released
	return nil
}

// reimburse pays the administrator back the deposits it fronted in this
// operation plus compensation. It must be the last effect of an operation.
func (t *txn) reimburse(caller ledger.Signer, compensation uint64, res *Result) error {
	paid, err := reimburse.Reimburse(t.book, t.e.OperatorRefs().Native, t.e.operator,
		t.e.AdminRef(caller.PubKey()), res.Deposits, compensation)
	if err != nil {
		return err
	}
	res.Reimbursed = paid
	t.log(zap.Uint64("deposits", res.Deposits), zap.Uint64("reimbursed", paid))
	return nil
}

// normalizeIDs canonicalizes a release and buyer id pair.
func normalizeIDs(releaseID, buyerID string) (string, string, error) {
	rid, err := escrow.NormalizeID(releaseID)
	if err != nil {
		return "", "", fmt.Errorf("release id: %w", err)
	}
	bid, err := escrow.NormalizeID(buyerID)
	if err != nil {
		return "", "", fmt.Errorf("buyer id: %w", err)
	}
	return rid, bid, nil
}

// buyer resolves the user account of buyerID.
func (t *txn) buyer(buyerID string) (*accounts.Account, error) {
	acct, err := t.dir.Resolve(accounts.RoleUser, buyerID)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// custody returns the signer owning the default holders of an account.
func (e *Engine) custody(role accounts.Role, id string) (*ec.PrivateKey, error) {
	return e.kr.Custody(role.String() + "/" + id)
}
