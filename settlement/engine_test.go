package settlement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/admin"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/keys"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/splits"
	"github.com/bitfsorg/libsettle-go/store"
)

var testNow = time.Unix(1_700_000_000, 0)

const (
	adminFunds    = 1_000_000
	operatorFunds = 1_000_000
	buyerFunds    = 5_000_000
)

// unitRate prices every record at exactly its size.
var unitRate = reimburse.Rate{ByteRate: 1, ExemptionFactor: 1}

type fixture struct {
	ctx    context.Context
	eng    *Engine
	admin  *ec.PrivateKey
	refs   OperatorRefs
	buyer  *accounts.Account
	artist [2]*accounts.Account
}

func newKey(t *testing.T) *ec.PrivateKey {
	t.Helper()
	k, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return k
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "settle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	kr, err := keys.NewKeyring(bytes.Repeat([]byte{0x42}, keys.SeedSize))
	require.NoError(t, err)
	if opts.Rate == (reimburse.Rate{}) {
		opts.Rate = unitRate
	}
	eng, err := New(db, kr, opts)
	require.NoError(t, err)
	eng.SetNowFunc(func() time.Time { return testNow })
	return eng
}

// newFixture initializes an engine with one funded administrator, a funded
// operator, one buyer holding buyerFunds and two artists.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), eng: newEngine(t, opts), admin: newKey(t)}
	f.refs = f.eng.OperatorRefs()

	_, err := f.eng.Initialize(f.ctx, f.admin.PubKey())
	require.NoError(t, err)
	f.credit(t, f.eng.assets.Native, f.eng.AdminRef(f.admin.PubKey()), adminFunds)
	f.credit(t, f.eng.assets.Native, f.refs.Native, operatorFunds)

	res, err := f.eng.ProvisionUser(f.ctx, f.admin, "buyer-1", nil)
	require.NoError(t, err)
	f.buyer = res.Account
	for i := range f.artist {
		res, err := f.eng.ProvisionArtist(f.ctx, f.admin, fmt.Sprintf("artist-%d", i+1), nil)
		require.NoError(t, err)
		f.artist[i] = res.Account
	}
	f.credit(t, f.eng.assets.Payment, f.buyer.Payment, buyerFunds)
	return f
}

func (f *fixture) credit(t *testing.T, asset ledger.AssetID, to ledger.Ref, amount uint64) {
	t.Helper()
	_, err := f.eng.Credit(f.ctx, f.admin, CreditRequest{Asset: asset, To: to, Amount: amount})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, ref ledger.Ref) uint64 {
	t.Helper()
	b, err := f.eng.Balance(ref)
	require.NoError(t, err)
	return b
}

// split pays artist i amount, with creator rewards to the same artist.
func (f *fixture) split(i int, amount uint64) escrow.Split {
	return escrow.Split{Recipient: f.artist[i].Payment, RewardRecipient: f.artist[i].Creator, Amount: amount}
}

// impostor claims one public key and signs with another.
type impostor struct {
	claimed *ec.PublicKey
	key     *ec.PrivateKey
}

func (i impostor) PubKey() *ec.PublicKey { return i.claimed }

func (i impostor) Sign(hash []byte) (*ec.Signature, error) { return i.key.Sign(hash) }

// --- Construction tests ---

func TestNewRejectsBadOptions(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "settle.db"))
	require.NoError(t, err)
	defer db.Close()
	kr, err := keys.NewKeyring(bytes.Repeat([]byte{0x07}, keys.SeedSize))
	require.NoError(t, err)

	_, err = New(nil, kr, Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(db, kr, Options{Assets: Assets{Payment: "usdc", Listener: "usdc", Creator: "c", Native: "n"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(db, kr, Options{Rate: reimburse.Rate{RecordOverhead: 1}})
	assert.ErrorIs(t, err, reimburse.ErrInvalidRate)

	eng, err := New(db, kr, Options{MaxSplits: 99})
	require.NoError(t, err)
	assert.Equal(t, escrow.MaxSplits, eng.maxSplits)
	assert.Equal(t, DefaultAssets(), eng.assets)
}

func TestOperatorRefsAreDistinct(t *testing.T) {
	eng := newEngine(t, Options{})
	refs := eng.OperatorRefs()
	seen := map[ledger.Ref]bool{}
	for _, r := range []ledger.Ref{refs.Fee, refs.Native, refs.CreatorReward, refs.Reserve} {
		assert.False(t, seen[r])
		seen[r] = true
	}
}

// --- Bootstrap and roster tests ---

func TestInitializeIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})

	res, err := f.eng.Initialize(f.ctx, f.admin.PubKey())
	require.NoError(t, err)
	assert.True(t, res.Idempotent)

	_, err = f.eng.Initialize(f.ctx, newKey(t).PubKey())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, admin.ErrAlreadyBootstrapped)

	admins, err := f.eng.Admins()
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, f.admin.PubKey().Compressed(), admins[0].PubKey)
}

func TestAddAndRemoveAdmin(t *testing.T) {
	f := newFixture(t, Options{})
	second := newKey(t)
	adminBefore := f.balance(t, f.eng.AdminRef(f.admin.PubKey()))

	res, err := f.eng.AddAdmin(f.ctx, f.admin, second.PubKey(), 25)
	require.NoError(t, err)
	assert.Equal(t, uint64(admin.RecordSize+ledger.HolderSize), res.Deposits)
	assert.Equal(t, res.Deposits+25, res.Reimbursed)
	assert.Equal(t, adminBefore+25, f.balance(t, f.eng.AdminRef(f.admin.PubKey())))
	assert.Equal(t, uint64(0), f.balance(t, f.eng.AdminRef(second.PubKey())))

	_, err = f.eng.AddAdmin(f.ctx, f.admin, second.PubKey(), 0)
	assert.ErrorIs(t, err, ErrAdminAlreadyExists)

	// The second admin removes the bootstrap admin, which has no deposit.
	res, err = f.eng.RemoveAdmin(f.ctx, second, f.admin.PubKey(), 0)
	require.NoError(t, err)
	assert.Zero(t, res.Released)

	_, err = f.eng.RemoveAdmin(f.ctx, second, second.PubKey(), 0)
	assert.ErrorIs(t, err, ErrCannotRemoveLastAdmin)

	_, err = f.eng.RemoveAdmin(f.ctx, second, f.admin.PubKey(), 0)
	assert.ErrorIs(t, err, ErrAdminNotFound)

	_, err = f.eng.AddAdmin(f.ctx, f.admin, newKey(t).PubKey(), 0)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRemoveAdminReleasesDeposit(t *testing.T) {
	f := newFixture(t, Options{})
	second := newKey(t)
	_, err := f.eng.AddAdmin(f.ctx, f.admin, second.PubKey(), 0)
	require.NoError(t, err)

	opBefore := f.balance(t, f.refs.Native)
	res, err := f.eng.RemoveAdmin(f.ctx, f.admin, second.PubKey(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(admin.RecordSize), res.Released)
	assert.Equal(t, opBefore+uint64(admin.RecordSize), f.balance(t, f.refs.Native))
}

func TestCallerAuthentication(t *testing.T) {
	f := newFixture(t, Options{})
	req := OpenRequest{ReleaseID: "rel-1", BuyerID: "buyer-1", Fee: 1}

	tests := []struct {
		name   string
		caller ledger.Signer
	}{
		{"nil caller", nil},
		{"stranger", newKey(t)},
		{"impostor claiming admin key", impostor{claimed: f.admin.PubKey(), key: newKey(t)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Open(f.ctx, tt.caller, req)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, ClassAuthorization, ClassOf(err))
		})
	}
	assert.Equal(t, uint64(buyerFunds), f.balance(t, f.buyer.Payment))
}

func TestCreditRestrictsAssets(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Credit(f.ctx, f.admin, CreditRequest{Asset: f.eng.assets.Listener, To: f.buyer.Listener, Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.eng.Credit(f.ctx, f.admin, CreditRequest{Asset: f.eng.assets.Payment, To: f.buyer.Listener, Amount: 1})
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, ledger.ErrAssetMismatch)
}

// --- Error classification tests ---

func TestClassOf(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{ErrUnauthorized, ClassAuthorization},
		{ErrInvalidUser, ClassAuthorization},
		{ErrInvalidInput, ClassValidation},
		{ErrInvalidSplitTotal, ClassValidation},
		{ErrInvalidPaymentSplits, ClassValidation},
		{ErrNotEnoughAccounts, ClassValidation},
		{ErrEscrowAlreadyFulfilled, ClassState},
		{ErrEscrowNotFulfilled, ClassState},
		{ErrPaymentsNotFulfilled, ClassState},
		{ErrCollectibleNotMinted, ClassState},
		{ErrInsufficientFunds, ClassFunds},
		{ErrInvalidPaymentReceiver, ClassFunds},
		{ErrTransferFailed, ClassFunds},
		{ErrCloseAccountFailed, ClassResource},
		{ErrTokenAccountNotEmpty, ClassResource},
		{ErrNotFound, ClassNotFound},
		{fmt.Errorf("wrapped: %w", ErrTokenAccountNotEmpty), ClassResource},
		{errors.New("disk on fire"), ClassInternal},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassOf(tt.err))
		})
	}
}

func TestTranslateKeepsCause(t *testing.T) {
	tests := []struct {
		cause error
		want  error
	}{
		{ledger.ErrInsufficientFunds, ErrInsufficientFunds},
		{ledger.ErrHolderNotEmpty, ErrTokenAccountNotEmpty},
		{ledger.ErrBadSignature, ErrTransferFailed},
		{splits.ErrNotEnoughAccounts, ErrNotEnoughAccounts},
		{splits.ErrUnexpectedAccounts, ErrInvalidInput},
		{escrow.ErrTooManySplits, ErrInvalidPaymentSplits},
		{escrow.ErrTotalOverflow, ErrInvalidSplitTotal},
		{escrow.ErrEntryNotFound, ErrNotFound},
		{escrow.ErrGrantExists, ErrAccessGrantExists},
		{accounts.ErrAccountNotFound, ErrInvalidUser},
		{admin.ErrCannotRemoveLastAdmin, ErrCannotRemoveLastAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.cause.Error(), func(t *testing.T) {
			err := translate(fmt.Errorf("step: %w", tt.cause))
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.cause)
		})
	}

	public := fmt.Errorf("%w: already public", ErrNotFound)
	assert.Same(t, public, translate(public))
	assert.NoError(t, translate(nil))
}

// --- Observability tests ---

func TestOperationsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, Options{Logger: zap.New(core)})
	logs.TakeAll()

	_, err := f.eng.Open(f.ctx, f.admin, OpenRequest{
		ReleaseID: "rel-log",
		BuyerID:   "buyer-1",
		Fee:       10,
		Splits:    []escrow.Split{f.split(0, 90)},
	})
	require.NoError(t, err)

	committed := logs.FilterMessage("operation committed").All()
	require.Len(t, committed, 1)
	fields := committed[0].ContextMap()
	assert.Equal(t, "Open", fields["op"])
	assert.Equal(t, "rel-log", fields["release_id"])
	assert.Equal(t, uint64(100), fields["total"])
	assert.Equal(t, "settlement", committed[0].LoggerName)

	_, err = f.eng.Fulfill(f.ctx, f.admin, FulfillRequest{ReleaseID: "rel-log", BuyerID: "buyer-1"})
	require.Error(t, err)
	rejected := logs.FilterMessage("operation rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
	assert.Equal(t, "Fulfill", rejected[0].ContextMap()["op"])
	assert.Equal(t, "validation", rejected[0].ContextMap()["class"])
}

func TestOperationsAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, Options{TracerProvider: provider, Logger: zap.New(core)})

	_, err := f.eng.Close(f.ctx, f.admin, CloseRequest{ReleaseID: "missing", BuyerID: "buyer-1"})
	require.ErrorIs(t, err, ErrNotFound)

	var closeSpan sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "settlement.Close" {
			closeSpan = s
		}
	}
	require.NotNil(t, closeSpan)
	assert.Equal(t, codes.Error, closeSpan.Status().Code)
	require.NotEmpty(t, closeSpan.Events())
	assert.Equal(t, "exception", closeSpan.Events()[0].Name)

	var sawRelease bool
	for _, kv := range closeSpan.Attributes() {
		if kv.Key == "release_id" && kv.Value.AsString() == "missing" {
			sawRelease = true
		}
	}
	assert.True(t, sawRelease)

	rejected := logs.FilterMessage("operation rejected").All()
	require.NotEmpty(t, rejected)
	last := rejected[len(rejected)-1].ContextMap()
	assert.Equal(t, closeSpan.SpanContext().TraceID().String(), last["trace_id"])
	assert.Equal(t, closeSpan.SpanContext().SpanID().String(), last["span_id"])

	var okSpans int
	for _, s := range recorder.Ended() {
		if s.Name() == "settlement.Credit" && s.Status().Code == codes.Ok {
			okSpans++
		}
	}
	assert.Equal(t, 3, okSpans)
}

func TestCanceledContextCommitsNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.eng.Open(ctx, f.admin, OpenRequest{ReleaseID: "rel-1", BuyerID: "buyer-1", Fee: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ClassInternal, ClassOf(err))
	assert.Equal(t, uint64(buyerFunds), f.balance(t, f.buyer.Payment))
}
