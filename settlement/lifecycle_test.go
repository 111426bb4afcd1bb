package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libsettle-go/collectible"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/reimburse"
	"github.com/bitfsorg/libsettle-go/rewards"
)

const openDeposits = uint64(escrow.EntrySize + ledger.HolderSize)

func (f *fixture) openReq() OpenRequest {
	return OpenRequest{
		ReleaseID:    "release-1",
		BuyerID:      "buyer-1",
		Fee:          500_000,
		Splits:       []escrow.Split{f.split(0, 1_000_000), f.split(1, 1_000_000)},
		PurchaseDate: testNow.Unix(),
	}
}

func (f *fixture) fulfillReq() FulfillRequest {
	return FulfillRequest{
		ReleaseID: "release-1",
		BuyerID:   "buyer-1",
		Metadata: collectible.Metadata{
			Name:                 "First Light",
			Symbol:               "LIGHT",
			URI:                  "https://cdn.example.com/releases/1.json",
			SellerFeeBasisPoints: 500,
		},
		Creators: []collectible.Creator{
			{Key: f.eng.OperatorKey().Compressed(), Share: 60, Verified: false},
			{Key: f.admin.PubKey().Compressed(), Share: 40, Verified: true},
		},
		RecipientRefs: []ledger.Ref{f.artist[0].Payment, f.artist[1].Payment},
	}
}

func (f *fixture) rewardRefs() []ledger.Ref {
	return []ledger.Ref{f.artist[0].Creator, f.artist[1].Creator}
}

// --- Open tests ---

func TestOpenLocksFunds(t *testing.T) {
	f := newFixture(t, Options{})
	adminRef := f.eng.AdminRef(f.admin.PubKey())
	adminBefore := f.balance(t, adminRef)
	opBefore := f.balance(t, f.refs.Native)
	reserveBefore := f.balance(t, f.refs.Reserve)

	res, err := f.eng.Open(f.ctx, f.admin, OpenRequest{
		ReleaseID:       "release-1",
		BuyerID:         "buyer-1",
		Fee:             500_000,
		Splits:          []escrow.Split{f.split(0, 1_000_000), f.split(1, 1_000_000)},
		PurchaseDate:    testNow.Unix(),
		FeeCompensation: 5_000,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(2_500_000), res.Total)
	assert.Equal(t, uint64(buyerFunds-2_500_000), f.balance(t, f.buyer.Payment))
	assert.Equal(t, uint64(2_500_000), f.balance(t, res.Entry.Custody))
	assert.False(t, res.Idempotent)

	entry, err := f.eng.Entry("release-1", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, "funded", entry.State())
	assert.Equal(t, uint64(2_500_000), entry.Total)
	assert.Equal(t, entry.Fee+escrow.SplitSum(entry.Splits), entry.Total)
	assert.Equal(t, escrow.Flags(0), entry.Flags)
	assert.True(t, escrow.VerifyAddress(escrow.TagEscrow, "release-1", "buyer-1", entry.Address, entry.Bump))

	assert.Equal(t, openDeposits, res.Deposits)
	assert.Equal(t, openDeposits+5_000, res.Reimbursed)
	assert.Equal(t, adminBefore+5_000, f.balance(t, adminRef))
	assert.Equal(t, opBefore-openDeposits-5_000, f.balance(t, f.refs.Native))
	assert.Equal(t, reserveBefore+openDeposits, f.balance(t, f.refs.Reserve))

	items, err := f.eng.LineItems()
	require.NoError(t, err)
	var kinds []reimburse.Kind
	for _, it := range items {
		if it.Record == entry.Address.String() || it.Record == entry.Custody.String() {
			kinds = append(kinds, it.Kind)
		}
	}
	assert.ElementsMatch(t, []reimburse.Kind{reimburse.KindEntry, reimburse.KindHolder}, kinds)
}

func TestOpenIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	first, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	buyerAfterFirst := f.balance(t, f.buyer.Payment)

	req := f.openReq()
	req.FeeCompensation = 700
	second, err := f.eng.Open(f.ctx, f.admin, req)
	require.NoError(t, err)

	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, first.Total, second.Total)
	assert.Zero(t, second.Deposits)
	assert.Equal(t, uint64(700), second.Reimbursed)
	assert.Equal(t, buyerAfterFirst, f.balance(t, f.buyer.Payment))
	assert.Equal(t, first.Total, f.balance(t, first.Entry.Custody))
}

func TestOpenNormalizesUUIDs(t *testing.T) {
	f := newFixture(t, Options{})
	req := f.openReq()
	req.ReleaseID = "6F9619FF-8B86-D011-B42D-00C04FC964FF"
	res, err := f.eng.Open(f.ctx, f.admin, req)
	require.NoError(t, err)
	assert.Equal(t, "6f9619ff8b86d011b42d00c04fc964ff", res.Entry.ReleaseID)

	entry, err := f.eng.Entry("6f9619ff-8b86-d011-b42d-00c04fc964ff", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, res.Address, entry.Address)
}

// custodyOf returns the custody holder Open derives for a release and buyer.
func (f *fixture) custodyOf(t *testing.T, releaseID, buyerID string) ledger.Ref {
	t.Helper()
	addr, _, err := escrow.DeriveAddress(escrow.TagEscrow, releaseID, buyerID)
	require.NoError(t, err)
	return ledger.AssociatedRef(addr[:], f.eng.assets.Payment)
}

func TestOpenRejects(t *testing.T) {
	f := newFixture(t, Options{MaxSplits: 2})
	custody := f.custodyOf(t, "release-1", "buyer-1")

	tests := []struct {
		name   string
		mutate func(r *OpenRequest)
		want   error
	}{
		{"too many splits", func(r *OpenRequest) {
			r.Splits = append(r.Splits, f.split(0, 1))
		}, ErrInvalidPaymentSplits},
		{"total overflows", func(r *OpenRequest) {
			r.Fee = ^uint64(0)
		}, ErrInvalidSplitTotal},
		{"nothing to lock", func(r *OpenRequest) {
			r.Fee = 0
			r.Splits = []escrow.Split{f.split(0, 0)}
		}, ErrInvalidInput},
		{"zero recipient", func(r *OpenRequest) {
			r.Splits[1].Recipient = ledger.Ref{}
		}, ErrInvalidInput},
		{"split pays the escrow itself", func(r *OpenRequest) {
			r.Splits[0].Recipient = custody
		}, ErrInvalidPaymentSplits},
		{"empty release id", func(r *OpenRequest) {
			r.ReleaseID = ""
		}, ErrInvalidInput},
		{"oversized buyer id", func(r *OpenRequest) {
			r.BuyerID = "this-buyer-id-is-far-too-long-to-fit-the-field"
		}, ErrInvalidInput},
		{"unknown buyer", func(r *OpenRequest) {
			r.BuyerID = "nobody"
		}, ErrInvalidUser},
		{"artist as buyer", func(r *OpenRequest) {
			r.BuyerID = f.artist[0].ID
		}, ErrInvalidUser},
		{"insufficient funds", func(r *OpenRequest) {
			r.Splits = []escrow.Split{f.split(0, 3_000_000), f.split(1, 3_000_000)}
		}, ErrInsufficientFunds},
		{"bad access rights", func(r *OpenRequest) {
			r.Access = &escrow.AccessTerms{Kind: escrow.GrantRental, Rights: 0x80}
		}, ErrInvalidInput},
		{"access expires before purchase", func(r *OpenRequest) {
			r.Access = &escrow.AccessTerms{Kind: escrow.GrantRental, Rights: escrow.RightStream, ExpiresAt: testNow.Unix() - 1}
		}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.openReq()
			tt.mutate(&req)
			_, err := f.eng.Open(f.ctx, f.admin, req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, uint64(buyerFunds), f.balance(t, f.buyer.Payment))
		})
	}

	entries, err := f.eng.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Scenario D: a purchase above the buyer's balance funds nothing.
func TestOpenInsufficientFundsLeavesNoEntry(t *testing.T) {
	f := newFixture(t, Options{})
	req := f.openReq()
	req.Splits = []escrow.Split{f.split(0, 3_000_000), f.split(1, 3_000_000)}

	_, err := f.eng.Open(f.ctx, f.admin, req)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, ClassFunds, ClassOf(err))

	_, err = f.eng.Entry("release-1", "buyer-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint64(buyerFunds), f.balance(t, f.buyer.Payment))
}

func TestReimbursementShortfallFailsWholeCall(t *testing.T) {
	f := newFixture(t, Options{})
	opBefore := f.balance(t, f.refs.Native)
	req := f.openReq()
	req.FeeCompensation = opBefore + 1

	_, err := f.eng.Open(f.ctx, f.admin, req)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.eng.Entry("release-1", "buyer-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint64(buyerFunds), f.balance(t, f.buyer.Payment))
	assert.Equal(t, opBefore, f.balance(t, f.refs.Native))
}

// --- Fulfill tests ---

func TestFulfillPaysAndMints(t *testing.T) {
	f := newFixture(t, Options{})
	opened, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	feeBefore := f.balance(t, f.refs.Fee)
	adminRef := f.eng.AdminRef(f.admin.PubKey())
	adminBefore := f.balance(t, adminRef)

	res, err := f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	require.NoError(t, err)

	// Scenario B.
	assert.Equal(t, feeBefore+500_000, f.balance(t, f.refs.Fee))
	assert.Equal(t, uint64(1_000_000), f.balance(t, f.artist[0].Payment))
	assert.Equal(t, uint64(1_000_000), f.balance(t, f.artist[1].Payment))
	assert.Equal(t, uint64(0), f.balance(t, opened.Entry.Custody))
	assert.Equal(t, uint64(2_500_000), res.Paid)

	entry, err := f.eng.Entry("release-1", "buyer-1")
	require.NoError(t, err)
	assert.True(t, entry.Flags.Has(escrow.FlagPaymentsFulfilled|escrow.FlagCollectibleMinted|escrow.FlagFulfilled))
	assert.False(t, entry.Flags.Has(escrow.FlagRewardsPaid))
	assert.Equal(t, res.Collectible, entry.Collectible)

	holder := ledger.AssociatedRef(f.buyer.Custody, res.Collectible)
	assert.Equal(t, uint64(1), f.balance(t, holder))

	meta, err := f.eng.Collectible(res.Collectible)
	require.NoError(t, err)
	assert.Equal(t, "First Light", meta.Name)
	assert.Equal(t, "release-1", meta.ReleaseID)
	require.Len(t, meta.Creators, 2)
	assert.True(t, meta.Creators[0].Verified)
	assert.False(t, meta.Creators[1].Verified)

	deposits := uint64(ledger.MintSize + ledger.HolderSize + collectible.MetadataSize)
	assert.Equal(t, deposits, res.Deposits)
	assert.Equal(t, adminBefore, f.balance(t, adminRef))
}

func TestFulfillTwiceFails(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	_, err = f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	require.NoError(t, err)

	// Scenario C.
	snapshot := []uint64{
		f.balance(t, f.refs.Fee),
		f.balance(t, f.artist[0].Payment),
		f.balance(t, f.artist[1].Payment),
		f.balance(t, f.refs.Native),
	}
	_, err = f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	require.ErrorIs(t, err, ErrEscrowAlreadyFulfilled)
	assert.Equal(t, ClassState, ClassOf(err))
	assert.Equal(t, snapshot, []uint64{
		f.balance(t, f.refs.Fee),
		f.balance(t, f.artist[0].Payment),
		f.balance(t, f.artist[1].Payment),
		f.balance(t, f.refs.Native),
	})
}

func TestFulfillRejectsSubstitutedRecipient(t *testing.T) {
	f := newFixture(t, Options{})
	opened, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	adminRef := f.eng.AdminRef(f.admin.PubKey())
	adminBefore := f.balance(t, adminRef)

	req := f.fulfillReq()
	req.RecipientRefs = []ledger.Ref{f.artist[0].Payment, f.buyer.Payment}
	req.FeeCompensation = 1_000
	_, err = f.eng.Fulfill(f.ctx, f.admin, req)
	require.ErrorIs(t, err, ErrInvalidPaymentReceiver)

	assert.Equal(t, uint64(0), f.balance(t, f.artist[0].Payment))
	assert.Equal(t, uint64(0), f.balance(t, f.refs.Fee))
	assert.Equal(t, opened.Total, f.balance(t, opened.Entry.Custody))
	assert.Equal(t, adminBefore, f.balance(t, adminRef))

	entry, err := f.eng.Entry("release-1", "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, escrow.Flags(0), entry.Flags)
}

func TestFulfillReferenceCount(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)

	req := f.fulfillReq()
	req.RecipientRefs = req.RecipientRefs[:1]
	_, err = f.eng.Fulfill(f.ctx, f.admin, req)
	assert.ErrorIs(t, err, ErrNotEnoughAccounts)

	req = f.fulfillReq()
	req.RecipientRefs = append(req.RecipientRefs, f.buyer.Payment)
	_, err = f.eng.Fulfill(f.ctx, f.admin, req)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFulfillSkipsZeroSplits(t *testing.T) {
	f := newFixture(t, Options{})
	req := f.openReq()
	req.Splits = []escrow.Split{f.split(0, 1_000_000), f.split(1, 0)}
	opened, err := f.eng.Open(f.ctx, f.admin, req)
	require.NoError(t, err)
	require.Equal(t, uint64(1_500_000), opened.Total)

	res, err := f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	require.NoError(t, err)

	assert.Equal(t, opened.Total, res.Paid)
	assert.Equal(t, uint64(0), f.balance(t, opened.Entry.Custody))
	assert.Equal(t, uint64(0), f.balance(t, f.artist[1].Payment))
}

func TestFulfillRejectsBadMetadata(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)

	req := f.fulfillReq()
	req.Creators[1].Share = 10
	_, err = f.eng.Fulfill(f.ctx, f.admin, req)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, collectible.ErrInvalidCreators)

	req = f.fulfillReq()
	req.Metadata.Name = ""
	_, err = f.eng.Fulfill(f.ctx, f.admin, req)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, uint64(0), f.balance(t, f.artist[0].Payment))
}

func TestFulfillMissingEntry(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Complete tests ---

func TestCompleteIssuesRewardsAndReleasesStorage(t *testing.T) {
	f := newFixture(t, Options{})
	opened, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	_, err = f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	require.NoError(t, err)
	opBefore := f.balance(t, f.refs.Native)

	res, err := f.eng.Complete(f.ctx, f.admin, CompleteRequest{
		ReleaseID:         "release-1",
		BuyerID:           "buyer-1",
		CreatorRewardRefs: f.rewardRefs(),
		FeeCompensation:   100,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(2_500_000), f.balance(t, f.buyer.Listener))
	assert.Equal(t, uint64(1_250_000), f.balance(t, f.artist[0].Creator))
	assert.Equal(t, uint64(1_250_000), f.balance(t, f.artist[1].Creator))
	assert.Equal(t, uint64(0), f.balance(t, f.refs.CreatorReward))
	assert.Equal(t, &rewards.Plan{Buyer: 2_500_000, Creators: []uint64{1_250_000, 1_250_000}}, res.Rewards)
	assert.True(t, res.Entry.Flags.Has(escrow.FlagRewardsPaid))

	_, err = f.eng.Entry("release-1", "buyer-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.eng.Balance(opened.Entry.Custody)
	assert.Error(t, err)

	assert.Equal(t, openDeposits, res.Released)
	assert.Equal(t, opBefore+openDeposits-100, f.balance(t, f.refs.Native))

	_, err = f.eng.Complete(f.ctx, f.admin, CompleteRequest{ReleaseID: "release-1", BuyerID: "buyer-1", CreatorRewardRefs: f.rewardRefs()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteRemainderGoesToOperator(t *testing.T) {
	f := newFixture(t, Options{})
	req := f.openReq()
	req.Fee = 1
	req.Splits = []escrow.Split{f.split(0, 1_000_000), f.split(0, 1_000_000), f.split(1, 1_000_000)}
	_, err := f.eng.Open(f.ctx, f.admin, req)
	require.NoError(t, err)
	freq := f.fulfillReq()
	freq.RecipientRefs = []ledger.Ref{f.artist[0].Payment, f.artist[0].Payment, f.artist[1].Payment}
	_, err = f.eng.Fulfill(f.ctx, f.admin, freq)
	require.NoError(t, err)

	res, err := f.eng.Complete(f.ctx, f.admin, CompleteRequest{
		ReleaseID:         "release-1",
		BuyerID:           "buyer-1",
		CreatorRewardRefs: []ledger.Ref{f.artist[0].Creator, f.artist[0].Creator, f.artist[1].Creator},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(2_000_000), f.balance(t, f.artist[0].Creator))
	assert.Equal(t, uint64(1_000_000), f.balance(t, f.artist[1].Creator))
	assert.Equal(t, uint64(1), res.Rewards.Remainder)
	assert.Equal(t, uint64(1), f.balance(t, f.refs.CreatorReward))
	assert.Equal(t, uint64(3_000_001), res.Rewards.Issued())
}

func TestCompleteBuyerPercentUnclaimedRemainder(t *testing.T) {
	f := newFixture(t, Options{Rewards: rewards.Policy{
		BuyerMode:        rewards.BuyerPercent,
		BuyerBasisPoints: 1_000,
		Remainder:        rewards.RemainderUnclaimed,
	}})
	req := f.openReq()
	req.Fee = 1
	req.Splits = []escrow.Split{f.split(0, 1_000_000), f.split(0, 1_000_000), f.split(1, 1_000_000)}
	_, err := f.eng.Open(f.ctx, f.admin, req)
	require.NoError(t, err)
	freq := f.fulfillReq()
	freq.RecipientRefs = []ledger.Ref{f.artist[0].Payment, f.artist[0].Payment, f.artist[1].Payment}
	_, err = f.eng.Fulfill(f.ctx, f.admin, freq)
	require.NoError(t, err)

	res, err := f.eng.Complete(f.ctx, f.admin, CompleteRequest{
		ReleaseID:         "release-1",
		BuyerID:           "buyer-1",
		CreatorRewardRefs: []ledger.Ref{f.artist[0].Creator, f.artist[0].Creator, f.artist[1].Creator},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(300_000), res.Rewards.Buyer)
	assert.Equal(t, uint64(300_000), f.balance(t, f.buyer.Listener))
	assert.Zero(t, res.Rewards.Remainder)
	assert.Equal(t, uint64(0), f.balance(t, f.refs.CreatorReward))
}

func TestCompletePreconditions(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	creq := CompleteRequest{ReleaseID: "release-1", BuyerID: "buyer-1", CreatorRewardRefs: f.rewardRefs()}

	_, err = f.eng.Complete(f.ctx, f.admin, creq)
	require.ErrorIs(t, err, ErrEscrowNotFulfilled)

	_, err = f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	require.NoError(t, err)

	bad := creq
	bad.CreatorRewardRefs = []ledger.Ref{f.artist[1].Creator, f.artist[0].Creator}
	_, err = f.eng.Complete(f.ctx, f.admin, bad)
	require.ErrorIs(t, err, ErrInvalidPaymentReceiver)
	assert.Equal(t, uint64(0), f.balance(t, f.buyer.Listener))

	bad.CreatorRewardRefs = f.rewardRefs()[:1]
	_, err = f.eng.Complete(f.ctx, f.admin, bad)
	require.ErrorIs(t, err, ErrNotEnoughAccounts)

	_, err = f.eng.Entry("release-1", "buyer-1")
	assert.NoError(t, err)
}

func TestCompleteRefusesNonEmptyCustody(t *testing.T) {
	f := newFixture(t, Options{})
	opened, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	_, err = f.eng.Fulfill(f.ctx, f.admin, f.fulfillReq())
	require.NoError(t, err)
	f.credit(t, f.eng.assets.Payment, opened.Entry.Custody, 5)

	_, err = f.eng.Complete(f.ctx, f.admin, CompleteRequest{ReleaseID: "release-1", BuyerID: "buyer-1", CreatorRewardRefs: f.rewardRefs()})
	require.ErrorIs(t, err, ErrTokenAccountNotEmpty)
	assert.Equal(t, ClassResource, ClassOf(err))
	assert.Equal(t, uint64(0), f.balance(t, f.buyer.Listener))

	entry, err := f.eng.Entry("release-1", "buyer-1")
	require.NoError(t, err)
	assert.False(t, entry.Flags.Has(escrow.FlagRewardsPaid))
}

// --- Close tests ---

func TestCloseRefundsToOperator(t *testing.T) {
	f := newFixture(t, Options{})
	opened, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	feeBefore := f.balance(t, f.refs.Fee)
	opBefore := f.balance(t, f.refs.Native)

	// Scenario E.
	res, err := f.eng.Close(f.ctx, f.admin, CloseRequest{ReleaseID: "release-1", BuyerID: "buyer-1", FeeCompensation: 10})
	require.NoError(t, err)

	assert.Equal(t, uint64(2_500_000), res.Paid)
	assert.Equal(t, feeBefore+2_500_000, f.balance(t, f.refs.Fee))
	assert.Equal(t, openDeposits, res.Released)
	assert.Equal(t, opBefore+openDeposits-10, f.balance(t, f.refs.Native))

	_, err = f.eng.Entry("release-1", "buyer-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.eng.Balance(opened.Entry.Custody)
	assert.Error(t, err)

	items, err := f.eng.LineItems()
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, opened.Address.String(), it.Record)
		assert.NotEqual(t, opened.Entry.Custody.String(), it.Record)
	}
}

func TestCloseMissingEntry(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Close(f.ctx, f.admin, CloseRequest{ReleaseID: "release-9", BuyerID: "buyer-1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ClassNotFound, ClassOf(err))
}

func TestReopenAfterClose(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	_, err = f.eng.Close(f.ctx, f.admin, CloseRequest{ReleaseID: "release-1", BuyerID: "buyer-1"})
	require.NoError(t, err)

	res, err := f.eng.Open(f.ctx, f.admin, f.openReq())
	require.NoError(t, err)
	assert.False(t, res.Idempotent)
	assert.Equal(t, openDeposits, res.Deposits)
	assert.Equal(t, uint64(buyerFunds-5_000_000), f.balance(t, f.buyer.Payment))
}
