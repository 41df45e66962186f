package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/walletd/internal/ledger"
)

func TestReverseDepositRestoresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.wallet(t, "owner-a", "100.00")

	dep, err := f.transfers.Deposit(ctx, ledger.DepositInput{WalletID: a.ID, Amount: dec("50.00")})
	require.NoError(t, err)
	assertAmount(t, "150.00", f.balance(t, a.ID))

	res, err := f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: dep.Transaction.ID, RequestedBy: "owner-a", Reason: "duplicate"})
	require.NoError(t, err)

	assertAmount(t, "100.00", f.balance(t, a.ID))
	assert.Equal(t, ledger.StatusReversed, res.Original.Status)
	require.Len(t, res.Compensating, 1)
	assert.Equal(t, ledger.KindReversalDeposit, res.Compensating[0].Kind)
	assert.Equal(t, dep.Transaction.ID, res.Compensating[0].ReversalOf)
	assert.Empty(t, res.Compensating[0].FromWallet)

	stored, err := f.store.Transaction(ctx, dep.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReversed, stored.Status)

	rev, err := f.store.ReversalFor(ctx, dep.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", rev.RequestedBy)
	assert.Equal(t, "duplicate", rev.Reason)
}

func TestReverseTransferEmitsCompensatingPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.wallet(t, "owner-a", "100.00")
	b := f.wallet(t, "owner-b", "10.00")

	tr, err := f.transfers.Transfer(ctx, ledger.TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("30.00")})
	require.NoError(t, err)

	res, err := f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: tr.Transaction.ID, RequestedBy: "owner-a"})
	require.NoError(t, err)

	assertAmount(t, "100.00", f.balance(t, a.ID))
	assertAmount(t, "10.00", f.balance(t, b.ID))
	assert.Equal(t, ledger.StatusReversed, res.Original.Status)

	require.Len(t, res.Compensating, 2)
	out, in := res.Compensating[0], res.Compensating[1]
	assert.Equal(t, ledger.KindReversalTransferOut, out.Kind)
	assert.Equal(t, b.ID, out.FromWallet)
	assert.Equal(t, a.ID, out.ToWallet)
	assert.Equal(t, ledger.KindReversalTransferIn, in.Kind)
	assert.Equal(t, a.ID, in.FromWallet)
	assert.Equal(t, b.ID, in.ToWallet)
	for _, row := range res.Compensating {
		assert.Equal(t, ledger.StatusCompleted, row.Status)
		assertAmount(t, "30.00", row.Amount)
		assert.Equal(t, tr.Transaction.ID, row.ReversalOf)
	}

	for _, w := range []ledger.Wallet{a, b} {
		check, err := ledger.Reconcile(ctx, f.store, w.ID)
		require.NoError(t, err)
		assert.True(t, check.Consistent())
	}
}

func TestReverseTwiceFailsWithoutNewRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.wallet(t, "owner-a", "100.00")
	b := f.wallet(t, "owner-b", "0")

	tr, err := f.transfers.Transfer(ctx, ledger.TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("30.00")})
	require.NoError(t, err)
	_, err = f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: tr.Transaction.ID})
	require.NoError(t, err)
	rows := len(f.rows(t, a.ID))

	_, err = f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: tr.Transaction.ID})
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
	assert.Len(t, f.rows(t, a.ID), rows)
	assertAmount(t, "100.00", f.balance(t, a.ID))
}

func TestReverseCompensatingRowIsUnsupported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.wallet(t, "owner-a", "100.00")
	b := f.wallet(t, "owner-b", "0")

	tr, err := f.transfers.Transfer(ctx, ledger.TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("30.00")})
	require.NoError(t, err)
	res, err := f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: tr.Transaction.ID})
	require.NoError(t, err)

	for _, row := range res.Compensating {
		_, err := f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: row.ID})
		assert.ErrorIs(t, err, ledger.ErrUnsupportedReversalType, string(row.Kind))
	}
	assertAmount(t, "100.00", f.balance(t, a.ID))
}

func TestReverseDepositAfterSpendIsInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.wallet(t, "owner-a", "0")
	b := f.wallet(t, "owner-b", "0")

	dep, err := f.transfers.Deposit(ctx, ledger.DepositInput{WalletID: a.ID, Amount: dec("40.00")})
	require.NoError(t, err)
	_, err = f.transfers.Transfer(ctx, ledger.TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("25.00")})
	require.NoError(t, err)

	_, err = f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: dep.Transaction.ID})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	stored, err := f.store.Transaction(ctx, dep.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, stored.Status)
	assertAmount(t, "15.00", f.balance(t, a.ID))
}

func TestReverseUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.reversals.Reverse(context.Background(), ledger.ReverseInput{TransactionID: "nope"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestReverseRejectsLongReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.wallet(t, "owner-a", "10.00")
	txs := f.rows(t, a.ID)

	reason := make([]rune, 501)
	for i := range reason {
		reason[i] = 'x'
	}
	_, err := f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: txs[0].ID, Reason: string(reason)})
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	assertAmount(t, "10.00", f.balance(t, a.ID))
}

func TestReversalRollsBackWhenAnyWriteFails(t *testing.T) {
	for _, op := range []string{"UpdateBalance", "InsertTransaction", "UpdateTransactionStatus", "InsertReversal", "Commit"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			a := f.wallet(t, "owner-a", "100.00")
			b := f.wallet(t, "owner-b", "0")
			tr, err := f.transfers.Transfer(ctx, ledger.TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("30.00")})
			require.NoError(t, err)

			ledger.FailNext(f.store, op, errors.New("disk full"))
			_, err = f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: tr.Transaction.ID})
			require.ErrorIs(t, err, ledger.ErrPersistenceFailure)

			assertAmount(t, "70.00", f.balance(t, a.ID))
			assertAmount(t, "30.00", f.balance(t, b.ID))
			stored, err := f.store.Transaction(ctx, tr.Transaction.ID)
			require.NoError(t, err)
			assert.Equal(t, ledger.StatusCompleted, stored.Status)
			assert.Len(t, f.rows(t, b.ID), 1)
			_, err = f.store.ReversalFor(ctx, tr.Transaction.ID)
			assert.ErrorIs(t, err, ledger.ErrNotFound)

			// The failure was transient; the same reversal succeeds afterwards.
			_, err = f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: tr.Transaction.ID})
			require.NoError(t, err)
			assertAmount(t, "100.00", f.balance(t, a.ID))
		})
	}
}

func TestReversalCreditsFlaggedSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.wallet(t, "owner-a", "50.00")
	b := f.wallet(t, "owner-b", "0")
	tr, err := f.transfers.Transfer(ctx, ledger.TransferInput{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("20.00")})
	require.NoError(t, err)
	require.NoError(t, f.store.SetConsistency(ctx, a.ID, ledger.Flagged))

	_, err = f.reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: tr.Transaction.ID})
	require.NoError(t, err)
	assertAmount(t, "50.00", f.balance(t, a.ID))
}

func TestReversalUsesEngineClock(t *testing.T) {
	store := ledger.NewInMemory()
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }
	transfers := ledger.NewTransferEngine(store, ledger.WithClock(clock))
	reversals := ledger.NewReversalEngine(store, ledger.WithClock(clock))

	w, err := store.CreateWallet(ctx, "owner-a")
	require.NoError(t, err)
	dep, err := transfers.Deposit(ctx, ledger.DepositInput{WalletID: w.ID, Amount: dec("5.00")})
	require.NoError(t, err)
	assert.Equal(t, fixed, dep.Transaction.CreatedAt)

	res, err := reversals.Reverse(ctx, ledger.ReverseInput{TransactionID: dep.Transaction.ID})
	require.NoError(t, err)
	assert.Equal(t, fixed, res.Reversal.ReversedAt)
	assert.Equal(t, fixed, res.Compensating[0].CreatedAt)
}
