package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Check is the reconciliation verdict for one wallet.
type Check struct {
	Wallet   Wallet
	Expected decimal.Decimal
}

// Consistent reports whether the stored balance matches the ledger and is
// not negative.
func (c Check) Consistent() bool {
	return c.Wallet.Balance.Equal(c.Expected) && !c.Wallet.Balance.IsNegative()
}

// Verdict is the consistency state the reconciler should store.
func (c Check) Verdict() Consistency {
	if c.Consistent() {
		return Healthy
	}
	return Flagged
}

// Reconcile recomputes walletID's balance from its ledger rows. The wallet
// row is locked while the rows are read, so no concurrent unit can slip a
// mutation between the two reads.
func Reconcile(ctx context.Context, store Store, walletID string) (Check, error) {
	var check Check
	err := store.InUnit(ctx, func(ctx context.Context, u Unit) error {
		wallets := NewWalletStore(u)
		if err := wallets.Lock(ctx, walletID); err != nil {
			return err
		}
		w, err := wallets.Get(walletID)
		if err != nil {
			return err
		}
		txs, err := u.TransactionsFor(ctx, walletID)
		if err != nil {
			return asLedgerError(err)
		}
		expected := decimal.Zero
		for _, tx := range txs {
			expected = expected.Add(Effect(tx, walletID))
		}
		check = Check{Wallet: w, Expected: expected}
		return nil
	})
	if err != nil {
		return Check{}, asLedgerError(err)
	}
	return check, nil
}

// SweepReport summarises a reconciliation pass over several wallets.
type SweepReport struct {
	Checked int
	Drifted []Check
	Updated int
}

// Sweep reconciles walletID, or every wallet when walletID is empty. With
// apply set, a wallet whose verdict differs from its stored consistency is
// updated, which also clears the flag once the balance is repaired.
func Sweep(ctx context.Context, store Store, walletID string, apply bool) (SweepReport, error) {
	var ids []string
	if walletID != "" {
		ids = []string{walletID}
	} else {
		wallets, err := store.Wallets(ctx)
		if err != nil {
			return SweepReport{}, err
		}
		for _, w := range wallets {
			ids = append(ids, w.ID)
		}
	}

	var report SweepReport
	for _, id := range ids {
		check, err := Reconcile(ctx, store, id)
		if err != nil {
			return report, err
		}
		report.Checked++
		if !check.Consistent() {
			report.Drifted = append(report.Drifted, check)
		}
		if apply && check.Verdict() != check.Wallet.Consistency {
			if err := store.SetConsistency(ctx, id, check.Verdict()); err != nil {
				return report, err
			}
			report.Updated++
		}
	}
	return report, nil
}
