package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// WalletStore owns balance mutation inside one unit. Wallets must be locked
// through Lock before they can be read or mutated; it never commits.
type WalletStore struct {
	unit   Unit
	locked map[string]Wallet
}

// NewWalletStore binds a WalletStore to the caller's unit.
func NewWalletStore(u Unit) *WalletStore {
	return &WalletStore{unit: u, locked: make(map[string]Wallet)}
}

// Lock acquires row locks on the given wallets. Locks are taken in ascending
// id order by the unit regardless of argument order.
func (s *WalletStore) Lock(ctx context.Context, ids ...string) error {
	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.locked[id]; !ok && id != "" {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	wallets, err := s.unit.LockWallets(ctx, pending...)
	if err != nil {
		return asLedgerError(err)
	}
	for _, id := range pending {
		w, ok := wallets[id]
		if !ok {
			return notFound("wallet", id)
		}
		s.locked[id] = w
	}
	return nil
}

// Get returns the locked snapshot of a wallet.
func (s *WalletStore) Get(id string) (Wallet, error) {
	w, ok := s.locked[id]
	if !ok {
		return Wallet{}, newError(KindInvalidInput, fmt.Sprintf("wallet %s is not locked in this unit", id), nil)
	}
	return w, nil
}

// IsFlagged reads the consistency flag of a locked wallet.
func (s *WalletStore) IsFlagged(id string) (bool, error) {
	w, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return w.Flagged(), nil
}

// Credit adds amount to the wallet and returns the new balance.
func (s *WalletStore) Credit(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	w, err := s.Get(id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	next := w.Balance.Add(amount)
	if next.GreaterThan(MaxAmount) {
		return decimal.Decimal{}, newError(KindInvalidAmount, "credit would exceed the maximum wallet balance", nil)
	}
	return s.write(ctx, w, next)
}

// Debit subtracts amount from the wallet. It fails with ErrInsufficientFunds
// rather than produce a negative balance.
func (s *WalletStore) Debit(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	w, err := s.Get(id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if w.Balance.LessThan(amount) {
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	return s.write(ctx, w, w.Balance.Sub(amount))
}

func (s *WalletStore) write(ctx context.Context, w Wallet, balance decimal.Decimal) (decimal.Decimal, error) {
	updated, err := s.unit.UpdateBalance(ctx, w, balance)
	if err != nil {
		return decimal.Decimal{}, asLedgerError(err)
	}
	s.locked[w.ID] = updated
	return updated.Balance, nil
}
