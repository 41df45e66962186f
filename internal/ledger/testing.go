package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that overwrites the stored balance of a wallet
// when using the in-memory store, bypassing the ledger. Reconciliation will
// report the difference.
func SeedBalance(s Store, walletID string, amount decimal.Decimal) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[walletID]
		w.Balance = amount
		w.UpdatedAt = time.Now().UTC()
		mem.wallets[walletID] = w
	}
}

// FailNext makes the next call to op fail with err on the in-memory store.
// op is a Unit method name ("InsertReversal", "UpdateBalance", ...) or
// "Commit".
func FailNext(s Store, op string, err error) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.faults[op] = err
	}
}
