package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu        sync.Mutex
	wallets   map[string]Wallet
	owners    map[string]string
	txs       []Transaction
	txIndex   map[string]int
	reversals map[string]Reversal
	faults    map[string]error
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and development. Units are serialized by a single mutex, which is the
// strongest possible form of the row locking the Postgres store performs.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:   make(map[string]Wallet),
		owners:    make(map[string]string),
		txIndex:   make(map[string]int),
		reversals: make(map[string]Reversal),
		faults:    make(map[string]error),
	}
}

func (s *inMemoryStore) InUnit(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	if err := ctx.Err(); err != nil {
		return asLedgerError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := &memUnit{
		store:     s,
		wallets:   make(map[string]Wallet),
		status:    make(map[string]Status),
		reversals: make(map[string]Reversal),
	}
	if err := fn(context.WithoutCancel(ctx), u); err != nil {
		return err
	}
	if err := s.fault("Commit"); err != nil {
		return err
	}
	u.commit()
	return nil
}

func (s *inMemoryStore) CreateWallet(_ context.Context, ownerID string) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, newError(KindInvalidInput, "owner id is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.owners[ownerID]; exists {
		return Wallet{}, newError(KindConflict, fmt.Sprintf("owner %s already has a wallet", ownerID), nil)
	}
	now := time.Now().UTC()
	w := Wallet{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Balance:     decimal.Zero,
		Consistency: Healthy,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.wallets[w.ID] = w
	s.owners[ownerID] = w.ID
	return w, nil
}

func (s *inMemoryStore) Wallet(_ context.Context, id string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, notFound("wallet", id)
	}
	return w, nil
}

func (s *inMemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.owners[ownerID]
	if !ok {
		return Wallet{}, notFound("wallet for owner", ownerID)
	}
	return s.wallets[id], nil
}

func (s *inMemoryStore) Wallets(_ context.Context) ([]Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *inMemoryStore) SetConsistency(_ context.Context, walletID string, c Consistency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return notFound("wallet", walletID)
	}
	w.Consistency = c
	w.UpdatedAt = time.Now().UTC()
	s.wallets[walletID] = w
	return nil
}

func (s *inMemoryStore) Transaction(_ context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.txIndex[id]
	if !ok {
		return Transaction{}, notFound("transaction", id)
	}
	return s.txs[idx], nil
}

func (s *inMemoryStore) Transactions(_ context.Context, walletID string) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, 0)
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].Touches(walletID) {
			out = append(out, s.txs[i])
		}
	}
	return out, nil
}

func (s *inMemoryStore) ReversalFor(_ context.Context, transactionID string) (Reversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reversals[transactionID]
	if !ok {
		return Reversal{}, notFound("reversal for transaction", transactionID)
	}
	return r, nil
}

// fault returns and clears an injected error for op. Callers hold s.mu.
func (s *inMemoryStore) fault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

// memUnit stages every write and applies them only on commit.
type memUnit struct {
	store     *inMemoryStore
	wallets   map[string]Wallet
	txs       []Transaction
	status    map[string]Status
	reversals map[string]Reversal
}

func (u *memUnit) wallet(id string) (Wallet, bool) {
	if w, ok := u.wallets[id]; ok {
		return w, true
	}
	w, ok := u.store.wallets[id]
	return w, ok
}

func (u *memUnit) transaction(id string) (Transaction, bool) {
	var tx Transaction
	if idx, ok := u.store.txIndex[id]; ok {
		tx = u.store.txs[idx]
	} else {
		found := false
		for _, staged := range u.txs {
			if staged.ID == id {
				tx, found = staged, true
				break
			}
		}
		if !found {
			return Transaction{}, false
		}
	}
	if st, ok := u.status[id]; ok {
		tx.Status = st
	}
	return tx, true
}

func (u *memUnit) LockWallets(_ context.Context, ids ...string) (map[string]Wallet, error) {
	if err := u.store.fault("LockWallets"); err != nil {
		return nil, err
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	out := make(map[string]Wallet, len(sorted))
	for _, id := range sorted {
		if w, ok := u.wallet(id); ok {
			out[id] = w
		}
	}
	return out, nil
}

func (u *memUnit) UpdateBalance(_ context.Context, w Wallet, balance decimal.Decimal) (Wallet, error) {
	if err := u.store.fault("UpdateBalance"); err != nil {
		return Wallet{}, err
	}
	current, ok := u.wallet(w.ID)
	if !ok {
		return Wallet{}, notFound("wallet", w.ID)
	}
	if current.Version != w.Version {
		return Wallet{}, ErrConflict
	}
	current.Balance = balance
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	u.wallets[w.ID] = current
	return current, nil
}

func (u *memUnit) InsertTransaction(_ context.Context, tx Transaction) error {
	if err := u.store.fault("InsertTransaction"); err != nil {
		return err
	}
	if _, exists := u.transaction(tx.ID); exists {
		return newError(KindConflict, fmt.Sprintf("transaction %s already exists", tx.ID), nil)
	}
	u.txs = append(u.txs, tx)
	return nil
}

func (u *memUnit) LockTransaction(_ context.Context, id string) (Transaction, error) {
	if err := u.store.fault("LockTransaction"); err != nil {
		return Transaction{}, err
	}
	tx, ok := u.transaction(id)
	if !ok {
		return Transaction{}, notFound("transaction", id)
	}
	return tx, nil
}

func (u *memUnit) UpdateTransactionStatus(_ context.Context, id string, from, to Status) error {
	if err := u.store.fault("UpdateTransactionStatus"); err != nil {
		return err
	}
	tx, ok := u.transaction(id)
	if !ok {
		return notFound("transaction", id)
	}
	if tx.Status != from {
		return ErrConflict
	}
	u.status[id] = to
	return nil
}

func (u *memUnit) HasReversal(_ context.Context, transactionID string) (bool, error) {
	if _, ok := u.reversals[transactionID]; ok {
		return true, nil
	}
	_, ok := u.store.reversals[transactionID]
	return ok, nil
}

func (u *memUnit) InsertReversal(ctx context.Context, r Reversal) error {
	if err := u.store.fault("InsertReversal"); err != nil {
		return err
	}
	exists, _ := u.HasReversal(ctx, r.TransactionID)
	if exists {
		return ErrAlreadyReversed
	}
	u.reversals[r.TransactionID] = r
	return nil
}

func (u *memUnit) TransactionsFor(_ context.Context, walletID string) ([]Transaction, error) {
	out := make([]Transaction, 0)
	for _, tx := range u.store.txs {
		if tx.Touches(walletID) {
			if st, ok := u.status[tx.ID]; ok {
				tx.Status = st
			}
			out = append(out, tx)
		}
	}
	for _, tx := range u.txs {
		if tx.Touches(walletID) {
			if st, ok := u.status[tx.ID]; ok {
				tx.Status = st
			}
			out = append(out, tx)
		}
	}
	return out, nil
}

func (u *memUnit) commit() {
	s := u.store
	for id, w := range u.wallets {
		s.wallets[id] = w
	}
	for _, tx := range u.txs {
		s.txIndex[tx.ID] = len(s.txs)
		s.txs = append(s.txs, tx)
	}
	for id, st := range u.status {
		idx := s.txIndex[id]
		s.txs[idx].Status = st
	}
	for id, r := range u.reversals {
		s.reversals[id] = r
	}
}
