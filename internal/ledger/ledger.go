package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Consistency is the reconciliation state of a wallet. Only the reconciler
// writes it; the engines treat it as read-only.
type Consistency string

const (
	Healthy Consistency = "healthy"
	Flagged Consistency = "flagged"
)

// TransactionKind identifies what a ledger row records.
type TransactionKind string

const (
	KindDeposit             TransactionKind = "deposit"
	KindTransfer            TransactionKind = "transfer"
	KindReversalDeposit     TransactionKind = "reversal_deposit"
	KindReversalTransferOut TransactionKind = "reversal_transfer_out"
	KindReversalTransferIn  TransactionKind = "reversal_transfer_in"
)

// Valid reports whether k is one of the known kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindTransfer, KindReversalDeposit, KindReversalTransferOut, KindReversalTransferIn:
		return true
	}
	return false
}

// HasOrigin reports whether rows of this kind carry a from wallet.
func (k TransactionKind) HasOrigin() bool {
	return k != KindDeposit && k != KindReversalDeposit
}

// IsCompensating reports whether the kind is produced by a reversal.
func (k TransactionKind) IsCompensating() bool {
	switch k {
	case KindReversalDeposit, KindReversalTransferOut, KindReversalTransferIn:
		return true
	}
	return false
}

// Wallet is a balance-holding account, one per owner.
type Wallet struct {
	ID          string
	OwnerID     string
	Balance     decimal.Decimal
	Consistency Consistency
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Flagged reports whether reconciliation has blocked credits into the wallet.
func (w Wallet) Flagged() bool { return w.Consistency == Flagged }

// Transaction is an immutable record of one money movement. Status is the
// only field that ever changes after insert.
type Transaction struct {
	ID          string
	FromWallet  string // empty for deposits and deposit reversals
	ToWallet    string
	Amount      decimal.Decimal
	Kind        TransactionKind
	Status      Status
	Description string
	ReversalOf  string // set on compensating rows
	CreatedAt   time.Time
}

// Touches reports whether the transaction moves money into or out of walletID.
func (t Transaction) Touches(walletID string) bool {
	return t.ToWallet == walletID || (t.FromWallet != "" && t.FromWallet == walletID)
}

// Reversal marks a transaction as undone and records who asked for it.
type Reversal struct {
	ID            string
	TransactionID string
	RequestedBy   string
	Reason        string
	ReversedAt    time.Time
}

// Unit is one atomic read-modify-write scope. Every method participates in
// the same store transaction; nothing is visible to others until the
// enclosing Store.InUnit call returns nil.
type Unit interface {
	// LockWallets locks the given wallet rows in ascending id order and returns
	// their current state.
	LockWallets(ctx context.Context, ids ...string) (map[string]Wallet, error)
	// UpdateBalance writes a new balance guarded by the wallet's version and
	// returns the stored wallet. A stale version yields ErrConflict.
	UpdateBalance(ctx context.Context, w Wallet, balance decimal.Decimal) (Wallet, error)
	InsertTransaction(ctx context.Context, tx Transaction) error
	// LockTransaction locks and returns a transaction row.
	LockTransaction(ctx context.Context, id string) (Transaction, error)
	// UpdateTransactionStatus moves a row from one status to another; a row
	// not in the expected status yields ErrConflict.
	UpdateTransactionStatus(ctx context.Context, id string, from, to Status) error
	HasReversal(ctx context.Context, transactionID string) (bool, error)
	InsertReversal(ctx context.Context, r Reversal) error
	// TransactionsFor lists every row touching walletID, oldest first.
	TransactionsFor(ctx context.Context, walletID string) ([]Transaction, error)
}

// Store is the durable backend behind the ledger.
type Store interface {
	// InUnit runs fn inside a single atomic unit, committing when fn returns
	// nil and rolling back otherwise.
	InUnit(ctx context.Context, fn func(ctx context.Context, u Unit) error) error

	CreateWallet(ctx context.Context, ownerID string) (Wallet, error)
	Wallet(ctx context.Context, id string) (Wallet, error)
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	Wallets(ctx context.Context) ([]Wallet, error)
	// SetConsistency is reserved for the reconciler.
	SetConsistency(ctx context.Context, walletID string, c Consistency) error

	Transaction(ctx context.Context, id string) (Transaction, error)
	// Transactions lists every row touching walletID, newest first.
	Transactions(ctx context.Context, walletID string) ([]Transaction, error)
	ReversalFor(ctx context.Context, transactionID string) (Reversal, error)
}
