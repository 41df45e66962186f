package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxDescriptionLength = 255
	maxReasonLength      = 500
)

// RecordInput describes a new ledger row.
type RecordInput struct {
	Kind        TransactionKind
	FromWallet  string
	ToWallet    string
	Amount      decimal.Decimal
	Description string
	ReversalOf  string
}

// TransactionLedger owns row creation and the status transition of existing
// rows inside one unit.
type TransactionLedger struct {
	unit  Unit
	clock func() time.Time
}

// NewTransactionLedger binds a ledger to the caller's unit.
func NewTransactionLedger(u Unit, clock func() time.Time) *TransactionLedger {
	if clock == nil {
		clock = time.Now
	}
	return &TransactionLedger{unit: u, clock: clock}
}

// Record validates and appends a completed row.
func (l *TransactionLedger) Record(ctx context.Context, in RecordInput) (Transaction, error) {
	if err := validateRecord(in); err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		ID:          uuid.NewString(),
		FromWallet:  in.FromWallet,
		ToWallet:    in.ToWallet,
		Amount:      in.Amount,
		Kind:        in.Kind,
		Status:      StatusCompleted,
		Description: in.Description,
		ReversalOf:  in.ReversalOf,
		CreatedAt:   l.clock().UTC(),
	}
	if err := l.unit.InsertTransaction(ctx, tx); err != nil {
		return Transaction{}, asLedgerError(err)
	}
	return tx, nil
}

// RecordCompensatingPair appends both rows that undo a transfer: money
// returning from the original recipient to the sender, and its mirror.
func (l *TransactionLedger) RecordCompensatingPair(ctx context.Context, original Transaction) ([2]Transaction, error) {
	var pair [2]Transaction
	if original.Kind != KindTransfer {
		return pair, ErrUnsupportedReversalType
	}
	out, err := l.Record(ctx, RecordInput{
		Kind:        KindReversalTransferOut,
		FromWallet:  original.ToWallet,
		ToWallet:    original.FromWallet,
		Amount:      original.Amount,
		Description: fmt.Sprintf("Reversal of transfer %s (debit from recipient)", original.ID),
		ReversalOf:  original.ID,
	})
	if err != nil {
		return pair, err
	}
	in, err := l.Record(ctx, RecordInput{
		Kind:        KindReversalTransferIn,
		FromWallet:  original.FromWallet,
		ToWallet:    original.ToWallet,
		Amount:      original.Amount,
		Description: fmt.Sprintf("Reversal of transfer %s (credit to sender)", original.ID),
		ReversalOf:  original.ID,
	})
	if err != nil {
		return pair, err
	}
	pair[0], pair[1] = out, in
	return pair, nil
}

// MarkReversed is the single mutation path for existing rows.
func (l *TransactionLedger) MarkReversed(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := tx.Status.Transition(StatusReversed); err != nil {
		return Transaction{}, err
	}
	if err := l.unit.UpdateTransactionStatus(ctx, tx.ID, tx.Status, StatusReversed); err != nil {
		return Transaction{}, asLedgerError(err)
	}
	tx.Status = StatusReversed
	return tx, nil
}

func validateRecord(in RecordInput) error {
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !in.Kind.Valid() {
		return newError(KindInvalidInput, fmt.Sprintf("unknown transaction kind %q", in.Kind), nil)
	}
	if in.ToWallet == "" {
		return newError(KindInvalidInput, "destination wallet is required", nil)
	}
	if in.Kind.HasOrigin() && in.FromWallet == "" {
		return newError(KindInvalidInput, fmt.Sprintf("%s requires an origin wallet", in.Kind), nil)
	}
	if !in.Kind.HasOrigin() && in.FromWallet != "" {
		return newError(KindInvalidInput, fmt.Sprintf("%s must not have an origin wallet", in.Kind), nil)
	}
	if len([]rune(in.Description)) > maxDescriptionLength {
		return newError(KindInvalidInput, fmt.Sprintf("description exceeds %d characters", maxDescriptionLength), nil)
	}
	return nil
}
