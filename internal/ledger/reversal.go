package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ReverseInput identifies the transaction to undo and who asked for it.
type ReverseInput struct {
	TransactionID string
	RequestedBy   string
	Reason        string
}

// ReversalResult is the committed outcome of a reversal.
type ReversalResult struct {
	Original     Transaction // status is StatusReversed
	Compensating []Transaction
	Reversal     Reversal
}

// ReversalEngine applies the inverse of a completed transaction and emits
// compensating ledger rows.
type ReversalEngine struct {
	store Store
	opts  engineOptions
}

// NewReversalEngine builds a reversal engine over store.
func NewReversalEngine(store Store, opts ...Option) *ReversalEngine {
	return &ReversalEngine{store: store, opts: buildOptions(opts)}
}

// Reverse undoes a deposit or transfer. Balance changes, compensating rows,
// the status flip and the Reversal row commit together or not at all.
func (e *ReversalEngine) Reverse(ctx context.Context, in ReverseInput) (ReversalResult, error) {
	if len([]rune(in.Reason)) > maxReasonLength {
		return ReversalResult{}, newError(KindInvalidInput, fmt.Sprintf("reason exceeds %d characters", maxReasonLength), nil)
	}

	var res ReversalResult
	err := e.store.InUnit(ctx, func(ctx context.Context, u Unit) error {
		original, err := u.LockTransaction(ctx, in.TransactionID)
		if err != nil {
			return asLedgerError(err)
		}
		if err := original.Status.Transition(StatusReversed); err != nil {
			return err
		}
		reversed, err := u.HasReversal(ctx, original.ID)
		if err != nil {
			return asLedgerError(err)
		}
		if reversed {
			return ErrAlreadyReversed
		}

		journal := NewTransactionLedger(u, e.opts.clock)
		wallets := NewWalletStore(u)

		var compensating []Transaction
		switch original.Kind {
		case KindDeposit:
			compensating, err = e.reverseDeposit(ctx, wallets, journal, original)
		case KindTransfer:
			compensating, err = e.reverseTransfer(ctx, wallets, journal, original)
		default:
			err = ErrUnsupportedReversalType
		}
		if err != nil {
			return err
		}

		marked, err := journal.MarkReversed(ctx, original)
		if err != nil {
			return err
		}
		rev := Reversal{
			ID:            uuid.NewString(),
			TransactionID: original.ID,
			RequestedBy:   in.RequestedBy,
			Reason:        in.Reason,
			ReversedAt:    e.opts.clock().UTC(),
		}
		if err := u.InsertReversal(ctx, rev); err != nil {
			return asLedgerError(err)
		}

		res = ReversalResult{Original: marked, Compensating: compensating, Reversal: rev}
		return nil
	})
	if err != nil {
		return ReversalResult{}, asLedgerError(err)
	}

	e.opts.logger.Info("reversal committed",
		slog.String("transaction_id", res.Original.ID),
		slog.String("kind", string(res.Original.Kind)),
		slog.String("requested_by", in.RequestedBy),
		slog.Int("compensating_rows", len(res.Compensating)),
	)
	return res, nil
}

func (e *ReversalEngine) reverseDeposit(ctx context.Context, wallets *WalletStore, journal *TransactionLedger, original Transaction) ([]Transaction, error) {
	if err := wallets.Lock(ctx, original.ToWallet); err != nil {
		return nil, err
	}
	if _, err := wallets.Debit(ctx, original.ToWallet, original.Amount); err != nil {
		return nil, err
	}
	row, err := journal.Record(ctx, RecordInput{
		Kind:        KindReversalDeposit,
		ToWallet:    original.ToWallet,
		Amount:      original.Amount,
		Description: fmt.Sprintf("Reversal of deposit %s", original.ID),
		ReversalOf:  original.ID,
	})
	if err != nil {
		return nil, err
	}
	return []Transaction{row}, nil
}

func (e *ReversalEngine) reverseTransfer(ctx context.Context, wallets *WalletStore, journal *TransactionLedger, original Transaction) ([]Transaction, error) {
	if err := wallets.Lock(ctx, original.FromWallet, original.ToWallet); err != nil {
		return nil, err
	}
	if _, err := wallets.Credit(ctx, original.FromWallet, original.Amount); err != nil {
		return nil, err
	}
	if _, err := wallets.Debit(ctx, original.ToWallet, original.Amount); err != nil {
		return nil, err
	}
	pair, err := journal.RecordCompensatingPair(ctx, original)
	if err != nil {
		return nil, err
	}
	return pair[:], nil
}
