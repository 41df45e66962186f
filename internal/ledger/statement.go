package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Direction is the flow of a row relative to the wallet being viewed.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Line is one row of a wallet statement.
type Line struct {
	Transaction Transaction
	Direction   Direction
	// Counterparty is the other wallet involved, empty for deposits and
	// deposit reversals.
	Counterparty string
}

// DisplayKind is the human readable label of the line, which depends on the
// direction for plain transfers.
func (l Line) DisplayKind() string {
	switch l.Transaction.Kind {
	case KindDeposit:
		return "Deposit"
	case KindTransfer:
		if l.Direction == DirectionIn {
			return "Transfer Received"
		}
		return "Transfer Sent"
	case KindReversalDeposit:
		return "Deposit Reversal"
	case KindReversalTransferOut:
		return "Transfer Reversal Sent"
	case KindReversalTransferIn:
		return "Transfer Reversal Received"
	}
	return string(l.Transaction.Kind)
}

// Statement lists the rows touching walletID, newest first.
func Statement(ctx context.Context, store Store, walletID string) ([]Line, error) {
	txs, err := store.Transactions(ctx, walletID)
	if err != nil {
		return nil, asLedgerError(err)
	}
	lines := make([]Line, 0, len(txs))
	for _, tx := range txs {
		lines = append(lines, lineFor(tx, walletID))
	}
	return lines, nil
}

func lineFor(tx Transaction, walletID string) Line {
	line := Line{Transaction: tx, Direction: DirectionOut, Counterparty: tx.ToWallet}
	if tx.ToWallet == walletID {
		line.Direction = DirectionIn
		line.Counterparty = tx.FromWallet
	}
	// A deposit reversal is addressed to the wallet it drains.
	if tx.Kind == KindReversalDeposit {
		line.Direction = DirectionOut
		line.Counterparty = ""
	}
	return line
}

// Effect is the signed balance contribution of tx to walletID. Reversed and
// failed rows contribute nothing; a transfer's compensating pair cancels out
// and a deposit reversal is a memo row, so once a deposit or transfer is
// reversed the wallet's expected balance is as if it never happened.
func Effect(tx Transaction, walletID string) decimal.Decimal {
	if tx.Status != StatusCompleted || tx.Kind == KindReversalDeposit {
		return decimal.Zero
	}
	effect := decimal.Zero
	if tx.ToWallet == walletID {
		effect = effect.Add(tx.Amount)
	}
	if tx.FromWallet != "" && tx.FromWallet == walletID {
		effect = effect.Sub(tx.Amount)
	}
	return effect
}
