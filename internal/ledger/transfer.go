package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletd/internal/logging"
)

// Option customises an engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger *slog.Logger
	clock  func() time.Time
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source used for created_at / reversed_at.
func WithClock(clock func() time.Time) Option {
	return func(o *engineOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) engineOptions {
	o := engineOptions{logger: logging.Discard(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DepositInput credits a wallet from outside the system.
type DepositInput struct {
	WalletID    string
	Amount      decimal.Decimal
	Description string
}

// TransferInput moves money between two wallets.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	Description  string
}

// Result is the outcome of a deposit or transfer. Balance is the new balance
// of the requesting wallet: the credited wallet for deposits, the sender for
// transfers.
type Result struct {
	Transaction Transaction
	Balance     decimal.Decimal
}

// TransferEngine runs deposits and transfers as single atomic units.
type TransferEngine struct {
	store Store
	opts  engineOptions
}

// NewTransferEngine builds a transfer engine over store.
func NewTransferEngine(store Store, opts ...Option) *TransferEngine {
	return &TransferEngine{store: store, opts: buildOptions(opts)}
}

// Deposit credits in.WalletID and records a deposit row.
func (e *TransferEngine) Deposit(ctx context.Context, in DepositInput) (Result, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return Result{}, err
	}

	var res Result
	err := e.store.InUnit(ctx, func(ctx context.Context, u Unit) error {
		wallets := NewWalletStore(u)
		if err := wallets.Lock(ctx, in.WalletID); err != nil {
			return err
		}
		flagged, err := wallets.IsFlagged(in.WalletID)
		if err != nil {
			return err
		}
		if flagged {
			return ErrInconsistentWallet
		}

		balance, err := wallets.Credit(ctx, in.WalletID, in.Amount)
		if err != nil {
			return err
		}
		tx, err := NewTransactionLedger(u, e.opts.clock).Record(ctx, RecordInput{
			Kind:        KindDeposit,
			ToWallet:    in.WalletID,
			Amount:      in.Amount,
			Description: in.Description,
		})
		if err != nil {
			return err
		}
		res = Result{Transaction: tx, Balance: balance}
		return nil
	})
	if err != nil {
		return Result{}, asLedgerError(err)
	}

	e.opts.logger.Info("deposit committed",
		slog.String("transaction_id", res.Transaction.ID),
		slog.String("wallet_id", in.WalletID),
		slog.String("amount", FormatAmount(in.Amount)),
	)
	return res, nil
}

// Transfer debits the sender, credits the recipient and records a transfer
// row. Preconditions are evaluated in a fixed order so the reported error is
// deterministic: amount, self transfer, funds, destination flag.
func (e *TransferEngine) Transfer(ctx context.Context, in TransferInput) (Result, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return Result{}, err
	}
	if in.FromWalletID == in.ToWalletID {
		return Result{}, ErrSelfTransfer
	}

	var res Result
	err := e.store.InUnit(ctx, func(ctx context.Context, u Unit) error {
		wallets := NewWalletStore(u)
		if err := wallets.Lock(ctx, in.FromWalletID, in.ToWalletID); err != nil {
			return err
		}
		from, err := wallets.Get(in.FromWalletID)
		if err != nil {
			return err
		}
		if from.Balance.LessThan(in.Amount) {
			return ErrInsufficientFunds
		}
		flagged, err := wallets.IsFlagged(in.ToWalletID)
		if err != nil {
			return err
		}
		if flagged {
			return ErrInconsistentWallet
		}

		balance, err := wallets.Debit(ctx, in.FromWalletID, in.Amount)
		if err != nil {
			return err
		}
		if _, err := wallets.Credit(ctx, in.ToWalletID, in.Amount); err != nil {
			return err
		}
		tx, err := NewTransactionLedger(u, e.opts.clock).Record(ctx, RecordInput{
			Kind:        KindTransfer,
			FromWallet:  in.FromWalletID,
			ToWallet:    in.ToWalletID,
			Amount:      in.Amount,
			Description: in.Description,
		})
		if err != nil {
			return err
		}
		res = Result{Transaction: tx, Balance: balance}
		return nil
	})
	if err != nil {
		return Result{}, asLedgerError(err)
	}

	e.opts.logger.Info("transfer committed",
		slog.String("transaction_id", res.Transaction.ID),
		slog.String("from_wallet_id", in.FromWalletID),
		slog.String("to_wallet_id", in.ToWalletID),
		slog.String("amount", FormatAmount(in.Amount)),
	)
	return res, nil
}
