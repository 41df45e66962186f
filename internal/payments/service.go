package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletd/internal/ledger"
	"github.com/congo-pay/walletd/internal/logging"
	"github.com/congo-pay/walletd/internal/notification"
	"github.com/congo-pay/walletd/internal/wallet"
)

const systemCounterparty = "System"

// ErrNotParty indicates the caller is neither sender nor recipient of the
// transaction it tried to reverse.
var ErrNotParty = errors.New("only a party to the transaction may reverse it")

// Service is the caller-facing surface over the ledger engines. It resolves
// the authenticated user to a wallet and never touches balances itself.
type Service struct {
	store     ledger.Store
	transfers *ledger.TransferEngine
	reversals *ledger.ReversalEngine
	wallets   *wallet.Service
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService constructs a payment service. notifier and logger may be nil.
func NewService(store ledger.Store, wallets *wallet.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:     store,
		transfers: ledger.NewTransferEngine(store, ledger.WithLogger(logger)),
		reversals: ledger.NewReversalEngine(store, ledger.WithLogger(logger)),
		wallets:   wallets,
		notifier:  notifier,
		logger:    logger,
	}
}

// DepositInput credits the caller's own wallet.
type DepositInput struct {
	UserID      string
	Amount      string
	Description string
}

// TransferInput moves funds from the caller to the owner of DestinationAddress.
type TransferInput struct {
	UserID             string
	DestinationAddress string
	Amount             string
	Description        string
}

// Outcome is the result of a deposit or transfer.
type Outcome struct {
	TransactionID string
	NewBalance    decimal.Decimal
}

// Deposit credits the caller's wallet.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (Outcome, error) {
	amount, err := ledger.ParseAmount(input.Amount)
	if err != nil {
		return Outcome{}, err
	}
	w, err := s.wallets.GetByOwner(ctx, input.UserID)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.transfers.Deposit(ctx, ledger.DepositInput{WalletID: w.ID, Amount: amount, Description: input.Description})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{TransactionID: res.Transaction.ID, NewBalance: res.Balance}, nil
}

// Transfer sends money to another user identified by contact address.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Outcome, error) {
	amount, err := ledger.ParseAmount(input.Amount)
	if err != nil {
		return Outcome{}, err
	}
	from, err := s.wallets.GetByOwner(ctx, input.UserID)
	if err != nil {
		return Outcome{}, err
	}
	to, recipient, err := s.wallets.LookupByContact(ctx, input.DestinationAddress)
	if err != nil {
		return Outcome{}, err
	}

	res, err := s.transfers.Transfer(ctx, ledger.TransferInput{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		Amount:       amount,
		Description:  input.Description,
	})
	if err != nil {
		return Outcome{}, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: recipient.ID,
		Body:        fmt.Sprintf("You received %s", ledger.FormatAmount(amount)),
	})
	return Outcome{TransactionID: res.Transaction.ID, NewBalance: res.Balance}, nil
}

// Entry is one line of the caller's transaction history.
type Entry struct {
	ID           string
	Kind         ledger.TransactionKind
	DisplayKind  string
	Amount       decimal.Decimal
	Status       ledger.Status
	Description  string
	Timestamp    time.Time
	Counterparty string
	Direction    ledger.Direction
	ReversalOf   string
}

// List returns the caller's history, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Entry, error) {
	w, err := s.wallets.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines, err := ledger.Statement(ctx, s.store, w.ID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		tx := line.Transaction
		entries = append(entries, Entry{
			ID:           tx.ID,
			Kind:         tx.Kind,
			DisplayKind:  line.DisplayKind(),
			Amount:       tx.Amount,
			Status:       tx.Status,
			Description:  tx.Description,
			Timestamp:    tx.CreatedAt,
			Counterparty: s.counterparty(ctx, line, names),
			Direction:    line.Direction,
			ReversalOf:   tx.ReversalOf,
		})
	}
	return entries, nil
}

func (s *Service) counterparty(ctx context.Context, line ledger.Line, names map[string]string) string {
	tx := line.Transaction
	switch {
	case tx.Kind.IsCompensating():
		return "Reversal of transaction " + tx.ReversalOf
	case line.Counterparty == "":
		return systemCounterparty
	}
	name, ok := names[line.Counterparty]
	if !ok {
		name = s.wallets.OwnerName(ctx, line.Counterparty)
		names[line.Counterparty] = name
	}
	return name
}

// ReverseInput asks to undo a transaction the caller took part in.
type ReverseInput struct {
	UserID        string
	TransactionID string
	Reason        string
}

// ReverseOutcome reports the original transaction's new status.
type ReverseOutcome struct {
	TransactionID string
	Status        ledger.Status
}

// Reverse undoes a deposit or transfer on behalf of one of its parties.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (ReverseOutcome, error) {
	w, err := s.wallets.GetByOwner(ctx, input.UserID)
	if err != nil {
		return ReverseOutcome{}, err
	}
	tx, err := s.store.Transaction(ctx, input.TransactionID)
	if err != nil {
		return ReverseOutcome{}, err
	}
	if !tx.Touches(w.ID) {
		return ReverseOutcome{}, ErrNotParty
	}

	res, err := s.reversals.Reverse(ctx, ledger.ReverseInput{
		TransactionID: tx.ID,
		RequestedBy:   input.UserID,
		Reason:        input.Reason,
	})
	if err != nil {
		return ReverseOutcome{}, err
	}

	if other := otherParty(res.Original, w.ID); other != "" {
		if owner, err := s.wallets.Get(ctx, other); err == nil {
			s.notify(ctx, notification.Message{
				Kind:        notification.KindTransactionReversed,
				Destination: owner.OwnerID,
				Body:        fmt.Sprintf("Transaction %s of %s was reversed", tx.ID, ledger.FormatAmount(tx.Amount)),
			})
		}
	}
	return ReverseOutcome{TransactionID: res.Original.ID, Status: res.Original.Status}, nil
}

func otherParty(tx ledger.Transaction, walletID string) string {
	switch walletID {
	case tx.ToWallet:
		return tx.FromWallet
	case tx.FromWallet:
		return tx.ToWallet
	}
	return ""
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification failed", "kind", msg.Kind, "error", err)
	}
}
