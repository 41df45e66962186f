package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/walletd/internal/ledger"
)

// Wallet is the ledger's balance-holding account.
type Wallet = ledger.Wallet

// View is a wallet enriched with its owner for display.
type View struct {
	WalletID    string
	OwnerID     string
	OwnerName   string
	Balance     decimal.Decimal
	Consistency ledger.Consistency
	UpdatedAt   time.Time
}
