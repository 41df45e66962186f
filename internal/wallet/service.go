package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/congo-pay/walletd/internal/identity"
	"github.com/congo-pay/walletd/internal/ledger"
)

// ErrRecipientNotFound is returned when a contact address matches no wallet.
var ErrRecipientNotFound = errors.New("recipient not found")

// Directory resolves wallet owners. identity.Service satisfies it.
type Directory interface {
	Get(ctx context.Context, id string) (identity.User, error)
	FindByEmail(ctx context.Context, email string) (identity.User, error)
}

// Service exposes wallet operations backed by the ledger.
type Service struct {
	store  ledger.Store
	owners Directory
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, owners Directory) *Service {
	return &Service{store: store, owners: owners}
}

// SetDirectory wires the owner directory after construction, since identity
// registration itself depends on Provision.
func (s *Service) SetDirectory(owners Directory) {
	s.owners = owners
}

// Provision opens the single zero balance wallet of ownerID.
func (s *Service) Provision(ctx context.Context, ownerID string) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}
	return s.store.CreateWallet(ctx, ownerID)
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.store.Wallet(ctx, id)
}

// GetByOwner retrieves the wallet of a user.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.store.WalletByOwner(ctx, ownerID)
}

// LookupByContact resolves a destination address (email) to its wallet.
func (s *Service) LookupByContact(ctx context.Context, address string) (Wallet, identity.User, error) {
	user, err := s.owners.FindByEmail(ctx, address)
	if err != nil {
		var vErr *identity.ValidationError
		if errors.Is(err, identity.ErrUserNotFound) || errors.As(err, &vErr) {
			return Wallet{}, identity.User{}, ErrRecipientNotFound
		}
		return Wallet{}, identity.User{}, err
	}
	w, err := s.store.WalletByOwner(ctx, user.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		return Wallet{}, identity.User{}, ErrRecipientNotFound
	}
	if err != nil {
		return Wallet{}, identity.User{}, err
	}
	return w, user, nil
}

// OwnerName returns the display name of a wallet's owner, or "" if unknown.
func (s *Service) OwnerName(ctx context.Context, walletID string) string {
	w, err := s.store.Wallet(ctx, walletID)
	if err != nil {
		return ""
	}
	user, err := s.owners.Get(ctx, w.OwnerID)
	if err != nil {
		return ""
	}
	return user.Name
}

// ViewForOwner returns the wallet of ownerID with display data.
func (s *Service) ViewForOwner(ctx context.Context, ownerID string) (View, error) {
	w, err := s.store.WalletByOwner(ctx, ownerID)
	if err != nil {
		return View{}, err
	}
	view := View{
		WalletID:    w.ID,
		OwnerID:     w.OwnerID,
		Balance:     w.Balance,
		Consistency: w.Consistency,
		UpdatedAt:   w.UpdatedAt,
	}
	if user, err := s.owners.Get(ctx, ownerID); err == nil {
		view.OwnerName = user.Name
	}
	return view, nil
}
