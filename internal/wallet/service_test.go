package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/congo-pay/walletd/internal/identity"
	"github.com/congo-pay/walletd/internal/ledger"
)

func newTestServices(t *testing.T) (*Service, *identity.Service) {
	t.Helper()
	store := ledger.NewInMemory()
	svc := NewService(store, nil)
	ids := identity.NewService(identity.NewMemoryRepository(), func(ctx context.Context, userID string) error {
		_, err := svc.Provision(ctx, userID)
		return err
	})
	svc.SetDirectory(ids)
	return svc, ids
}

func TestRegistrationProvisionsWallet(t *testing.T) {
	svc, ids := newTestServices(t)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Registration{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	w, err := svc.GetByOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("get by owner: %v", err)
	}
	if !w.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", w.Balance)
	}
	if w.Consistency != ledger.Healthy {
		t.Fatalf("expected healthy wallet, got %s", w.Consistency)
	}

	view, err := svc.ViewForOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.OwnerName != "Ada" || view.WalletID != w.ID {
		t.Fatalf("unexpected view %+v", view)
	}
	if svc.OwnerName(ctx, w.ID) != "Ada" {
		t.Fatalf("expected owner name Ada")
	}

	if _, err := svc.Provision(ctx, user.ID); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected second wallet to conflict, got %v", err)
	}
}

func TestLookupByContact(t *testing.T) {
	svc, ids := newTestServices(t)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Registration{Name: "Bob", Email: "bob@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	w, owner, err := svc.LookupByContact(ctx, "BOB@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if owner.ID != user.ID || w.OwnerID != user.ID {
		t.Fatalf("lookup resolved the wrong wallet")
	}

	for _, address := range []string{"nobody@example.com", "not an address"} {
		if _, _, err := svc.LookupByContact(ctx, address); !errors.Is(err, ErrRecipientNotFound) {
			t.Fatalf("expected recipient not found for %q, got %v", address, err)
		}
	}
}
