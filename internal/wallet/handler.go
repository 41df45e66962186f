package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletd/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	WalletID    string `json:"wallet_id"`
	OwnerName   string `json:"owner_name"`
	Balance     string `json:"balance"`
	Consistency string `json:"consistency"`
	UpdatedAt   string `json:"updated_at"`
}

// Mine returns the authenticated user's wallet.
func (h *Handler) Mine(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	view, err := h.service.ViewForOwner(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "wallet unavailable")
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		WalletID:    view.WalletID,
		OwnerName:   view.OwnerName,
		Balance:     ledger.FormatAmount(view.Balance),
		Consistency: string(view.Consistency),
		UpdatedAt:   view.UpdatedAt.Format(timeLayout),
	})
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
