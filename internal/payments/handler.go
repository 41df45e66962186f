package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletd/internal/ledger"
	"github.com/congo-pay/walletd/internal/wallet"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

type transferRequest struct {
	DestinationAddress string      `json:"destination_address"`
	Amount             json.Number `json:"amount"`
	Description        string      `json:"description"`
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

type entryResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	Description  string `json:"description"`
	Timestamp    string `json:"timestamp"`
	Counterparty string `json:"counterparty"`
	Direction    string `json:"direction"`
	ReversalOf   string `json:"reversal_of,omitempty"`
}

// Deposit credits the caller's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Deposit(c.UserContext(), DepositInput{
		UserID:      userID(c),
		Amount:      req.Amount.String(),
		Description: req.Description,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"new_balance":    ledger.FormatAmount(res.NewBalance),
	})
}

// Transfer moves funds to the owner of destination_address.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.DestinationAddress == "" {
		return fiber.NewError(http.StatusUnprocessableEntity, "destination_address is required")
	}
	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		UserID:             userID(c),
		DestinationAddress: req.DestinationAddress,
		Amount:             req.Amount.String(),
		Description:        req.Description,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"new_balance":    ledger.FormatAmount(res.NewBalance),
	})
}

// List returns the caller's transaction history, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	entries, err := h.service.List(c.UserContext(), userID(c))
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:           e.ID,
			Kind:         string(e.Kind),
			Type:         e.DisplayKind,
			Amount:       ledger.FormatAmount(e.Amount),
			Status:       string(e.Status),
			Description:  e.Description,
			Timestamp:    e.Timestamp.Format(time.RFC3339Nano),
			Counterparty: e.Counterparty,
			Direction:    string(e.Direction),
			ReversalOf:   e.ReversalOf,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Reverse undoes a transaction the caller took part in.
func (h *Handler) Reverse(c *fiber.Ctx) error {
	var req reverseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	res, err := h.service.Reverse(c.UserContext(), ReverseInput{
		UserID:        userID(c),
		TransactionID: c.Params("id"),
		Reason:        req.Reason,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transaction_id":   res.TransactionID,
		"resulting_status": string(res.Status),
	})
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

// toHTTPError maps domain failures onto status codes in one place.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrRecipientNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotParty):
		return fiber.NewError(http.StatusForbidden, err.Error())
	}

	var lerr *ledger.Error
	if !errors.As(err, &lerr) {
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
	switch lerr.Kind {
	case ledger.KindInvalidAmount, ledger.KindInvalidInput:
		return fiber.NewError(http.StatusUnprocessableEntity, lerr.Message)
	case ledger.KindSelfTransfer, ledger.KindInsufficientFunds, ledger.KindInconsistentWallet:
		return fiber.NewError(http.StatusForbidden, lerr.Message)
	case ledger.KindAlreadyReversed, ledger.KindNotReversible, ledger.KindUnsupportedReversalType:
		return fiber.NewError(http.StatusBadRequest, lerr.Message)
	case ledger.KindNotFound:
		return fiber.NewError(http.StatusNotFound, lerr.Message)
	case ledger.KindConflict:
		return fiber.NewError(http.StatusConflict, lerr.Message)
	default:
		return fiber.NewError(http.StatusInternalServerError, ledger.ErrPersistenceFailure.Message)
	}
}
