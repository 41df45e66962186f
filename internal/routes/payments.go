package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletd/internal/payments"
)

// RegisterPaymentRoutes wires money-moving endpoints. idempotency, when set,
// guards every mutating route.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, idempotency fiber.Handler) {
	r.Get("/transactions", h.List)

	money := r
	if idempotency != nil {
		money = r.Group("", idempotency)
	}
	money.Post("/deposit", h.Deposit)
	money.Post("/transfer", h.Transfer)
	money.Post("/transactions/:id/reverse", h.Reverse)
}
