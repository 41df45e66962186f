package identity

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Register handles user onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.UserContext(), Registration{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			return fiber.NewError(http.StatusUnprocessableEntity, vErr.Error())
		case errors.Is(err, ErrUserExists):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "registration failed")
		}
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(user))
}

// ToResponse renders the public view of a user.
func ToResponse(user User) fiber.Map {
	return fiber.Map{"user": userResponse{UserID: user.ID, Name: user.Name, Email: user.Email}}
}
