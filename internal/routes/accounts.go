package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/claimlink/claimlink/internal/escrow"
)

// RegisterAccountRoutes wires escrow account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *escrow.Handler) {
	r.Post("/accounts", h.Create)
	r.Get("/accounts", h.List)
	r.Get("/accounts/:accountId", h.Get)
}
