package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/claimlink/claimlink/internal/claims"
)

// RegisterClaimRoutes wires claim verification and redemption endpoints.
func RegisterClaimRoutes(r fiber.Router, h *claims.Handler, redeemLimiter fiber.Handler) {
	r.Post("/claims/verify", h.Verify)
	r.Post("/claims/redeem", redeemLimiter, h.Redeem)
	r.Get("/claims/:claimId", h.Get)
}
