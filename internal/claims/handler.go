package claims

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/claimlink/claimlink/internal/credential"
	"github.com/claimlink/claimlink/internal/escrow"
	"github.com/claimlink/claimlink/internal/ledger"
	"github.com/claimlink/claimlink/internal/sweep"
)

// Handler exposes claim verification and redemption endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a claims HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type verifyRequest struct {
	Credential string `json:"credential"`
}

type redeemRequest struct {
	Credential  string `json:"credential"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
}

type redeemResponse struct {
	Success           bool      `json:"success"`
	Message           string    `json:"message,omitempty"`
	TransferReference string    `json:"transfer_reference"`
	AmountSwept       string    `json:"amount_swept"`
	Asset             string    `json:"asset"`
	Destination       string    `json:"destination"`
	ClaimedAt         time.Time `json:"claimed_at"`
}

// Verify previews a credential without mutating anything.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Verify(c.UserContext(), req.Credential)
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": result.AccountID,
		"address":    result.Address,
		"amount":     result.Amount,
		"asset":      result.Asset,
		"expires_at": result.ExpiresAt,
	})
}

// Redeem drives the sweep. Replays of an already-redeemed credential return
// the recorded payload with an annotation rather than an error.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Redeem(c.UserContext(), RedeemInput{
		Credential:  req.Credential,
		Destination: req.Destination,
		Amount:      req.Amount,
		Asset:       req.Asset,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusOK).JSON(redeemResponse{
		Success:           result.Success,
		Message:           result.Message,
		TransferReference: result.TransferReference,
		AmountSwept:       result.AmountSwept,
		Asset:             result.Asset,
		Destination:       result.Destination,
		ClaimedAt:         result.ClaimedAt,
	})
}

// Get returns a claim record.
func (h *Handler) Get(c *fiber.Ctx) error {
	record, err := h.service.GetRecord(c.UserContext(), c.Params("claimId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "claim not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "lookup failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":                 record.ID,
		"account_id":         record.AccountID,
		"destination":        record.Destination,
		"transfer_reference": record.TransferReference,
		"amount":             record.Amount,
		"asset":              record.Asset,
		"claimed_at":         record.ClaimedAt,
	})
}

// mapError translates the error taxonomy to HTTP statuses. Internal reasons
// are logged upstream, never returned.
func mapError(err error) error {
	switch {
	case errors.Is(err, credential.ErrMalformed),
		errors.Is(err, credential.ErrExpired),
		errors.Is(err, credential.ErrInvalid):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, escrow.ErrAlreadyRedeemed):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, escrow.ErrConflict):
		return fiber.NewError(http.StatusConflict, "redemption in progress")
	case errors.Is(err, escrow.ErrNotFunded),
		errors.Is(err, escrow.ErrAccountFailed),
		errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, sweep.ErrInvalidDestination),
		errors.Is(err, sweep.ErrAmountMismatch),
		errors.Is(err, sweep.ErrAssetMismatch):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, sweep.ErrAuthorizationFailed):
		return fiber.NewError(http.StatusBadGateway, "sweep authorization failed")
	case errors.Is(err, ledger.ErrTransferFailed):
		return fiber.NewError(http.StatusBadGateway, "ledger transfer failed")
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
