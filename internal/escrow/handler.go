package escrow

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes escrow account HTTP endpoints.
type Handler struct {
	service *Service
	baseURL string
}

// NewHandler builds an escrow HTTP handler. baseURL is used to render
// one-time claim URLs.
func NewHandler(service *Service, baseURL string) *Handler {
	return &Handler{service: service, baseURL: baseURL}
}

type createRequest struct {
	Amount        string            `json:"amount"`
	Asset         string            `json:"asset"`
	TTLSeconds    int64             `json:"ttl_seconds"`
	FundingSource string            `json:"funding_source"`
	Metadata      map[string]string `json:"metadata"`
}

type accountResponse struct {
	ID          string            `json:"id"`
	Address     string            `json:"address"`
	Amount      string            `json:"amount"`
	Asset       string            `json:"asset"`
	Status      string            `json:"status"`
	Destination string            `json:"destination,omitempty"`
	ExpiresAt   time.Time         `json:"expires_at"`
	ClaimedAt   *time.Time        `json:"claimed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func toAccountResponse(account Account) accountResponse {
	return accountResponse{
		ID:          account.ID,
		Address:     account.Address,
		Amount:      account.Amount,
		Asset:       account.Asset,
		Status:      string(account.Status),
		Destination: account.Destination,
		ExpiresAt:   account.ExpiresAt,
		ClaimedAt:   account.ClaimedAt,
		CreatedAt:   account.CreatedAt,
		Metadata:    account.Metadata,
	}
}

// Create opens an escrow and returns the one-time claim URL. The credential
// appears in this response and nowhere else.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Create(c.UserContext(), CreateInput{
		Amount:        req.Amount,
		Asset:         req.Asset,
		TTL:           time.Duration(req.TTLSeconds) * time.Second,
		FundingSource: req.FundingSource,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account":    toAccountResponse(result.Account),
		"credential": result.Credential,
		"claim_url":  h.baseURL + "/claim?credential=" + url.QueryEscape(result.Credential),
	})
}

// Get returns a single escrow account.
func (h *Handler) Get(c *fiber.Ctx) error {
	account, err := h.service.Get(c.UserContext(), c.Params("accountId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "escrow account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "lookup failed")
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(account))
}

// List returns escrow accounts with optional status filter and paging.
func (h *Handler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	filter := ListFilter{
		Status: Status(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}

	accounts, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "list failed")
	}

	responses := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, toAccountResponse(account))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"accounts": responses,
		"limit":    limit,
		"offset":   offset,
	})
}
