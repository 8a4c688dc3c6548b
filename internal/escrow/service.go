package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/amount"
	"github.com/stellar/go/strkey"

	"github.com/claimlink/claimlink/internal/config"
	"github.com/claimlink/claimlink/internal/credential"
	"github.com/claimlink/claimlink/internal/ledger"
	"github.com/claimlink/claimlink/internal/notification"
	"github.com/claimlink/claimlink/internal/secrets"
)

// Service owns escrow account creation and funding confirmation. Redemption
// lives in the claims package.
type Service struct {
	repo     Repository
	client   ledger.Client
	cipher   secrets.Cipher
	codec    *credential.Codec
	notifier notification.Notifier
	logger   *slog.Logger
	autoFund bool
}

// NewService builds an escrow service. autoFund enables funding freshly
// created escrows from the configured source instead of waiting for an
// external payment.
func NewService(repo Repository, client ledger.Client, cipher secrets.Cipher,
	codec *credential.Codec, notifier notification.Notifier, logger *slog.Logger, autoFund bool) *Service {
	return &Service{
		repo:     repo,
		client:   client,
		cipher:   cipher,
		codec:    codec,
		notifier: notifier,
		logger:   logger,
		autoFund: autoFund,
	}
}

// CreateInput captures data required to open an escrow.
type CreateInput struct {
	Amount        string
	Asset         string
	TTL           time.Duration
	FundingSource string
	Metadata      map[string]string
}

// CreateResult carries the new account and its claim credential. The
// credential is surfaced here exactly once and only its fingerprint persists.
type CreateResult struct {
	Account    Account
	Credential string
}

// Create provisions a ledger identity, seals its seed, issues the claim
// credential and persists the PENDING_PAYMENT record.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	normalized, err := NormalizeAmount(input.Amount)
	if err != nil {
		return CreateResult{}, err
	}
	asset := input.Asset
	if asset == "" {
		asset = AssetNative
	}
	if err := ValidateAsset(asset); err != nil {
		return CreateResult{}, err
	}

	ttl := config.ClampCredentialTTL(input.TTL)

	address, seed, err := s.client.GenerateIdentity()
	if err != nil {
		return CreateResult{}, fmt.Errorf("generate escrow identity: %w", err)
	}
	sealed, err := s.cipher.Seal(seed)
	if err != nil {
		return CreateResult{}, fmt.Errorf("seal escrow secret: %w", err)
	}

	cred, err := s.codec.Issue(address, ttl)
	if err != nil {
		return CreateResult{}, fmt.Errorf("issue claim credential: %w", err)
	}

	now := time.Now().UTC()
	account := Account{
		ID:                    uuid.NewString(),
		Address:               address,
		EncryptedSecret:       sealed,
		FundingSource:         input.FundingSource,
		Amount:                normalized,
		Asset:                 asset,
		Status:                StatusPendingPayment,
		CredentialFingerprint: credential.Fingerprint(cred),
		ExpiresAt:             now.Add(ttl),
		CreatedAt:             now,
		UpdatedAt:             now,
		Metadata:              input.Metadata,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return CreateResult{}, err
	}

	if s.autoFund {
		if _, err := s.client.FundNewAccount(ctx, address, normalized, asset, account.ExpiresAt); err != nil {
			// The account stays PENDING_PAYMENT; the watcher promotes it once
			// an external payment lands.
			s.logger.Warn("auto-funding failed", "account_id", account.ID, "error", err)
		} else if err := s.ConfirmFunding(ctx, account.ID); err != nil {
			s.logger.Warn("funding confirmation failed", "account_id", account.ID, "error", err)
		} else {
			account.Status = StatusPendingClaim
		}
	}

	return CreateResult{Account: account, Credential: cred}, nil
}

// ConfirmFunding promotes a PENDING_PAYMENT escrow to PENDING_CLAIM.
func (s *Service) ConfirmFunding(ctx context.Context, id string) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusPendingPayment, StatusPendingClaim); err != nil {
		return err
	}
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindEscrowFunded,
			Destination: id,
			Body:        "Escrow funding confirmed",
		})
	}
	return nil
}

// Get retrieves an escrow account.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns escrow accounts matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	return s.repo.List(ctx, filter)
}

// NormalizeAmount validates a decimal amount string and renders it at the
// ledger's fixed 7-digit scale.
func NormalizeAmount(amountStr string) (string, error) {
	stroops, err := amount.ParseInt64(amountStr)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}
	if stroops <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	return amount.StringFromInt64(stroops), nil
}

// ValidateAsset accepts "native" or "CODE:ISSUER" with a 1-12 character
// alphanumeric code and a valid issuer address.
func ValidateAsset(asset string) error {
	if asset == AssetNative {
		return nil
	}
	code, issuer, found := strings.Cut(asset, ":")
	if !found {
		return fmt.Errorf("asset must be %q or CODE:ISSUER", AssetNative)
	}
	if len(code) < 1 || len(code) > 12 {
		return fmt.Errorf("asset code must be 1-12 characters")
	}
	for _, r := range code {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return fmt.Errorf("asset code must be alphanumeric")
		}
	}
	if !strkey.IsValidEd25519PublicKey(issuer) {
		return fmt.Errorf("asset issuer is not a valid account address")
	}
	return nil
}
