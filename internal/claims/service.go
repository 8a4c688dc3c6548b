package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/claimlink/claimlink/internal/credential"
	"github.com/claimlink/claimlink/internal/escrow"
	"github.com/claimlink/claimlink/internal/ledger"
	"github.com/claimlink/claimlink/internal/notification"
	"github.com/claimlink/claimlink/internal/sweep"
)

// AlreadyRedeemedMessage annotates the idempotent replay payload.
const AlreadyRedeemedMessage = "Claim was already redeemed"

// Service orchestrates claim verification and redemption over the escrow
// store, the sweep pipeline and the claim record store.
type Service struct {
	codec      *credential.Codec
	accounts   escrow.Repository
	records    Repository
	authorizer sweep.Authorizer
	executor   *sweep.Executor
	notifier   notification.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the redemption orchestrator.
func NewService(codec *credential.Codec, accounts escrow.Repository, records Repository,
	authorizer sweep.Authorizer, executor *sweep.Executor, notifier notification.Notifier,
	logger *slog.Logger) *Service {
	return &Service{
		codec:      codec,
		accounts:   accounts,
		records:    records,
		authorizer: authorizer,
		executor:   executor,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// VerifyResult is the stateless preview of a presented credential.
type VerifyResult struct {
	AccountID string
	Address   string
	Amount    string
	Asset     string
	ExpiresAt time.Time
}

// Verify decodes the credential and checks the owning escrow's eligibility
// without mutating anything.
func (s *Service) Verify(ctx context.Context, cred string) (VerifyResult, error) {
	account, err := s.resolveAccount(ctx, cred)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := escrow.CheckClaimable(account, s.now().UTC()); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		AccountID: account.ID,
		Address:   account.Address,
		Amount:    account.Amount,
		Asset:     account.Asset,
		ExpiresAt: account.ExpiresAt,
	}, nil
}

// RedeemInput captures a redemption request. Amount and Asset are optional;
// when empty they default to the escrow's recorded terms, when present they
// must match them exactly.
type RedeemInput struct {
	Credential  string
	Destination string
	Amount      string
	Asset       string
}

// RedeemResult is the payload of a completed (or replayed) redemption.
type RedeemResult struct {
	Success           bool
	Message           string
	TransferReference string
	AmountSwept       string
	Asset             string
	Destination       string
	ClaimedAt         time.Time
}

// Redeem drives the sweep saga: verify credential, validate request, commit
// the account to CLAIMED, authorize, transfer, record the claim, and reclaim
// the reserve. Failures after the commit roll the account back to
// PENDING_CLAIM before the original error is propagated. Replaying a
// credential whose escrow is already CLAIMED returns the recorded outcome
// with no further side effects.
func (s *Service) Redeem(ctx context.Context, input RedeemInput) (RedeemResult, error) {
	account, err := s.resolveAccount(ctx, input.Credential)
	if err != nil {
		return RedeemResult{}, err
	}

	// Idempotency gate: a CLAIMED escrow means a previous attempt won the
	// race and completed. Return its recorded outcome verbatim.
	if account.Status == escrow.StatusClaimed {
		return s.replay(ctx, account)
	}

	now := s.now().UTC()
	if err := escrow.CheckClaimable(account, now); err != nil {
		return RedeemResult{}, err
	}

	if input.Amount == "" {
		input.Amount = account.Amount
	}
	if input.Asset == "" {
		input.Asset = account.Asset
	}
	if err := sweep.Validate(account, input.Destination, input.Amount, input.Asset); err != nil {
		return RedeemResult{}, err
	}

	// Commit point: the conditional update is the linearization point for
	// concurrent redemptions of the same credential. Exactly one wins.
	claimedAt := now
	if err := s.accounts.MarkClaimed(ctx, account.ID, input.Destination, claimedAt); err != nil {
		if errors.Is(err, escrow.ErrConflict) {
			return s.loseRace(ctx, account.ID)
		}
		return RedeemResult{}, err
	}

	var transfer ledger.TransferResult
	steps := []step{
		{name: "authorize", run: func(ctx context.Context) error {
			auth, err := s.authorizer.Authorize(ctx, account.Address, input.Destination)
			if err != nil {
				return err
			}
			s.logger.Info("sweep authorized", "account_id", account.ID, "authorized_at", auth.AuthorizedAt)
			return nil
		}},
		{name: "transfer", run: func(ctx context.Context) error {
			result, err := s.executor.Transfer(ctx, account, input.Destination)
			if err != nil {
				return err
			}
			transfer = result
			return nil
		}},
	}

	if err := runSteps(ctx, steps, func(ctx context.Context, name string, cause error) {
		s.rollback(ctx, account.ID, name, cause)
	}); err != nil {
		return RedeemResult{}, err
	}

	record := Record{
		ID:                uuid.NewString(),
		AccountID:         account.ID,
		Destination:       input.Destination,
		TransferReference: transfer.Reference,
		Amount:            account.Amount,
		Asset:             account.Asset,
		ClaimedAt:         claimedAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.records.Create(ctx, record); err != nil {
		// Funds have moved; the account stays CLAIMED. Losing the record is
		// an operational incident, not a reason to fail the redemption.
		s.logger.Error("claim record persistence failed", "account_id", account.ID,
			"transfer_reference", transfer.Reference, "error", err)
	}

	if reclaim, err := s.executor.ReclaimReserve(ctx, account, input.Destination); err != nil {
		s.logger.Warn("reserve reclamation failed", "account_id", account.ID, "error", err)
	} else {
		s.logger.Info("reserve reclaimed", "account_id", account.ID, "reference", reclaim.Reference)
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindClaimRedeemed,
			Destination: input.Destination,
			Body:        fmt.Sprintf("Escrow %s swept %s %s", account.ID, account.Amount, account.Asset),
		})
	}

	return RedeemResult{
		Success:           true,
		TransferReference: transfer.Reference,
		AmountSwept:       record.Amount,
		Asset:             record.Asset,
		Destination:       record.Destination,
		ClaimedAt:         record.ClaimedAt,
	}, nil
}

// GetRecord fetches a claim record by identifier.
func (s *Service) GetRecord(ctx context.Context, id string) (Record, error) {
	return s.records.Get(ctx, id)
}

// resolveAccount decodes the credential and locates the owning escrow by
// fingerprint. A credential bound to no account is indistinguishable from an
// invalid one.
func (s *Service) resolveAccount(ctx context.Context, cred string) (escrow.Account, error) {
	if _, err := s.codec.Verify(cred, credential.TypeClaim); err != nil {
		return escrow.Account{}, err
	}
	account, err := s.accounts.GetByFingerprint(ctx, credential.Fingerprint(cred))
	if err != nil {
		if errors.Is(err, escrow.ErrNotFound) {
			return escrow.Account{}, credential.ErrInvalid
		}
		return escrow.Account{}, err
	}
	return account, nil
}

// loseRace handles a MarkClaimed conflict: re-read the account and, if the
// winner completed, take the idempotent path; otherwise surface the fresh
// eligibility error.
func (s *Service) loseRace(ctx context.Context, accountID string) (RedeemResult, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return RedeemResult{}, err
	}
	if account.Status == escrow.StatusClaimed {
		return s.replay(ctx, account)
	}
	if err := escrow.CheckClaimable(account, s.now().UTC()); err != nil {
		return RedeemResult{}, err
	}
	return RedeemResult{}, escrow.ErrConflict
}

// replay returns the recorded outcome of a completed redemption.
func (s *Service) replay(ctx context.Context, account escrow.Account) (RedeemResult, error) {
	record, err := s.records.GetByAccount(ctx, account.ID)
	// The winning attempt persists its record just after committing CLAIMED;
	// a loser arriving inside that window re-reads briefly before giving up.
	for attempt := 0; errors.Is(err, ErrNotFound) && attempt < 3; attempt++ {
		time.Sleep(25 * time.Millisecond)
		record, err = s.records.GetByAccount(ctx, account.ID)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Error("claimed escrow has no claim record", "account_id", account.ID)
			return RedeemResult{}, escrow.ErrConflict
		}
		return RedeemResult{}, err
	}
	return RedeemResult{
		Success:           true,
		Message:           AlreadyRedeemedMessage,
		TransferReference: record.TransferReference,
		AmountSwept:       record.Amount,
		Asset:             record.Asset,
		Destination:       record.Destination,
		ClaimedAt:         record.ClaimedAt,
	}, nil
}

// rollback compensates a failed post-commit step. A rollback that itself
// fails leaves the escrow stuck in CLAIMED; that is fatal and logged
// separately, but never masks the original error.
func (s *Service) rollback(ctx context.Context, accountID, stepName string, cause error) {
	if err := s.accounts.RevertClaim(ctx, accountID); err != nil {
		s.logger.Error("redemption rollback failed; escrow stuck in CLAIMED",
			"account_id", accountID, "failed_step", stepName, "rollback_error", err, "cause", cause)
		return
	}
	s.logger.Warn("redemption rolled back", "account_id", accountID, "failed_step", stepName, "cause", cause)
}
