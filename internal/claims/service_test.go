package claims

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claimlink/claimlink/internal/credential"
	"github.com/claimlink/claimlink/internal/escrow"
	"github.com/claimlink/claimlink/internal/ledger"
	"github.com/claimlink/claimlink/internal/logging"
	"github.com/claimlink/claimlink/internal/secrets"
	"github.com/claimlink/claimlink/internal/sweep"
)

const testDestination = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"

type countingClient struct {
	ledger.Client
	transfers atomic.Int32
}

func (c *countingClient) Transfer(ctx context.Context, seed, destination, amountStr, asset string) (ledger.TransferResult, error) {
	result, err := c.Client.Transfer(ctx, seed, destination, amountStr, asset)
	if err == nil {
		c.transfers.Add(1)
	}
	return result, err
}

type failAuthorizer struct{}

func (failAuthorizer) Authorize(context.Context, string, string) (sweep.Authorization, error) {
	return sweep.Authorization{}, fmt.Errorf("%w: simulated authority rejection", sweep.ErrAuthorizationFailed)
}

type stack struct {
	service    *Service
	escrows    *escrow.Service
	unfunded   *escrow.Service
	accounts   escrow.Repository
	records    Repository
	client     *countingClient
	raw        ledger.Client
	codec      *credential.Codec
	authorizer sweep.Authorizer
}

func newStack(t *testing.T) *stack {
	t.Helper()
	raw := ledger.NewInMemory()
	client := &countingClient{Client: raw}

	cipher, err := secrets.NewNaClCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}
	codec := credential.NewCodec([]byte("credential-secret"))
	accounts := escrow.NewMemoryRepository()
	records := NewMemoryRepository()
	logger := logging.Discard()

	escrows := escrow.NewService(accounts, client, cipher, codec, nil, logger, true)
	unfunded := escrow.NewService(accounts, client, cipher, codec, nil, logger, false)

	authorizer := sweep.NewLocalAuthorizer([]byte("credential-secret"))
	executor := sweep.NewExecutor(client, cipher)
	service := NewService(codec, accounts, records, authorizer, executor, nil, logger)

	return &stack{
		service:    service,
		escrows:    escrows,
		unfunded:   unfunded,
		accounts:   accounts,
		records:    records,
		client:     client,
		raw:        raw,
		codec:      codec,
		authorizer: authorizer,
	}
}

func (s *stack) openEscrow(t *testing.T) escrow.CreateResult {
	t.Helper()
	result, err := s.escrows.Create(context.Background(), escrow.CreateInput{
		Amount: "100.0000000",
		Asset:  "native",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}
	if result.Account.Status != escrow.StatusPendingClaim {
		t.Fatalf("expected funded escrow, got %s", result.Account.Status)
	}
	return result
}

func TestRedeemEndToEnd(t *testing.T) {
	s := newStack(t)
	opened := s.openEscrow(t)
	ctx := context.Background()

	result, err := s.service.Redeem(ctx, RedeemInput{Credential: opened.Credential, Destination: testDestination})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if result.Message != "" {
		t.Fatalf("fresh redemption must not carry the replay annotation")
	}
	if result.AmountSwept != "100.0000000" || result.Asset != "native" {
		t.Fatalf("unexpected sweep terms: %+v", result)
	}
	if result.TransferReference == "" {
		t.Fatalf("missing transfer reference")
	}
	if result.Destination != testDestination {
		t.Fatalf("unexpected destination %s", result.Destination)
	}

	account, err := s.accounts.Get(ctx, opened.Account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Status != escrow.StatusClaimed || account.Destination != testDestination || account.ClaimedAt == nil {
		t.Fatalf("account not committed: %+v", account)
	}

	record, err := s.records.GetByAccount(ctx, opened.Account.ID)
	if err != nil {
		t.Fatalf("claim record missing: %v", err)
	}
	if record.TransferReference != result.TransferReference || record.Amount != "100.0000000" {
		t.Fatalf("record does not match result: %+v", record)
	}

	balance, err := s.raw.BalanceOf(ctx, testDestination, "native")
	if err != nil {
		t.Fatalf("destination balance: %v", err)
	}
	if balance != "100.0000000" {
		t.Fatalf("expected swept funds at destination, got %s", balance)
	}
}

func TestRedeemIdempotentReplay(t *testing.T) {
	s := newStack(t)
	opened := s.openEscrow(t)
	ctx := context.Background()

	first, err := s.service.Redeem(ctx, RedeemInput{Credential: opened.Credential, Destination: testDestination})
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}

	second, err := s.service.Redeem(ctx, RedeemInput{Credential: opened.Credential, Destination: testDestination})
	if err != nil {
		t.Fatalf("replay redeem: %v", err)
	}

	if second.Message != AlreadyRedeemedMessage {
		t.Fatalf("expected replay annotation, got %q", second.Message)
	}
	if second.TransferReference != first.TransferReference ||
		second.AmountSwept != first.AmountSwept ||
		second.Asset != first.Asset ||
		second.Destination != first.Destination ||
		!second.ClaimedAt.Equal(first.ClaimedAt) {
		t.Fatalf("replay payload differs: first %+v second %+v", first, second)
	}

	if got := s.client.transfers.Load(); got != 1 {
		t.Fatalf("expected exactly one transfer, got %d", got)
	}
}

func TestRedeemAuthorizerFailureRollsBack(t *testing.T) {
	s := newStack(t)
	opened := s.openEscrow(t)
	ctx := context.Background()

	executor := sweep.NewExecutor(s.client, mustCipher(t))
	failing := NewService(s.codec, s.accounts, s.records, failAuthorizer{}, executor, nil, logging.Discard())

	_, err := failing.Redeem(ctx, RedeemInput{Credential: opened.Credential, Destination: testDestination})
	if !errors.Is(err, sweep.ErrAuthorizationFailed) {
		t.Fatalf("expected authorization failure, got %v", err)
	}

	assertRolledBack(t, s, opened.Account.ID)
}

func TestRedeemTransferFailureRollsBack(t *testing.T) {
	s := newStack(t)
	opened := s.openEscrow(t)
	ctx := context.Background()

	ledger.FailNextTransfer(s.raw, fmt.Errorf("%w: tx_insufficient_fee", ledger.ErrTransferFailed))

	_, err := s.service.Redeem(ctx, RedeemInput{Credential: opened.Credential, Destination: testDestination})
	if !errors.Is(err, ledger.ErrTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}

	assertRolledBack(t, s, opened.Account.ID)

	// The original caller can retry the same credential safely.
	result, err := s.service.Redeem(ctx, RedeemInput{Credential: opened.Credential, Destination: testDestination})
	if err != nil || !result.Success {
		t.Fatalf("retry after rollback failed: %v %+v", err, result)
	}
}

func assertRolledBack(t *testing.T, s *stack, accountID string) {
	t.Helper()
	account, err := s.accounts.Get(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Status != escrow.StatusPendingClaim {
		t.Fatalf("expected PENDING_CLAIM after rollback, got %s", account.Status)
	}
	if account.Destination != "" || account.ClaimedAt != nil {
		t.Fatalf("rollback did not clear claim fields: %+v", account)
	}
	if _, err := s.records.GetByAccount(context.Background(), accountID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no claim record may exist after rollback, got %v", err)
	}
}

func TestRedeemMismatchRejection(t *testing.T) {
	s := newStack(t)
	opened := s.openEscrow(t)
	ctx := context.Background()

	_, err := s.service.Redeem(ctx, RedeemInput{
		Credential:  opened.Credential,
		Destination: testDestination,
		Amount:      "99.9999999",
	})
	if !errors.Is(err, sweep.ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}

	_, err = s.service.Redeem(ctx, RedeemInput{
		Credential:  opened.Credential,
		Destination: testDestination,
		Asset:       "USD:" + testDestination,
	})
	if !errors.Is(err, sweep.ErrAssetMismatch) {
		t.Fatalf("expected asset mismatch, got %v", err)
	}

	account, err := s.accounts.Get(ctx, opened.Account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Status != escrow.StatusPendingClaim || account.Destination != "" {
		t.Fatalf("mismatch must not mutate state: %+v", account)
	}
	if got := s.client.transfers.Load(); got != 0 {
		t.Fatalf("mismatch must not transfer, got %d", got)
	}
}

func TestRedeemStatusGates(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	// PENDING_PAYMENT: created without funding.
	unfundedResult, err := s.unfunded.Create(ctx, escrow.CreateInput{Amount: "5.0000000", Asset: "native", TTL: time.Hour})
	if err != nil {
		t.Fatalf("create unfunded escrow: %v", err)
	}
	if _, err := s.service.Redeem(ctx, RedeemInput{Credential: unfundedResult.Credential, Destination: testDestination}); !errors.Is(err, escrow.ErrNotFunded) {
		t.Fatalf("expected ErrNotFunded, got %v", err)
	}

	// EXPIRED.
	expired := s.openEscrow(t)
	if err := s.accounts.UpdateStatus(ctx, expired.Account.ID, escrow.StatusPendingClaim, escrow.StatusExpired); err != nil {
		t.Fatalf("force expire: %v", err)
	}
	if _, err := s.service.Redeem(ctx, RedeemInput{Credential: expired.Credential, Destination: testDestination}); !errors.Is(err, credential.ErrInvalid) {
		t.Fatalf("expected credential.ErrInvalid for expired escrow, got %v", err)
	}

	// FAILED.
	failed := s.openEscrow(t)
	if err := s.accounts.UpdateStatus(ctx, failed.Account.ID, escrow.StatusPendingClaim, escrow.StatusFailed); err != nil {
		t.Fatalf("force fail: %v", err)
	}
	if _, err := s.service.Redeem(ctx, RedeemInput{Credential: failed.Credential, Destination: testDestination}); !errors.Is(err, escrow.ErrAccountFailed) {
		t.Fatalf("expected ErrAccountFailed, got %v", err)
	}

	// CLAIMED surfaces as conflict via verification.
	claimed := s.openEscrow(t)
	if _, err := s.service.Redeem(ctx, RedeemInput{Credential: claimed.Credential, Destination: testDestination}); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := s.service.Verify(ctx, claimed.Credential); !errors.Is(err, escrow.ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed from verification, got %v", err)
	}
}

func TestVerifyPreview(t *testing.T) {
	s := newStack(t)
	opened := s.openEscrow(t)
	ctx := context.Background()

	result, err := s.service.Verify(ctx, opened.Credential)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.AccountID != opened.Account.ID || result.Amount != "100.0000000" || result.Asset != "native" {
		t.Fatalf("unexpected preview: %+v", result)
	}

	// Preview mutates nothing.
	account, err := s.accounts.Get(ctx, opened.Account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Status != escrow.StatusPendingClaim {
		t.Fatalf("verification must not mutate status, got %s", account.Status)
	}

	// A well-signed credential bound to no stored account is invalid.
	orphan, err := s.codec.Issue(testDestination, time.Hour)
	if err != nil {
		t.Fatalf("issue orphan credential: %v", err)
	}
	if _, err := s.service.Verify(ctx, orphan); !errors.Is(err, credential.ErrInvalid) {
		t.Fatalf("expected credential.ErrInvalid for orphan, got %v", err)
	}
}

func TestRedeemConcurrentExclusivity(t *testing.T) {
	s := newStack(t)
	opened := s.openEscrow(t)

	const attempts = 8
	results := make([]RedeemResult, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.service.Redeem(context.Background(), RedeemInput{
				Credential:  opened.Credential,
				Destination: testDestination,
			})
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("attempt %d: %v", i, errs[i])
		}
		if !results[i].Success {
			t.Fatalf("attempt %d not successful: %+v", i, results[i])
		}
		if results[i].Message == "" {
			fresh++
		} else if results[i].Message != AlreadyRedeemedMessage {
			t.Fatalf("attempt %d: unexpected annotation %q", i, results[i].Message)
		}
	}

	if fresh != 1 {
		t.Fatalf("expected exactly one winning redemption, got %d", fresh)
	}
	if got := s.client.transfers.Load(); got != 1 {
		t.Fatalf("expected exactly one transfer, got %d", got)
	}
}

func mustCipher(t *testing.T) *secrets.NaClCipher {
	t.Helper()
	cipher, err := secrets.NewNaClCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("build cipher: %v", err)
	}
	return cipher
}
