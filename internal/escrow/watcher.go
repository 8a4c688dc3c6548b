package escrow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stellar/go/amount"

	"github.com/claimlink/claimlink/internal/ledger"
)

const watcherBatchSize = 200

// Watcher polls the ledger for inbound escrow payments, promoting funded
// accounts to PENDING_CLAIM and expiring overdue ones. All transitions are
// conditional updates, so running alongside concurrent redemptions is safe:
// losing a race is ignored.
type Watcher struct {
	service  *Service
	repo     Repository
	client   ledger.Client
	logger   *slog.Logger
	interval time.Duration
}

// NewWatcher builds a funding watcher.
func NewWatcher(service *Service, repo Repository, client ledger.Client, logger *slog.Logger, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watcher{service: service, repo: repo, client: client, logger: logger, interval: interval}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	now := time.Now().UTC()

	pending, err := w.repo.List(ctx, ListFilter{Status: StatusPendingPayment, Limit: watcherBatchSize})
	if err != nil {
		w.logger.Error("watcher list pending accounts", "error", err)
		return
	}
	for _, account := range pending {
		if now.After(account.ExpiresAt) {
			w.expire(ctx, account)
			continue
		}
		w.checkFunding(ctx, account)
	}

	claimable, err := w.repo.List(ctx, ListFilter{Status: StatusPendingClaim, Limit: watcherBatchSize})
	if err != nil {
		w.logger.Error("watcher list claimable accounts", "error", err)
		return
	}
	for _, account := range claimable {
		if now.After(account.ExpiresAt) {
			w.expire(ctx, account)
		}
	}
}

func (w *Watcher) checkFunding(ctx context.Context, account Account) {
	balanceStr, err := w.client.BalanceOf(ctx, account.Address, account.Asset)
	if err != nil {
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			w.logger.Warn("watcher balance query failed", "account_id", account.ID, "error", err)
		}
		return
	}
	balance, err := amount.ParseInt64(balanceStr)
	if err != nil {
		w.logger.Warn("watcher unparsable balance", "account_id", account.ID, "balance", balanceStr)
		return
	}
	required, err := amount.ParseInt64(account.Amount)
	if err != nil {
		w.logger.Error("watcher unparsable escrow amount", "account_id", account.ID, "amount", account.Amount)
		return
	}
	if balance < required {
		return
	}
	if err := w.service.ConfirmFunding(ctx, account.ID); err != nil {
		if !errors.Is(err, ErrConflict) {
			w.logger.Warn("watcher funding confirmation failed", "account_id", account.ID, "error", err)
		}
		return
	}
	w.logger.Info("escrow funded", "account_id", account.ID, "amount", account.Amount, "asset", account.Asset)
}

func (w *Watcher) expire(ctx context.Context, account Account) {
	if err := w.repo.UpdateStatus(ctx, account.ID, account.Status, StatusExpired); err != nil {
		if !errors.Is(err, ErrConflict) {
			w.logger.Warn("watcher expiry failed", "account_id", account.ID, "error", err)
		}
		return
	}
	w.logger.Info("escrow expired", "account_id", account.ID)
}
