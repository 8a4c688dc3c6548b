package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/claimlink/claimlink/internal/claims"
	"github.com/claimlink/claimlink/internal/config"
	"github.com/claimlink/claimlink/internal/credential"
	"github.com/claimlink/claimlink/internal/escrow"
	"github.com/claimlink/claimlink/internal/ledger"
	"github.com/claimlink/claimlink/internal/middleware"
	"github.com/claimlink/claimlink/internal/notification"
	"github.com/claimlink/claimlink/internal/secrets"
	"github.com/claimlink/claimlink/internal/sweep"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes, returning the
// funding watcher for the caller to run.
func Setup(app *fiber.App, d Deps) (*escrow.Watcher, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Collaborators
	var ledgerClient ledger.Client
	if d.Cfg.HorizonURL != "" {
		client, err := ledger.NewHorizonClient(d.Cfg.HorizonURL, d.Cfg.NetworkPassphrase, d.Cfg.FundingSecret)
		if err != nil {
			return nil, err
		}
		ledgerClient = client
	} else {
		ledgerClient = ledger.NewInMemory()
	}

	cipher, err := secrets.NewNaClCipher(d.Cfg.SecretCipherKey)
	if err != nil {
		return nil, err
	}
	codec := credential.NewCodec([]byte(d.Cfg.CredentialSecret))

	var accountRepo escrow.Repository
	var recordRepo claims.Repository
	if d.DB != nil {
		accountRepo = escrow.NewPostgresRepository(d.DB)
		recordRepo = claims.NewPostgresRepository(d.DB)
	} else {
		accountRepo = escrow.NewMemoryRepository()
		recordRepo = claims.NewMemoryRepository()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	// With the in-memory ledger there is no external payer, so fund escrows
	// at creation time; against Horizon this needs a configured source.
	autoFund := d.Cfg.FundingSecret != "" || d.Cfg.HorizonURL == ""
	escrowSvc := escrow.NewService(accountRepo, ledgerClient, cipher, codec, notifier, d.Logger, autoFund)

	authorizer := sweep.NewLocalAuthorizer([]byte(d.Cfg.CredentialSecret))
	executor := sweep.NewExecutor(ledgerClient, cipher)
	claimsSvc := claims.NewService(codec, accountRepo, recordRepo, authorizer, executor, notifier, d.Logger)

	escrowHandler := escrow.NewHandler(escrowSvc, d.Cfg.BaseURL)
	claimsHandler := claims.NewHandler(claimsSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAccountRoutes(api, escrowHandler)
	redeemLimiter := middleware.RedeemRateLimit(d.Cache, 10)
	RegisterClaimRoutes(api, claimsHandler, redeemLimiter)

	watcher := escrow.NewWatcher(escrowSvc, accountRepo, ledgerClient, d.Logger, d.Cfg.FundingPollInterval)
	return watcher, nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
