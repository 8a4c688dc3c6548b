package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilter narrows and pages List results.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Repository persists escrow accounts. All lifecycle transitions go through
// the conditional update methods so that concurrent writers serialize on the
// stored status value.
type Repository interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id string) (Account, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (Account, error)
	List(ctx context.Context, filter ListFilter) ([]Account, error)

	// UpdateStatus transitions id from one status to another; ErrConflict if
	// the stored status no longer matches from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error

	// MarkClaimed is the redemption commit point: atomically moves a
	// PENDING_CLAIM account to CLAIMED and records destination and claim
	// time. ErrConflict if the account is not PENDING_CLAIM anymore.
	MarkClaimed(ctx context.Context, id, destination string, claimedAt time.Time) error

	// RevertClaim compensates a failed sweep: restores PENDING_CLAIM and
	// clears destination and claim time.
	RevertClaim(ctx context.Context, id string) error
}

// PostgresRepository stores escrow accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, address, encrypted_secret, funding_source, amount, asset, status,
        credential_fingerprint, destination, expires_at, claimed_at, created_at, updated_at, metadata`

// Create inserts an escrow account record.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	id, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(account.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO escrow_accounts
        (id, address, encrypted_secret, funding_source, amount, asset, status,
         credential_fingerprint, destination, expires_at, claimed_at, created_at, updated_at, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, account.Address, account.EncryptedSecret, account.FundingSource,
		account.Amount, account.Asset, string(account.Status),
		nullable(account.CredentialFingerprint), nullable(account.Destination),
		account.ExpiresAt.UTC(), account.ClaimedAt,
		account.CreatedAt.UTC(), account.UpdatedAt.UTC(), meta)
	return err
}

// Get fetches an escrow account by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Account, error) {
	accountUUID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM escrow_accounts WHERE id = $1`, accountUUID)
	return scanAccount(row)
}

// GetByFingerprint fetches the account owning the given credential fingerprint.
func (r *PostgresRepository) GetByFingerprint(ctx context.Context, fingerprint string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM escrow_accounts WHERE credential_fingerprint = $1`, fingerprint)
	return scanAccount(row)
}

// List returns accounts matching the filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + accountColumns + ` FROM escrow_accounts`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// UpdateStatus performs a compare-and-set status transition.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	accountUUID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE escrow_accounts SET status = $3, updated_at = now()
        WHERE id = $1 AND status = $2`, accountUUID, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// MarkClaimed atomically wins or loses the redemption race on the status column.
func (r *PostgresRepository) MarkClaimed(ctx context.Context, id, destination string, claimedAt time.Time) error {
	accountUUID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE escrow_accounts
        SET status = $2, destination = $3, claimed_at = $4, updated_at = now()
        WHERE id = $1 AND status = $5`,
		accountUUID, string(StatusClaimed), destination, claimedAt.UTC(), string(StatusPendingClaim))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// RevertClaim undoes MarkClaimed after a failed external effect.
func (r *PostgresRepository) RevertClaim(ctx context.Context, id string) error {
	accountUUID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE escrow_accounts
        SET status = $2, destination = NULL, claimed_at = NULL, updated_at = now()
        WHERE id = $1 AND status = $3`,
		accountUUID, string(StatusPendingClaim), string(StatusClaimed))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		account     Account
		id          uuid.UUID
		status      string
		fingerprint *string
		destination *string
		claimedAt   *time.Time
		meta        []byte
	)
	err := row.Scan(&id, &account.Address, &account.EncryptedSecret, &account.FundingSource,
		&account.Amount, &account.Asset, &status, &fingerprint, &destination,
		&account.ExpiresAt, &claimedAt, &account.CreatedAt, &account.UpdatedAt, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.Status = Status(status)
	if fingerprint != nil {
		account.CredentialFingerprint = *fingerprint
	}
	if destination != nil {
		account.Destination = *destination
	}
	account.ClaimedAt = claimedAt
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &account.Metadata); err != nil {
			return Account{}, err
		}
	}
	account.ExpiresAt = account.ExpiresAt.UTC()
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
