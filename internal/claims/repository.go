package claims

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no claim record matches the lookup key.
var ErrNotFound = errors.New("claim record not found")

// Repository persists claim records. Insert-only: records are never updated.
type Repository interface {
	Create(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, error)
	GetByAccount(ctx context.Context, accountID string) (Record, error)
}

// PostgresRepository stores claim records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a claim record.
func (r *PostgresRepository) Create(ctx context.Context, record Record) error {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return err
	}
	accountID, err := uuid.Parse(record.AccountID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO claim_records
        (id, account_id, destination, transfer_reference, amount, asset, claimed_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, accountID, record.Destination, record.TransferReference,
		record.Amount, record.Asset, record.ClaimedAt.UTC(),
		record.CreatedAt.UTC(), record.UpdatedAt.UTC())
	return err
}

// Get fetches a claim record by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Record, error) {
	recordUUID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, account_id, destination, transfer_reference, amount, asset,
        claimed_at, created_at, updated_at FROM claim_records WHERE id = $1`, recordUUID)
	return scanRecord(row)
}

// GetByAccount fetches the claim record owned by the given escrow account.
func (r *PostgresRepository) GetByAccount(ctx context.Context, accountID string) (Record, error) {
	accountUUID, err := uuid.Parse(accountID)
	if err != nil {
		return Record{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, account_id, destination, transfer_reference, amount, asset,
        claimed_at, created_at, updated_at FROM claim_records WHERE account_id = $1`, accountUUID)
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		record    Record
		id        uuid.UUID
		accountID uuid.UUID
		claimedAt time.Time
	)
	err := row.Scan(&id, &accountID, &record.Destination, &record.TransferReference,
		&record.Amount, &record.Asset, &claimedAt, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	record.ID = id.String()
	record.AccountID = accountID.String()
	record.ClaimedAt = claimedAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
