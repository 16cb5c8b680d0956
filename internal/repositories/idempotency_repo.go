package repositories

import (
	"context"
	"errors"
	"time"

	"payflow/internal/models"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepository is the fingerprint store backing the mutation dedup
// gate. Records live in the shared data store so horizontally scaled
// instances agree on dedup decisions.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	Create(ctx context.Context, record *models.IdempotencyRecord) error
	DeleteExpired(ctx context.Context, asOf time.Time) (int64, error)
}

type idempotencyRepo struct {
	db Database
}

func NewIdempotencyRepo(db Database) IdempotencyRepository {
	return &idempotencyRepo{db: db}
}

// Get returns nil without error when the key has never been committed.
func (r *idempotencyRepo) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	query := `
		SELECT key, request_method, request_path, request_body_hash, response_status, response_body, expires_at, created_at
		FROM idempotency_records
		WHERE key = $1 AND expires_at > NOW()
	`
	record := &models.IdempotencyRecord{}
	err := r.db.QueryRow(ctx, query, key).Scan(&record.Key, &record.RequestMethod, &record.RequestPath, &record.RequestBodyHash, &record.ResponseStatus, &record.ResponseBody, &record.ExpiresAt, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// Create commits a record. ON CONFLICT DO NOTHING keeps the first writer's
// response authoritative when two instances race on the same key.
func (r *idempotencyRepo) Create(ctx context.Context, record *models.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_records (key, request_method, request_path, request_body_hash, response_status, response_body, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (key) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, record.Key, record.RequestMethod, record.RequestPath, record.RequestBodyHash, record.ResponseStatus, record.ResponseBody, record.ExpiresAt)
	return err
}

func (r *idempotencyRepo) DeleteExpired(ctx context.Context, asOf time.Time) (int64, error) {
	query := `DELETE FROM idempotency_records WHERE expires_at <= $1`
	tag, err := r.db.Exec(ctx, query, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
