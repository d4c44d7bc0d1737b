package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/civiclabs/ballotbox/internal/domain"
)

type OTPRepository interface {
	// Create stores a new code hash and expires any unconsumed predecessor
	// for the voter, so only the newest code can ever verify.
	Create(ctx context.Context, voterID int64, codeHash string, expiresAt time.Time) (*domain.OTPCode, error)
	// Consume checks the submitted code against the voter's newest live
	// record and marks it consumed on a match. A mismatch, expired or
	// already-consumed record returns (false, nil) without side effects.
	Consume(ctx context.Context, voterID int64, code string) (bool, error)
	// ConsumedWithin reports whether the voter verified a code inside the
	// given window. This is the cast-vote authorization check.
	ConsumedWithin(ctx context.Context, voterID int64, window time.Duration) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type otpRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

func (r *otpRepository) Create(ctx context.Context, voterID int64, codeHash string, expiresAt time.Time) (*domain.OTPCode, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Supersede: prior unconsumed codes expire immediately.
	_, err = tx.Exec(ctx, `
		UPDATE otp_codes
		SET expires_at = now()
		WHERE voter_id = $1 AND consumed_at IS NULL AND expires_at > now()`, voterID)
	if err != nil {
		return nil, err
	}

	var o domain.OTPCode
	err = tx.QueryRow(ctx, `
		INSERT INTO otp_codes (voter_id, code_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, voter_id, code_hash, expires_at, consumed_at, created_at`,
		voterID, codeHash, expiresAt,
	).Scan(&o.ID, &o.VoterID, &o.CodeHash, &o.ExpiresAt, &o.ConsumedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *otpRepository) Consume(ctx context.Context, voterID int64, code string) (bool, error) {
	const q = `
		SELECT id, code_hash, expires_at, consumed_at
		FROM otp_codes
		WHERE voter_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		id       int64
		hash     string
		expires  time.Time
		consumed *time.Time
	)
	err := r.pool.QueryRow(ctx, q, voterID).Scan(&id, &hash, &expires, &consumed)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if consumed != nil || time.Now().After(expires) {
		return false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return false, nil
	}

	// Conditional mark keeps one-time-use under concurrent verifies.
	tag, err := r.pool.Exec(ctx, `
		UPDATE otp_codes
		SET consumed_at = now()
		WHERE id = $1 AND consumed_at IS NULL AND expires_at > now()`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *otpRepository) ConsumedWithin(ctx context.Context, voterID int64, window time.Duration) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM otp_codes
			WHERE voter_id = $1 AND consumed_at IS NOT NULL AND consumed_at > $2
		)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var ok bool
	err := r.pool.QueryRow(ctx, q, voterID, time.Now().Add(-window)).Scan(&ok)
	return ok, err
}

func (r *otpRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `
		DELETE FROM otp_codes
		WHERE expires_at < now() - interval '30 days'`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
