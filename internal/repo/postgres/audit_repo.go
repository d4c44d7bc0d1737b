package postgres

import (
	"context"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclabs/ballotbox/internal/domain"
)

type AuditRepository interface {
	// Record appends one entry. voterID zero records an entry with no voter.
	Record(ctx context.Context, voterID int64, action, details string, ip net.IP) error
	List(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Record(ctx context.Context, voterID int64, action, details string, ip net.IP) error {
	const q = `INSERT INTO audit_log (voter_id, action, details, ip) VALUES ($1, $2, $3, $4)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var vid *int64
	if voterID != 0 {
		vid = &voterID
	}

	_, err := r.pool.Exec(ctx, q, vid, action, details, ip)
	return err
}

func (r *auditRepository) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	const q = `
		SELECT id, voter_id, action, details, ip, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var voterID *int64
		if err := rows.Scan(&e.ID, &voterID, &e.Action, &e.Details, &e.IP, &e.CreatedAt); err != nil {
			return nil, err
		}
		if voterID != nil {
			e.VoterID = *voterID
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
