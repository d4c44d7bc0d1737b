package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclabs/ballotbox/internal/domain"
)

type CandidateRepository interface {
	// CreateWithUser inserts the account and the nomination in one transaction.
	CreateWithUser(ctx context.Context, req *domain.RegisterCandidateRequest, passwordHash string) (*domain.Candidate, *domain.User, error)
	// CreateNomination inserts a fresh pending nomination for an existing
	// candidate account. Fails with ErrInvalidTransition while a live
	// (pending or approved) nomination exists.
	CreateNomination(ctx context.Context, userID int64, party string) (*domain.Candidate, error)
	// CancelNomination deletes the account's pending nomination. Approved
	// nominations cannot be cancelled; they refuse with ErrInvalidTransition.
	CancelNomination(ctx context.Context, userID int64) error
	FindByID(ctx context.Context, id int64) (*domain.Candidate, error)
	// FindByUserID returns the newest nomination for the account.
	FindByUserID(ctx context.Context, userID int64) (*domain.Candidate, error)
	List(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.CandidateListing, error)
	Approve(ctx context.Context, id int64) (*domain.Candidate, error)
	Reject(ctx context.Context, id int64, reason string) (*domain.Candidate, error)
	// Results lists approved candidates with tallies, highest first.
	Results(ctx context.Context) ([]domain.CandidateResult, error)
	CountByStatus(ctx context.Context) (map[domain.ApprovalStatus]int64, error)
}

type candidateRepository struct {
	pool *pgxpool.Pool
}

func NewCandidateRepository(pool *pgxpool.Pool) CandidateRepository {
	return &candidateRepository{pool: pool}
}

const candidateCols = `id, user_id, party, status, reject_reason, vote_count, created_at, updated_at`

func scanCandidate(row pgx.Row) (*domain.Candidate, error) {
	var c domain.Candidate
	err := row.Scan(
		&c.ID, &c.UserID, &c.Party, &c.Status, &c.RejectReason, &c.VoteCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *candidateRepository) CreateWithUser(ctx context.Context, req *domain.RegisterCandidateRequest, passwordHash string) (*domain.Candidate, *domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	var u domain.User
	err = tx.QueryRow(ctx, `
		INSERT INTO users (role, email, password_hash, name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userCols,
		domain.RoleCandidate, req.Email, passwordHash, req.Name,
	).Scan(&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, nil, err
	}

	c, err := scanCandidate(tx.QueryRow(ctx, `
		INSERT INTO candidates (user_id, party)
		VALUES ($1, $2)
		RETURNING `+candidateCols,
		u.ID, req.Party,
	))
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return c, &u, nil
}

func (r *candidateRepository) CreateNomination(ctx context.Context, userID int64, party string) (*domain.Candidate, error) {
	const q = `
		INSERT INTO candidates (user_id, party)
		VALUES ($1, $2)
		RETURNING ` + candidateCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCandidate(r.pool.QueryRow(ctx, q, userID, party))
	if isUniqueViolation(err) {
		// the partial unique index blocks a second live nomination
		return nil, domain.ErrInvalidTransition
	}
	return c, err
}

func (r *candidateRepository) CancelNomination(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM candidates WHERE user_id = $1 AND status = 'pending'`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing pending: either no nomination exists or it is already decided.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM candidates WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}

func (r *candidateRepository) FindByID(ctx context.Context, id int64) (*domain.Candidate, error) {
	const q = `SELECT ` + candidateCols + ` FROM candidates WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCandidate(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *candidateRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Candidate, error) {
	const q = `SELECT ` + candidateCols + ` FROM candidates WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCandidate(r.pool.QueryRow(ctx, q, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *candidateRepository) List(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.CandidateListing, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT c.id, u.name, u.email, c.party, c.status, c.vote_count, c.created_at
		FROM candidates c
		JOIN users u ON u.id = c.user_id
		WHERE ($1::text IS NULL OR c.status = $1)
		ORDER BY c.created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []domain.CandidateListing
	for rows.Next() {
		var l domain.CandidateListing
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Party, &l.Status, &l.VoteCount, &l.AppliedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

func (r *candidateRepository) Approve(ctx context.Context, id int64) (*domain.Candidate, error) {
	const q = `
		UPDATE candidates
		SET status = 'approved', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + candidateCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCandidate(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, r.transitionError(ctx, id)
	}
	return c, err
}

func (r *candidateRepository) Reject(ctx context.Context, id int64, reason string) (*domain.Candidate, error) {
	const q = `
		UPDATE candidates
		SET status = 'rejected', reject_reason = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + candidateCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanCandidate(r.pool.QueryRow(ctx, q, id, reason))
	if err == pgx.ErrNoRows {
		return nil, r.transitionError(ctx, id)
	}
	return c, err
}

func (r *candidateRepository) transitionError(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM candidates WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}

func (r *candidateRepository) Results(ctx context.Context) ([]domain.CandidateResult, error) {
	const q = `
		SELECT c.id, u.name, c.party, c.vote_count
		FROM candidates c
		JOIN users u ON u.id = c.user_id
		WHERE c.status = 'approved'
		ORDER BY c.vote_count DESC, u.name ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.CandidateResult
	for rows.Next() {
		var res domain.CandidateResult
		if err := rows.Scan(&res.CandidateID, &res.Name, &res.Party, &res.Votes); err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

func (r *candidateRepository) CountByStatus(ctx context.Context) (map[domain.ApprovalStatus]int64, error) {
	const q = `SELECT status, count(*) FROM candidates GROUP BY status`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ApprovalStatus]int64)
	for rows.Next() {
		var status domain.ApprovalStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
