package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclabs/ballotbox/internal/domain"
)

// ErrVoterNoTaken reports a voter number collision on approval. The caller
// regenerates and retries.
var ErrVoterNoTaken = errors.New("voter number already assigned")

type VoterRepository interface {
	// CreateWithUser inserts the account and the voter profile in one
	// transaction so a failed profile never leaves an orphan account.
	CreateWithUser(ctx context.Context, req *domain.RegisterVoterRequest, passwordHash string) (*domain.Voter, *domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.Voter, error)
	FindByUserID(ctx context.Context, userID int64) (*domain.Voter, error)
	FindByVoterNo(ctx context.Context, voterNo string) (*domain.Voter, error)
	List(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.VoterListing, error)
	// Approve flips pending→approved and assigns the voter number.
	// Returns ErrVoterNoTaken on a number collision.
	Approve(ctx context.Context, id int64, voterNo string) (*domain.Voter, error)
	Reject(ctx context.Context, id int64, reason string) (*domain.Voter, error)
	CountByStatus(ctx context.Context) (map[domain.ApprovalStatus]int64, error)
}

type voterRepository struct {
	pool *pgxpool.Pool
}

func NewVoterRepository(pool *pgxpool.Pool) VoterRepository {
	return &voterRepository{pool: pool}
}

const voterCols = `id, user_id, national_id, voter_no, date_of_birth, guardian_name, phone, occupation,
	status, reject_reason, has_voted, voted_at, created_at, updated_at`

func scanVoter(row pgx.Row) (*domain.Voter, error) {
	var v domain.Voter
	err := row.Scan(
		&v.ID, &v.UserID, &v.NationalID, &v.VoterNo, &v.DateOfBirth, &v.GuardianName, &v.Phone,
		&v.Occupation, &v.Status, &v.RejectReason, &v.HasVoted, &v.VotedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *voterRepository) CreateWithUser(ctx context.Context, req *domain.RegisterVoterRequest, passwordHash string) (*domain.Voter, *domain.User, error) {
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
		domain.RoleVoter, req.Email, passwordHash, req.Name,
	).Scan(&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, nil, err
	}

	birth, err := req.BirthDate()
	if err != nil {
		return nil, nil, err
	}

	v, err := scanVoter(tx.QueryRow(ctx, `
		INSERT INTO voters (user_id, national_id, date_of_birth, guardian_name, phone, occupation)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+voterCols,
		u.ID, req.NationalID, birth, req.GuardianName, req.Phone, req.Occupation,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, nil, domain.ErrNationalIDTaken
		}
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return v, &u, nil
}

func (r *voterRepository) FindByID(ctx context.Context, id int64) (*domain.Voter, error) {
	const q = `SELECT ` + voterCols + ` FROM voters WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVoter(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *voterRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Voter, error) {
	const q = `SELECT ` + voterCols + ` FROM voters WHERE user_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVoter(r.pool.QueryRow(ctx, q, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *voterRepository) FindByVoterNo(ctx context.Context, voterNo string) (*domain.Voter, error) {
	const q = `SELECT ` + voterCols + ` FROM voters WHERE voter_no = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVoter(r.pool.QueryRow(ctx, q, voterNo))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *voterRepository) List(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.VoterListing, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT v.id, u.name, u.email, v.phone, v.national_id, v.occupation,
		       v.status, v.voter_no, v.has_voted, v.created_at
		FROM voters v
		JOIN users u ON u.id = v.user_id
		WHERE ($1::text IS NULL OR v.status = $1)
		ORDER BY v.created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []domain.VoterListing
	for rows.Next() {
		var l domain.VoterListing
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Email, &l.Phone, &l.NationalID, &l.Occupation,
			&l.Status, &l.VoterNo, &l.HasVoted, &l.AppliedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	return listings, rows.Err()
}

func (r *voterRepository) Approve(ctx context.Context, id int64, voterNo string) (*domain.Voter, error) {
	const q = `
		UPDATE voters
		SET status = 'approved', voter_no = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + voterCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVoter(r.pool.QueryRow(ctx, q, id, voterNo))
	if isUniqueViolation(err) {
		return nil, ErrVoterNoTaken
	}
	if err == pgx.ErrNoRows {
		return nil, r.transitionError(ctx, id)
	}
	return v, err
}

func (r *voterRepository) Reject(ctx context.Context, id int64, reason string) (*domain.Voter, error) {
	const q = `
		UPDATE voters
		SET status = 'rejected', reject_reason = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + voterCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVoter(r.pool.QueryRow(ctx, q, id, reason))
	if err == pgx.ErrNoRows {
		return nil, r.transitionError(ctx, id)
	}
	return v, err
}

// transitionError distinguishes a missing voter from one in the wrong state.
func (r *voterRepository) transitionError(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM voters WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}

func (r *voterRepository) CountByStatus(ctx context.Context) (map[domain.ApprovalStatus]int64, error) {
	const q = `SELECT status, count(*) FROM voters GROUP BY status`
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
