package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclabs/ballotbox/internal/domain"
)

type VoteRepository interface {
	// CastVote commits the three-part update (ledger insert, has_voted flip,
	// tally increment) in one transaction. Exactly one of two racing casts
	// for the same voter succeeds; the other gets ErrDuplicateVote.
	CastVote(ctx context.Context, voterID, candidateID int64) (*domain.Vote, error)
	FindByVoterID(ctx context.Context, voterID int64) (*domain.Vote, error)
	Count(ctx context.Context) (int64, error)
	// ResetElection clears the ledger, has_voted flags and tallies as a unit.
	// Identities and approval statuses are untouched.
	ResetElection(ctx context.Context) error
}

type voteRepository struct {
	pool *pgxpool.Pool
}

func NewVoteRepository(pool *pgxpool.Pool) VoteRepository {
	return &voteRepository{pool: pool}
}

func (r *voteRepository) CastVote(ctx context.Context, voterID, candidateID int64) (*domain.Vote, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Conditional flip: loses the race cleanly when a concurrent cast for the
	// same voter got here first.
	var flipped int64
	err = tx.QueryRow(ctx, `
		UPDATE voters
		SET has_voted = true, voted_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'approved' AND has_voted = false
		RETURNING id`, voterID).Scan(&flipped)
	if err == pgx.ErrNoRows {
		return nil, r.castRefusal(ctx, voterID)
	}
	if err != nil {
		return nil, err
	}

	var v domain.Vote
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (voter_id, candidate_id)
		VALUES ($1, $2)
		RETURNING id, voter_id, candidate_id, cast_at`, voterID, candidateID).Scan(
		&v.ID, &v.VoterID, &v.CandidateID, &v.CastAt,
	)
	if err != nil {
		return nil, ledgerInsertError(err)
	}

	// Relative increment, no read-modify-write, so concurrent votes for the
	// same candidate never lose updates.
	var tally int64
	err = tx.QueryRow(ctx, `
		UPDATE candidates
		SET vote_count = vote_count + 1, updated_at = now()
		WHERE id = $1 AND status = 'approved'
		RETURNING vote_count`, candidateID).Scan(&tally)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrInvalidCandidate
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &v, nil
}

// ledgerInsertError translates constraint failures on the votes insert. A
// duplicate voter_id means a concurrent cast won the race; a broken
// candidate_id reference means the candidate does not exist.
func ledgerInsertError(err error) error {
	switch {
	case isUniqueViolation(err):
		return domain.ErrDuplicateVote
	case isForeignKeyViolation(err):
		return domain.ErrInvalidCandidate
	}
	return err
}

// castRefusal explains why the conditional has_voted flip matched no row.
func (r *voteRepository) castRefusal(ctx context.Context, voterID int64) error {
	var status domain.ApprovalStatus
	var hasVoted bool
	err := r.pool.QueryRow(ctx, `SELECT status, has_voted FROM voters WHERE id = $1`, voterID).Scan(&status, &hasVoted)
	if err == pgx.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if hasVoted {
		return domain.ErrDuplicateVote
	}
	return domain.ErrVoterNotApproved
}

func (r *voteRepository) FindByVoterID(ctx context.Context, voterID int64) (*domain.Vote, error) {
	const q = `SELECT id, voter_id, candidate_id, cast_at FROM votes WHERE voter_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var v domain.Vote
	err := r.pool.QueryRow(ctx, q, voterID).Scan(&v.ID, &v.VoterID, &v.CandidateID, &v.CastAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &v, err
}

func (r *voteRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM votes`).Scan(&n)
	return n, err
}

func (r *voteRepository) ResetElection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM votes`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE voters SET has_voted = false, voted_at = NULL, updated_at = now() WHERE has_voted`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE candidates SET vote_count = 0, updated_at = now() WHERE vote_count > 0`); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
