package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"leaseflow/contract"
)

// CastVoteParams carries one vote submission.
type CastVoteParams struct {
	Voter       string
	Choice      Choice
	Reason      string
	StakeAmount int64
	Receipt     StakeReceipt
}

// CastVote records a stake-gated vote. Admission rules run in order under
// the dispute row lock: eligibility, stake (amount then receipt), deadline.
// The unique (dispute_id, voter) constraint backs the one-vote invariant
// against concurrent submissions; a second attempt always fails with
// ErrNotEligible.
func (s *Service) CastVote(ctx context.Context, disputeID string, params CastVoteParams) (Vote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Vote{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, c, err := lockDispute(ctx, tx, disputeID)
	if err != nil {
		return Vote{}, err
	}
	if rec.ResolvedAt != nil {
		return Vote{}, fmt.Errorf("%w: voting closed", ErrDeadlinePassed)
	}

	var hasVoted bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE dispute_id = $1 AND voter = $2)`,
		disputeID, params.Voter).Scan(&hasVoted); err != nil {
		return Vote{}, fmt.Errorf("dispute: check prior vote: %w", err)
	}

	guard := contract.Record{LandlordAddress: c.LandlordAddress, TenantAddress: c.TenantAddress}
	if err := ValidateVote(guard, rec, params.Voter, params.Choice, params.Reason, params.StakeAmount, hasVoted, time.Now()); err != nil {
		return Vote{}, err
	}
	if err := s.verifier.Verify(ctx, params.Receipt, params.Voter, params.StakeAmount); err != nil {
		return Vote{}, fmt.Errorf("%w: %v", ErrInvalidStake, err)
	}

	var reason any
	if params.Reason != "" {
		reason = params.Reason
	}

	var v Vote
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (id, dispute_id, voter, choice, reason, stake_amount, stake_tx)
		VALUES ($1, $2, $3, $4::vote_choice, $5, $6, $7)
		RETURNING id, dispute_id, voter, choice::text, reason, stake_amount, stake_tx, created_at
	`, uuid.NewString(), disputeID, params.Voter, string(params.Choice), reason, params.StakeAmount, params.Receipt.TxRef).Scan(
		&v.ID, &v.DisputeID, &v.Voter, &v.Choice, &v.Reason, &v.StakeAmount, &v.StakeTx, &v.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Vote{}, ErrNotEligible
		}
		return Vote{}, fmt.Errorf("dispute: insert vote: %w", err)
	}

	if err := contract.AppendEvent(ctx, tx, rec.ContractID, contract.EventVoteCast, params.Voter, map[string]any{
		"vote_id": v.ID,
		"choice":  string(v.Choice),
		"stake":   v.StakeAmount,
	}); err != nil {
		return Vote{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Vote{}, fmt.Errorf("dispute: commit vote: %w", err)
	}
	return v, nil
}
