package dispute

import (
	"context"
	"fmt"
	"time"

	"leaseflow/contract"
)

// Resolve closes a dispute once voting is over. The tally must have a
// strict majority; a tie returns ErrTieUnresolved and changes nothing. On a
// win the dispute and contract records and the settlement command batch are
// committed together.
func (s *Service) Resolve(ctx context.Context, disputeID string) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, c, err := lockDispute(ctx, tx, disputeID)
	if err != nil {
		return Record{}, err
	}
	if rec.ResolvedAt != nil {
		return Record{}, ErrAlreadyResolved
	}
	if err := contract.ValidateTransition(contract.Status(c.Status), contract.StatusResolved); err != nil {
		return Record{}, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, dispute_id, voter, choice::text, reason, stake_amount, stake_tx, created_at
		FROM votes WHERE dispute_id = $1
		ORDER BY created_at ASC, id ASC
	`, disputeID)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: load votes: %w", err)
	}
	votes := make([]Vote, 0, 8)
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ID, &v.DisputeID, &v.Voter, &v.Choice, &v.Reason, &v.StakeAmount, &v.StakeTx, &v.CreatedAt); err != nil {
			rows.Close()
			return Record{}, fmt.Errorf("dispute: scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("dispute: iterate votes: %w", err)
	}

	var tally Tally
	for _, v := range votes {
		if v.Choice == ChoiceTenant {
			tally.Tenant++
		} else {
			tally.Landlord++
		}
	}
	winner, ok := tally.Winner()
	if !ok {
		return Record{}, fmt.Errorf("%w: %d-%d", ErrTieUnresolved, tally.Tenant, tally.Landlord)
	}

	updated, err := scanDispute(tx.QueryRow(ctx, `
		UPDATE disputes
		SET winner = $2::vote_choice, resolved_at = NOW()
		WHERE id = $1
		RETURNING `+disputeColumns, disputeID, string(winner)))
	if err != nil {
		return Record{}, fmt.Errorf("dispute: mark resolved: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE contracts SET status = 'resolved', updated_at = NOW() WHERE id = $1
	`, rec.ContractID); err != nil {
		return Record{}, fmt.Errorf("dispute: transition contract: %w", err)
	}

	if err := contract.AppendEvent(ctx, tx, rec.ContractID, contract.EventDisputeResolved, "", map[string]any{
		"dispute_id":     disputeID,
		"winner":         string(winner),
		"tenant_votes":   tally.Tenant,
		"landlord_votes": tally.Landlord,
	}); err != nil {
		return Record{}, err
	}

	commands := buildSettlement(c, winner, votes)
	if err := contract.EnqueueOutbox(ctx, tx, contract.TopicDisputeResolved, map[string]any{
		"contract_id": rec.ContractID,
		"dispute_id":  disputeID,
		"winner":      string(winner),
		"commands":    commands,
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit resolution: %w", err)
	}
	return updated, nil
}

// ExtendDeadline pushes the voting deadline out, used when the tally is
// tied at expiry. The extension is recorded on the contract event log.
func (s *Service) ExtendDeadline(ctx context.Context, disputeID string, by time.Duration) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, _, err := lockDispute(ctx, tx, disputeID)
	if err != nil {
		return Record{}, err
	}
	if rec.ResolvedAt != nil {
		return Record{}, ErrAlreadyResolved
	}

	updated, err := scanDispute(tx.QueryRow(ctx, `
		UPDATE disputes
		SET appeal_deadline = appeal_deadline + make_interval(secs => $2)
		WHERE id = $1
		RETURNING `+disputeColumns, disputeID, by.Seconds()))
	if err != nil {
		return Record{}, fmt.Errorf("dispute: extend deadline: %w", err)
	}

	if err := contract.AppendEvent(ctx, tx, rec.ContractID, contract.EventDisputeExtended, "", map[string]any{
		"dispute_id":   disputeID,
		"new_deadline": updated.AppealDeadline.UTC(),
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit extension: %w", err)
	}
	return updated, nil
}
