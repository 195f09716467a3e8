package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leaseflow/contract"
)

// FileAppeal contests a withholding decision. It locks the contract row,
// re-checks the appeal preconditions under the lock, creates the dispute,
// and moves the contract from expired to dispute. One transaction; a second
// filer loses the race on the unique contract_id constraint.
func (s *Service) FileAppeal(ctx context.Context, contractID, appellant string) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status      string
		landlord    string
		tenant      string
		decision    *string
		windowStart *time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT status::text, landlord_address, tenant_address, landlord_decision::text, appeal_window_start
		FROM contracts WHERE id = $1
		FOR UPDATE
	`, contractID).Scan(&status, &landlord, &tenant, &decision, &windowStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, contract.ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: load contract: %w", err)
	}

	if appellant != tenant {
		return Record{}, fmt.Errorf("%w: only the tenant may appeal", ErrNotEligible)
	}
	if contract.Status(status) != contract.StatusExpired || decision == nil || contract.Decision(*decision) != contract.DecisionWithheld {
		return Record{}, fmt.Errorf("%w: %s -> %s", contract.ErrInvalidTransition, status, contract.StatusDispute)
	}
	if windowStart == nil {
		return Record{}, fmt.Errorf("%w: appeal window never opened", contract.ErrInvalidTransition)
	}

	now := time.Now()
	if !now.Before(contract.AppealDeadlineFor(*windowStart)) {
		return Record{}, fmt.Errorf("%w: appeal window closed at %s", ErrDeadlinePassed,
			contract.AppealDeadlineFor(*windowStart).UTC().Format(time.RFC3339))
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM disputes WHERE contract_id = $1)`, contractID).Scan(&exists); err != nil {
		return Record{}, fmt.Errorf("dispute: check existing: %w", err)
	}
	if exists {
		return Record{}, fmt.Errorf("%w: appeal already filed", contract.ErrInvalidTransition)
	}

	deadline := now.Add(contract.AppealWindow)
	rec, err := scanDispute(tx.QueryRow(ctx, `
		INSERT INTO disputes (id, contract_id, appealed_by, appeal_opened_at, appeal_deadline)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+disputeColumns,
		uuid.NewString(), contractID, appellant, now, deadline))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, fmt.Errorf("%w: appeal already filed", contract.ErrInvalidTransition)
		}
		return Record{}, fmt.Errorf("dispute: insert: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE contracts SET status = 'dispute', updated_at = NOW() WHERE id = $1
	`, contractID); err != nil {
		return Record{}, fmt.Errorf("dispute: transition contract: %w", err)
	}

	if err := contract.AppendEvent(ctx, tx, contractID, contract.EventAppealFiled, appellant, map[string]any{
		"dispute_id":      rec.ID,
		"appeal_deadline": deadline.UTC(),
	}); err != nil {
		return Record{}, err
	}
	if err := contract.EnqueueOutbox(ctx, tx, contract.TopicDisputeOpened, map[string]any{
		"contract_id": contractID,
		"dispute_id":  rec.ID,
		"appealed_by": appellant,
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit appeal: %w", err)
	}
	return rec, nil
}
