package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LifecycleService executes deposit and landlord-decision transitions. Each
// operation is a single transaction: the contract row is locked, the
// transition validated, and the status update, audit event, and outbox
// message are committed together or not at all.
type LifecycleService struct {
	pool *pgxpool.Pool
}

func NewLifecycleService(pool *pgxpool.Pool) *LifecycleService {
	return &LifecycleService{pool: pool}
}

// Deposit records the tenant's escrow payment and moves the contract from
// active to deposited.
func (s *LifecycleService) Deposit(ctx context.Context, contractID, payer string, amount int64) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := lockRecord(ctx, tx, contractID)
	if err != nil {
		return Record{}, err
	}

	if payer != rec.TenantAddress {
		return Record{}, fmt.Errorf("%w: only the tenant may deposit", ErrNotParticipant)
	}
	if err := ValidateTransition(rec.Status, StatusDeposited); err != nil {
		return Record{}, err
	}
	if amount != rec.DepositAmount {
		return Record{}, fmt.Errorf("%w: got %d, want %d", ErrWrongAmount, amount, rec.DepositAmount)
	}
	if time.Now().After(rec.ExpiresAt) {
		return Record{}, fmt.Errorf("%w: expired at %s", ErrContractExpired, rec.ExpiresAt.UTC().Format(time.RFC3339))
	}

	updated, err := updateStatus(ctx, tx, contractID, StatusDeposited)
	if err != nil {
		return Record{}, err
	}

	if err := AppendEvent(ctx, tx, contractID, EventDepositRecorded, payer, map[string]any{
		"amount":   amount,
		"currency": rec.Currency,
	}); err != nil {
		return Record{}, err
	}
	if err := EnqueueOutbox(ctx, tx, TopicContractDeposited, map[string]any{
		"contract_id": contractID,
		"payer":       payer,
		"amount":      amount,
		"escrow":      rec.EscrowAddress,
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("contract: commit deposit: %w", err)
	}
	return updated, nil
}

// RecordDecision applies the landlord's release/withhold call at lease end.
// A release completes the contract and queues the deposit return; a withhold
// expires it and opens the tenant's appeal window.
func (s *LifecycleService) RecordDecision(ctx context.Context, contractID, actor string, decision Decision) (Record, error) {
	if decision != DecisionReleased && decision != DecisionWithheld {
		return Record{}, fmt.Errorf("contract: unknown decision %q", decision)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := lockRecord(ctx, tx, contractID)
	if err != nil {
		return Record{}, err
	}

	if actor != rec.LandlordAddress {
		return Record{}, fmt.Errorf("%w: only the landlord may decide", ErrNotParticipant)
	}

	next := StatusCompleted
	if decision == DecisionWithheld {
		next = StatusExpired
	}
	if err := ValidateTransition(rec.Status, next); err != nil {
		return Record{}, err
	}

	var updated Record
	if decision == DecisionReleased {
		updated, err = scanRecord(tx.QueryRow(ctx, `
            UPDATE contracts
            SET status = 'completed', landlord_decision = 'released', updated_at = NOW()
            WHERE id = $1
            RETURNING `+selectColumns, contractID))
	} else {
		updated, err = scanRecord(tx.QueryRow(ctx, `
            UPDATE contracts
            SET status = 'expired', landlord_decision = 'withheld',
                appeal_window_start = NOW(), updated_at = NOW()
            WHERE id = $1
            RETURNING `+selectColumns, contractID))
	}
	if err != nil {
		return Record{}, fmt.Errorf("contract: record decision: %w", err)
	}

	if err := AppendEvent(ctx, tx, contractID, EventDecisionRecorded, actor, map[string]any{
		"decision": string(decision),
	}); err != nil {
		return Record{}, err
	}
	if decision == DecisionReleased {
		if err := EnqueueOutbox(ctx, tx, TopicContractCompleted, map[string]any{
			"contract_id": contractID,
			"commands": []map[string]any{{
				"kind":      "deposit_return",
				"recipient": rec.TenantAddress,
				"amount":    rec.DepositAmount,
			}},
		}); err != nil {
			return Record{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("contract: commit decision: %w", err)
	}
	return updated, nil
}

// lockRecord fetches the contract under FOR UPDATE so check-then-write
// sequences are serialized per contract.
func lockRecord(ctx context.Context, tx pgx.Tx, contractID string) (Record, error) {
	rec, err := scanRecord(tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, contractID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("contract: lock record: %w", err)
	}
	return rec, nil
}

func updateStatus(ctx context.Context, tx pgx.Tx, contractID string, next Status) (Record, error) {
	rec, err := scanRecord(tx.QueryRow(ctx, `
        UPDATE contracts
        SET status = $2::contract_status, updated_at = NOW()
        WHERE id = $1
        RETURNING `+selectColumns, contractID, string(next)))
	if err != nil {
		return Record{}, fmt.Errorf("contract: update status: %w", err)
	}
	return rec, nil
}
