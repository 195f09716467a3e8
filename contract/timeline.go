package contract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Event types recorded on the per-contract audit log.
const (
	EventContractCreated   = "CONTRACT_CREATED"
	EventDepositRecorded   = "DEPOSIT_RECORDED"
	EventDecisionRecorded  = "DECISION_RECORDED"
	EventAppealFiled       = "APPEAL_FILED"
	EventEvidenceSubmitted = "EVIDENCE_SUBMITTED"
	EventVoteCast          = "VOTE_CAST"
	EventDisputeResolved   = "DISPUTE_RESOLVED"
	EventDisputeExtended   = "DISPUTE_EXTENDED"
)

// Outbox topics consumed by the settlement layer.
const (
	TopicContractDeposited = "contract.deposited"
	TopicContractCompleted = "contract.completed"
	TopicDisputeOpened     = "dispute.opened"
	TopicDisputeResolved   = "dispute.resolved"
)

// AppendEvent writes an audit event for the contract inside the caller's
// transaction. The seq subselect is safe because every writer holds the
// contract row lock before appending.
func AppendEvent(ctx context.Context, tx pgx.Tx, contractID, eventType, actor string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("contract: marshal event payload: %w", err)
	}
	var actorArg any
	if actor != "" {
		actorArg = actor
	}
	const q = `
INSERT INTO contract_events (contract_id, seq, type, actor, payload)
SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4::jsonb
FROM contract_events WHERE contract_id = $1
`
	if _, err := tx.Exec(ctx, q, contractID, eventType, actorArg, body); err != nil {
		return fmt.Errorf("contract: insert event: %w", err)
	}
	return nil
}

// EnqueueOutbox records a message for the settlement layer in the same
// transaction as the state change it describes.
func EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("contract: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("contract: enqueue outbox: %w", err)
	}
	return nil
}
