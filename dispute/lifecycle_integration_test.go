package dispute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leaseflow/contract"
)

type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(context.Context, StakeReceipt, string, int64) error { return nil }

// TestDisputeLifecycle_Integration connects to a real PostgreSQL via
// DATABASE_URL and walks a contract from creation through deposit,
// withholding, appeal, voting and resolution.
func TestDisputeLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"contracts", "disputes", "votes", "contract_events", "outbox"} {
		if !tableExists(ctx, t, pool, table) {
			t.Skipf("table %s missing; apply migrations/ against $DATABASE_URL first", table)
		}
	}

	suffix := time.Now().UnixNano()
	landlord := fmt.Sprintf("0x%064d", suffix)
	tenant := fmt.Sprintf("0x%064d", suffix+1)
	jurors := []string{
		fmt.Sprintf("0x%064d", suffix+2),
		fmt.Sprintf("0x%064d", suffix+3),
		fmt.Sprintf("0x%064d", suffix+4),
	}

	contracts := contract.NewService(pool)
	lifecycle := contract.NewLifecycleService(pool)
	disputes := NewService(pool, acceptAllVerifier{})

	created, err := contracts.Create(ctx, contract.CreateParams{
		Title:           "Integration flat",
		LandlordAddress: landlord,
		TenantAddress:   tenant,
		DepositAmount:   1000,
		Currency:        "SUI",
		ExpiresAt:       time.Now().Add(24 * time.Hour),
		EscrowAddress:   fmt.Sprintf("0x%064d", suffix+5),
	})
	if err != nil {
		t.Fatalf("create contract: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		conn, err := pgx.Connect(ctx2, dsn)
		if err != nil {
			return
		}
		defer conn.Close(ctx2)
		// votes and events are append-only; drop the guards for cleanup
		// (requires table ownership, best-effort otherwise).
		conn.Exec(ctx2, `ALTER TABLE votes DISABLE TRIGGER votes_append_only`)
		conn.Exec(ctx2, `ALTER TABLE evidence DISABLE TRIGGER evidence_append_only`)
		conn.Exec(ctx2, `ALTER TABLE contract_events DISABLE TRIGGER contract_events_append_only`)
		conn.Exec(ctx2, `DELETE FROM votes WHERE dispute_id IN (SELECT id FROM disputes WHERE contract_id = $1)`, created.ID)
		conn.Exec(ctx2, `DELETE FROM evidence WHERE dispute_id IN (SELECT id FROM disputes WHERE contract_id = $1)`, created.ID)
		conn.Exec(ctx2, `DELETE FROM contract_events WHERE contract_id = $1`, created.ID)
		conn.Exec(ctx2, `DELETE FROM outbox WHERE payload->>'contract_id' = $1`, created.ID)
		conn.Exec(ctx2, `DELETE FROM disputes WHERE contract_id = $1`, created.ID)
		conn.Exec(ctx2, `DELETE FROM contracts WHERE id = $1`, created.ID)
		conn.Exec(ctx2, `ALTER TABLE votes ENABLE TRIGGER votes_append_only`)
		conn.Exec(ctx2, `ALTER TABLE evidence ENABLE TRIGGER evidence_append_only`)
		conn.Exec(ctx2, `ALTER TABLE contract_events ENABLE TRIGGER contract_events_append_only`)
	})

	// wrong amount must not move the contract
	if _, err := lifecycle.Deposit(ctx, created.ID, tenant, 999); !errors.Is(err, contract.ErrWrongAmount) {
		t.Fatalf("short deposit: expected ErrWrongAmount, got %v", err)
	}
	deposited, err := lifecycle.Deposit(ctx, created.ID, tenant, 1000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if deposited.Status != contract.StatusDeposited {
		t.Fatalf("expected status deposited, got %s", deposited.Status)
	}

	withheld, err := lifecycle.RecordDecision(ctx, created.ID, landlord, contract.DecisionWithheld)
	if err != nil {
		t.Fatalf("record decision: %v", err)
	}
	if withheld.Status != contract.StatusExpired || withheld.AppealWindowStart == nil {
		t.Fatalf("expected expired with appeal window, got %s window=%v", withheld.Status, withheld.AppealWindowStart)
	}

	d, err := disputes.FileAppeal(ctx, created.ID, tenant)
	if err != nil {
		t.Fatalf("file appeal: %v", err)
	}
	if _, err := disputes.FileAppeal(ctx, created.ID, tenant); !errors.Is(err, contract.ErrInvalidTransition) {
		t.Fatalf("second appeal: expected ErrInvalidTransition, got %v", err)
	}

	// landlord may not vote on their own dispute
	_, err = disputes.CastVote(ctx, d.ID, CastVoteParams{
		Voter: landlord, Choice: ChoiceLandlord,
		StakeAmount: contract.RequiredStake,
		Receipt:     StakeReceipt{TxRef: "itest-party"},
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("party vote: expected ErrNotEligible, got %v", err)
	}

	for i, juror := range jurors {
		choice := ChoiceTenant
		if i == 2 {
			choice = ChoiceLandlord
		}
		if _, err := disputes.CastVote(ctx, d.ID, CastVoteParams{
			Voter: juror, Choice: choice,
			StakeAmount: contract.RequiredStake,
			Receipt:     StakeReceipt{TxRef: fmt.Sprintf("itest-%d", i)},
		}); err != nil {
			t.Fatalf("cast vote %d: %v", i, err)
		}
	}

	// second vote from the same address is rejected
	_, err = disputes.CastVote(ctx, d.ID, CastVoteParams{
		Voter: jurors[0], Choice: ChoiceLandlord,
		StakeAmount: contract.RequiredStake,
		Receipt:     StakeReceipt{TxRef: "itest-dup"},
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("duplicate vote: expected ErrNotEligible, got %v", err)
	}

	resolved, err := disputes.Resolve(ctx, d.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Winner == nil || *resolved.Winner != ChoiceTenant {
		t.Fatalf("expected tenant winner, got %v", resolved.Winner)
	}

	final, err := contracts.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("reload contract: %v", err)
	}
	if final.Status != contract.StatusResolved {
		t.Fatalf("expected contract resolved, got %s", final.Status)
	}

	// audit log must cover the whole journey with a gapless sequence
	rows, err := pool.Query(ctx, `SELECT seq, type FROM contract_events WHERE contract_id = $1 ORDER BY seq`, created.ID)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	var types []string
	next := 1
	for rows.Next() {
		var seq int
		var typ string
		if err := rows.Scan(&seq, &typ); err != nil {
			t.Fatalf("scan event: %v", err)
		}
		if seq != next {
			t.Fatalf("event seq gap: got %d, want %d", seq, next)
		}
		next++
		types = append(types, typ)
	}
	rows.Close()
	want := []string{
		"CONTRACT_CREATED", "DEPOSIT_RECORDED", "DECISION_RECORDED",
		"APPEAL_FILED", "VOTE_CAST", "VOTE_CAST", "VOTE_CAST", "DISPUTE_RESOLVED",
	}
	if len(types) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, types[i], want[i])
		}
	}

	// resolution leaves the settlement handoff in the outbox
	var outCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE topic = 'dispute.resolved' AND payload->>'contract_id' = $1`, created.ID).Scan(&outCount); err != nil {
		t.Fatalf("verify outbox: %v", err)
	}
	if outCount != 1 {
		t.Fatalf("expected 1 dispute.resolved outbox message, got %d", outCount)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
