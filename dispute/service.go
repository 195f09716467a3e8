package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const disputeColumns = `id, contract_id, appealed_by, appeal_opened_at, appeal_deadline,
       winner::text, resolved_at, created_at`

// Service owns the dispute workflow: appeal filing, the evidence ledger,
// stake-gated voting, and resolution. All writes run as single transactions
// serialized on the dispute (or contract) row.
type Service struct {
	pool     *pgxpool.Pool
	verifier ReceiptVerifier
}

func NewService(pool *pgxpool.Pool, verifier ReceiptVerifier) *Service {
	return &Service{pool: pool, verifier: verifier}
}

// Get fetches a dispute by id.
func (s *Service) Get(ctx context.Context, disputeID string) (Record, error) {
	rec, err := scanDispute(s.pool.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, disputeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: get: %w", err)
	}
	return rec, nil
}

// GetByContract fetches the dispute attached to a contract, if any.
func (s *Service) GetByContract(ctx context.Context, contractID string) (Record, error) {
	rec, err := scanDispute(s.pool.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE contract_id = $1`, contractID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: get by contract: %w", err)
	}
	return rec, nil
}

// EvidenceOrder selects the retrieval ordering: newest first for displays,
// insertion order for audit trails.
type EvidenceOrder string

const (
	OrderNewestFirst EvidenceOrder = "newest_first"
	OrderInsertion   EvidenceOrder = "insertion"
)

// ListEvidence returns all evidence for a dispute in the requested order.
func (s *Service) ListEvidence(ctx context.Context, disputeID string, order EvidenceOrder) ([]Evidence, error) {
	query := `
		SELECT id, dispute_id, uploader, blob_id, mime_type, caption, created_at
		FROM evidence
		WHERE dispute_id = $1
	`
	if order == OrderNewestFirst {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}

	rows, err := s.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list evidence: %w", err)
	}
	defer rows.Close()

	out := make([]Evidence, 0, 8)
	for rows.Next() {
		var ev Evidence
		if err := rows.Scan(&ev.ID, &ev.DisputeID, &ev.Uploader, &ev.BlobID, &ev.MimeType, &ev.Caption, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan evidence: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate evidence: %w", err)
	}
	return out, nil
}

// ListVotes returns the recorded votes for a dispute in cast order.
func (s *Service) ListVotes(ctx context.Context, disputeID string) ([]Vote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, dispute_id, voter, choice::text, reason, stake_amount, stake_tx, created_at
		FROM votes
		WHERE dispute_id = $1
		ORDER BY created_at ASC, id ASC
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list votes: %w", err)
	}
	defer rows.Close()

	out := make([]Vote, 0, 8)
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ID, &v.DisputeID, &v.Voter, &v.Choice, &v.Reason, &v.StakeAmount, &v.StakeTx, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan vote: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate votes: %w", err)
	}
	return out, nil
}

// HasVoted reports whether the address already cast a vote on the dispute.
func (s *Service) HasVoted(ctx context.Context, disputeID, voter string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE dispute_id = $1 AND voter = $2)`,
		disputeID, voter).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dispute: has voted: %w", err)
	}
	return exists, nil
}

// CountVotes tallies the dispute's votes per side.
func (s *Service) CountVotes(ctx context.Context, disputeID string) (Tally, error) {
	var t Tally
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE choice = 'tenant'),
		       COUNT(*) FILTER (WHERE choice = 'landlord')
		FROM votes WHERE dispute_id = $1
	`, disputeID).Scan(&t.Tenant, &t.Landlord)
	if err != nil {
		return Tally{}, fmt.Errorf("dispute: tally: %w", err)
	}
	return t, nil
}

func scanDispute(row pgx.Row) (Record, error) {
	var (
		rec    Record
		winner *string
	)
	err := row.Scan(
		&rec.ID,
		&rec.ContractID,
		&rec.AppealedBy,
		&rec.AppealOpenedAt,
		&rec.AppealDeadline,
		&winner,
		&rec.ResolvedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	if winner != nil {
		c := Choice(*winner)
		rec.Winner = &c
	}
	return rec, nil
}

// lockDispute fetches a dispute with its contract under FOR UPDATE of both
// rows, serializing concurrent evidence, vote, and resolution writes.
func lockDispute(ctx context.Context, tx pgx.Tx, disputeID string) (Record, lockedContract, error) {
	var (
		rec      Record
		winner   *string
		c        lockedContract
		decision *string
	)
	err := tx.QueryRow(ctx, `
		SELECT d.id, d.contract_id, d.appealed_by, d.appeal_opened_at, d.appeal_deadline,
		       d.winner::text, d.resolved_at, d.created_at,
		       c.landlord_address, c.tenant_address, c.deposit_amount, c.currency,
		       c.escrow_address, c.status::text, c.landlord_decision::text
		FROM disputes d
		JOIN contracts c ON c.id = d.contract_id
		WHERE d.id = $1
		FOR UPDATE OF d, c
	`, disputeID).Scan(
		&rec.ID, &rec.ContractID, &rec.AppealedBy, &rec.AppealOpenedAt, &rec.AppealDeadline,
		&winner, &rec.ResolvedAt, &rec.CreatedAt,
		&c.LandlordAddress, &c.TenantAddress, &c.DepositAmount, &c.Currency,
		&c.EscrowAddress, &c.Status, &decision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, lockedContract{}, ErrNotFound
		}
		return Record{}, lockedContract{}, fmt.Errorf("dispute: lock: %w", err)
	}
	if winner != nil {
		ch := Choice(*winner)
		rec.Winner = &ch
	}
	return rec, c, nil
}

// lockedContract is the contract projection fetched together with the
// dispute row lock.
type lockedContract struct {
	LandlordAddress string
	TenantAddress   string
	DepositAmount   int64
	Currency        string
	EscrowAddress   string
	Status          string
}

func (c lockedContract) isParty(addr string) bool {
	return addr == c.LandlordAddress || addr == c.TenantAddress
}
