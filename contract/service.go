package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectColumns = `id, title, landlord_address, tenant_address, deposit_amount, currency,
       expires_at, terms, escrow_address, status::text, landlord_decision::text,
       appeal_window_start, created_at, updated_at`

// Service handles contract creation and reads.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// CreateParams carries the fields supplied by the landlord when drafting a
// new escrow contract.
type CreateParams struct {
	Title           string
	LandlordAddress string
	TenantAddress   string
	DepositAmount   int64
	Currency        string
	ExpiresAt       time.Time
	Terms           string
	EscrowAddress   string
}

// Create inserts a new contract in active status and records the creation
// event in the same transaction.
func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	if strings.TrimSpace(params.Title) == "" {
		return Record{}, fmt.Errorf("contract: title required")
	}
	if params.LandlordAddress == "" || params.TenantAddress == "" {
		return Record{}, fmt.Errorf("contract: landlord and tenant addresses required")
	}
	if params.LandlordAddress == params.TenantAddress {
		return Record{}, fmt.Errorf("contract: landlord and tenant must differ")
	}
	if params.DepositAmount <= 0 {
		return Record{}, fmt.Errorf("contract: deposit amount must be positive")
	}
	if params.Currency == "" {
		return Record{}, fmt.Errorf("contract: currency required")
	}
	if !params.ExpiresAt.After(time.Now()) {
		return Record{}, fmt.Errorf("contract: expiry must be in the future")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.NewString()
	insertSQL := `
        INSERT INTO contracts (id, title, landlord_address, tenant_address, deposit_amount,
                               currency, expires_at, terms, escrow_address, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
        RETURNING ` + selectColumns

	rec, err := scanRecord(tx.QueryRow(ctx, insertSQL,
		id,
		params.Title,
		params.LandlordAddress,
		params.TenantAddress,
		params.DepositAmount,
		params.Currency,
		params.ExpiresAt,
		params.Terms,
		params.EscrowAddress,
	))
	if err != nil {
		return Record{}, fmt.Errorf("contract: insert: %w", err)
	}

	payload := map[string]any{
		"title":          rec.Title,
		"deposit_amount": rec.DepositAmount,
		"currency":       rec.Currency,
		"expires_at":     rec.ExpiresAt.UTC(),
	}
	if err := AppendEvent(ctx, tx, rec.ID, EventContractCreated, params.LandlordAddress, payload); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("contract: commit: %w", err)
	}
	return rec, nil
}

// Get fetches a contract by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + selectColumns + ` FROM contracts WHERE id = $1`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("contract: get: %w", err)
	}
	return rec, nil
}

// ListFilters narrows and pages the contract listing.
type ListFilters struct {
	Status   Status
	Page     int
	PageSize int
}

// List returns contract summaries, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Summary, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	query := `
        SELECT id, title, deposit_amount, currency, status::text, expires_at, created_at
        FROM contracts
    `
	countQuery := `SELECT COUNT(*) FROM contracts`
	args := []any{}
	if filters.Status != "" {
		query += ` WHERE status = $1::contract_status`
		countQuery += ` WHERE status = $1::contract_status`
		args = append(args, string(filters.Status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	pageArgs := append(append([]any{}, args...), filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := s.pool.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("contract: list: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.DepositAmount, &sum.Currency, &sum.Status, &sum.ExpiresAt, &sum.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("contract: scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("contract: iterate: %w", err)
	}

	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("contract: count: %w", err)
	}
	return summaries, total, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec      Record
		decision *string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.LandlordAddress,
		&rec.TenantAddress,
		&rec.DepositAmount,
		&rec.Currency,
		&rec.ExpiresAt,
		&rec.Terms,
		&rec.EscrowAddress,
		&rec.Status,
		&decision,
		&rec.AppealWindowStart,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	if decision != nil {
		d := Decision(*decision)
		rec.LandlordDecision = &d
	}
	return rec, nil
}
