package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"leaseflow/contract"
)

// Sweeper periodically resolves disputes whose voting deadline has passed,
// so resolution does not depend on a user action arriving. A tied tally at
// the deadline extends voting instead of picking a side.
type Sweeper struct {
	pool     *pgxpool.Pool
	svc      *Service
	log      *zap.Logger
	interval time.Duration
}

func NewSweeper(pool *pgxpool.Pool, svc *Service, log *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{pool: pool, svc: svc, log: log, interval: interval}
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("dispute sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id FROM disputes d
		JOIN contracts c ON c.id = d.contract_id
		WHERE c.status = 'dispute'
		  AND d.resolved_at IS NULL
		  AND d.appeal_deadline < NOW()
		ORDER BY d.appeal_deadline ASC
		LIMIT 50
	`)
	if err != nil {
		return fmt.Errorf("dispute: sweep query: %w", err)
	}
	ids := make([]string, 0, 50)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("dispute: sweep scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("dispute: sweep iterate: %w", err)
	}

	for _, id := range ids {
		rec, err := s.svc.Resolve(ctx, id)
		switch {
		case err == nil:
			s.log.Info("dispute auto-resolved",
				zap.String("dispute_id", id),
				zap.String("winner", string(*rec.Winner)))
		case errors.Is(err, ErrTieUnresolved):
			if _, err := s.svc.ExtendDeadline(ctx, id, contract.TieExtension); err != nil && !errors.Is(err, ErrAlreadyResolved) {
				s.log.Warn("extend tied dispute failed", zap.String("dispute_id", id), zap.Error(err))
				continue
			}
			s.log.Info("tied dispute extended", zap.String("dispute_id", id))
		case errors.Is(err, ErrAlreadyResolved):
			// lost the race to a concurrent resolver
		default:
			s.log.Warn("auto-resolve failed", zap.String("dispute_id", id), zap.Error(err))
		}
	}
	return nil
}
