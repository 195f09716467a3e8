package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"leaseflow/metrics"
)

// Message is one pending outbox row handed to the dispatcher.
type Message struct {
	ID       string
	Topic    string
	Payload  json.RawMessage
	Attempts int
}

// Dispatcher delivers a message to the settlement layer. A returned error
// leaves the message pending for retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, msg Message) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) error { return f(ctx, msg) }

const maxAttempts = 10

// Worker drains the outbox table. Each pass claims a batch of pending rows
// with SKIP LOCKED so multiple workers never double-deliver, dispatches them,
// and marks each processed, retried, or dead in the claiming transaction.
type Worker struct {
	pool       *pgxpool.Pool
	dispatcher Dispatcher
	log        *zap.Logger
	met        *metrics.Metrics
	interval   time.Duration
}

func NewWorker(pool *pgxpool.Pool, dispatcher Dispatcher, log *zap.Logger, met *metrics.Metrics, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{pool: pool, dispatcher: dispatcher, log: log, met: met, interval: interval}
}

// Run loops until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// Drain runs claim-and-dispatch passes until no pending rows remain.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		n, err := w.drainBatch(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return w.updatePendingGauge(ctx)
		}
	}
}

func (w *Worker) drainBatch(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload, attempts FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 10
	`)
	if err != nil {
		return 0, fmt.Errorf("outbox: claim batch: %w", err)
	}
	msgs := make([]Message, 0, 10)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("outbox: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("outbox: iterate batch: %w", err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	for _, m := range msgs {
		if err := w.dispatcher.Dispatch(ctx, m); err != nil {
			status := "pending"
			if m.Attempts+1 >= maxAttempts {
				status = "dead"
				w.log.Error("outbox message dead-lettered",
					zap.String("outbox_id", m.ID),
					zap.String("topic", m.Topic),
					zap.Error(err))
			} else {
				w.log.Warn("outbox dispatch failed",
					zap.String("outbox_id", m.ID),
					zap.String("topic", m.Topic),
					zap.Int("attempts", m.Attempts+1),
					zap.Error(err))
			}
			if _, err := tx.Exec(ctx, `
				UPDATE outbox SET status = $2, attempts = attempts + 1, last_attempt = NOW() WHERE id = $1
			`, m.ID, status); err != nil {
				return 0, fmt.Errorf("outbox: record failure: %w", err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET status = 'processed', attempts = attempts + 1, last_attempt = NOW() WHERE id = $1
		`, m.ID); err != nil {
			return 0, fmt.Errorf("outbox: mark processed: %w", err)
		}
		if w.met != nil {
			w.met.OutboxDispatched.WithLabelValues(m.Topic).Inc()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("outbox: commit batch: %w", err)
	}
	return len(msgs), nil
}

func (w *Worker) updatePendingGauge(ctx context.Context) error {
	if w.met == nil {
		return nil
	}
	var pending int64
	if err := w.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status = 'pending'`).Scan(&pending); err != nil {
		return fmt.Errorf("outbox: count pending: %w", err)
	}
	w.met.OutboxPending.Set(float64(pending))
	return nil
}
