package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"kitchen-sync/internal/microservices/board/models"
)

type JournalRepoInterface interface {
	EnsureSchema(ctx context.Context) error
	AppendEvent(ctx context.Context, e models.StatusEvent) error
	Timeline(ctx context.Context, orderID int64, limit, offset int) ([]models.StatusEvent, error)
}

// JournalRepo is the append-only audit trail of settled mutations.
type JournalRepo struct {
	pool *pgxpool.Pool
}

func NewJournalRepo(pool *pgxpool.Pool) *JournalRepo { return &JournalRepo{pool: pool} }

func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS order_status_journal (
  id          BIGSERIAL PRIMARY KEY,
  mutation_id UUID        NOT NULL UNIQUE,
  order_id    BIGINT      NOT NULL,
  mesa        TEXT        NOT NULL DEFAULT '',
  old_status  TEXT        NOT NULL,
  new_status  TEXT        NOT NULL,
  outcome     TEXT        NOT NULL,
  error       TEXT        NOT NULL DEFAULT '',
  changed_by  TEXT        NOT NULL DEFAULT '',
  occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS order_status_journal_order_idx ON order_status_journal (order_id, occurred_at);
`)
	if err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (r *JournalRepo) AppendEvent(ctx context.Context, e models.StatusEvent) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO order_status_journal
  (mutation_id, order_id, mesa, old_status, new_status, outcome, error, changed_by, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (mutation_id) DO NOTHING
`, e.MutationID, e.OrderID, e.Table, string(e.OldStatus), string(e.NewStatus), string(e.Outcome), e.Error, e.ChangedBy, e.Timestamp)
	if err != nil {
		return fmt.Errorf("append journal event %s: %w", e.MutationID, err)
	}
	return nil
}

// Publish lets the journal act as an event sink.
func (r *JournalRepo) Publish(ctx context.Context, e models.StatusEvent) error {
	return r.AppendEvent(ctx, e)
}

func (r *JournalRepo) Timeline(ctx context.Context, orderID int64, limit, offset int) ([]models.StatusEvent, error) {
	rows, err := r.pool.Query(ctx, `
SELECT mutation_id::text, order_id, mesa, old_status, new_status, outcome, error, changed_by, occurred_at
FROM order_status_journal WHERE order_id=$1
ORDER BY occurred_at ASC
LIMIT $2 OFFSET $3
`, orderID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.StatusEvent, 0)
	for rows.Next() {
		var (
			e                     models.StatusEvent
			oldSt, newSt, outcome string
		)
		if err := rows.Scan(&e.MutationID, &e.OrderID, &e.Table, &oldSt, &newSt, &outcome, &e.Error, &e.ChangedBy, &e.Timestamp); err != nil {
			return nil, err
		}
		e.OldStatus = models.Status(oldSt)
		e.NewStatus = models.Status(newSt)
		e.Outcome = models.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}
