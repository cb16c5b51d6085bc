package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

func (r *outboxRepo) Enqueue(ctx context.Context, tx repository.Tx, ev *model.OrderEvent) error {
	const q = `
INSERT INTO order_events (id, transaction_id, kind, payload, attempts, next_attempt_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, ev.ID, ev.TransactionID, ev.Kind, string(ev.Payload), ev.Attempts, ev.NextAttemptAt, ev.CreatedAt)
	return mapWriteErr(err)
}

func (r *outboxRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, maxAttempts, limit int) ([]*model.OrderEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
SELECT id, transaction_id, kind, payload, attempts, next_attempt_at, published_at, last_error, created_at
  FROM order_events
 WHERE published_at IS NULL AND next_attempt_at <= $1 AND attempts < $2
 ORDER BY created_at ASC
 LIMIT $3`
	if isForUpdate(tx) {
		q += " FOR UPDATE SKIP LOCKED"
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", now, maxAttempts, limit)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	defer rows.Close()

	var out []*model.OrderEvent
	for rows.Next() {
		ev := new(model.OrderEvent)
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.Kind, &ev.Payload, &ev.Attempts, &ev.NextAttemptAt,
			&ev.PublishedAt, &ev.LastError, &ev.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ev)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE order_events SET published_at=$2, attempts=attempts+1, last_error=NULL WHERE id=$1 AND published_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, id, at)
	return mapWriteErr(err)
}

func (r *outboxRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, reason string, nextAttemptAt time.Time) error {
	const q = `UPDATE order_events SET attempts=attempts+1, last_error=$2, next_attempt_at=$3 WHERE id=$1 AND published_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, id, reason, nextAttemptAt)
	return mapWriteErr(err)
}
