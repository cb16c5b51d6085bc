package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/repository"
)

var _ repository.CallbackLogRepository = (*callbackLogRepo)(nil)

type callbackLogRepo struct{ pool *pgxpool.Pool }

func NewCallbackLogRepo(pool *pgxpool.Pool) *callbackLogRepo {
	return &callbackLogRepo{pool: pool}
}

func (r *callbackLogRepo) Save(ctx context.Context, tx repository.Tx, rec *model.CallbackRecord) error {
	const q = `
INSERT INTO payment_callbacks (id, transaction_id, gateway_transaction_id, code, outcome, result, amount, payload, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	payload := rec.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.TransactionID, rec.GatewayTransactionID, rec.Code,
		string(rec.Outcome), rec.Result, rec.Amount, string(payload), rec.ReceivedAt)
	return mapWriteErr(err)
}

func (r *callbackLogRepo) ListByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) ([]*model.CallbackRecord, error) {
	const q = `
SELECT id, transaction_id, gateway_transaction_id, code, outcome, result, amount, payload, received_at
  FROM payment_callbacks WHERE transaction_id=$1 ORDER BY received_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, transactionID)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	defer rows.Close()

	var out []*model.CallbackRecord
	for rows.Next() {
		var (
			rec     model.CallbackRecord
			outcome string
		)
		if err := rows.Scan(&rec.ID, &rec.TransactionID, &rec.GatewayTransactionID, &rec.Code, &outcome,
			&rec.Result, &rec.Amount, &rec.Payload, &rec.ReceivedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		rec.Outcome = model.Outcome(outcome)
		out = append(out, &rec)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
