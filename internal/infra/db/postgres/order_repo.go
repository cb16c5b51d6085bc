package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

// FieldSealer encrypts sensitive columns at rest.
type FieldSealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	sealer FieldSealer
}

// NewOrderRepo builds the orders store. sealer may be nil, in which case mobile numbers are stored in clear.
func NewOrderRepo(pool *pgxpool.Pool, sealer FieldSealer) *orderRepo {
	return &orderRepo{pool: pool, sealer: sealer}
}

const orderColumns = `id, transaction_id, merchant_id, payer_id, amount, currency, status, instrument, target_app,
  redirect_url, callback_url, mobile_number, items, gateway_transaction_id, gateway_code, last_error,
  created_at, updated_at, paid_at`

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	mobile := o.MobileNumber
	if r.sealer != nil {
		if mobile, err = r.sealer.Seal(mobile); err != nil {
			return fmt.Errorf("seal mobile number: %w", err)
		}
	}
	const q = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19);`

	_, err = execSQL(ctx, r.pool, tx, q,
		o.ID, o.TransactionID, o.MerchantID, o.PayerID, o.Amount, o.Currency, string(o.Status),
		string(o.Instrument.Kind), o.Instrument.TargetApp, o.RedirectURL, o.CallbackURL, mobile,
		string(items), o.GatewayTransactionID, o.GatewayCode, o.LastError, o.CreatedAt, o.UpdatedAt, o.PaidAt)
	return mapWriteErr(err)
}

func (r *orderRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE transaction_id=$1`
	if isForUpdate(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", transactionID)
	if err != nil {
		return nil, err
	}
	o, err := r.scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
UPDATE orders
   SET status=$2, gateway_transaction_id=$3, gateway_code=$4, paid_at=COALESCE(paid_at, $5), updated_at=$6
 WHERE transaction_id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, o.TransactionID, string(o.Status), o.GatewayTransactionID, o.GatewayCode, o.PaidAt, o.UpdatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepo) MarkPendingIfCreated(ctx context.Context, tx repository.Tx, transactionID string) (bool, error) {
	const q = `UPDATE orders SET status='pending', last_error='', updated_at=NOW() WHERE transaction_id=$1 AND status='created';`
	cmd, err := execSQL(ctx, r.pool, tx, q, transactionID)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *orderRepo) SetLastError(ctx context.Context, tx repository.Tx, transactionID, reason string) error {
	const q = `UPDATE orders SET last_error=$2, updated_at=NOW() WHERE transaction_id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, transactionID, reason)
	return mapWriteErr(err)
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *orderRepo) CountPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM orders WHERE status='pending' AND created_at < $1;`
	row, err := pickRow(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *orderRepo) scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o          model.Order
		status     string
		instrument string
		items      []byte
	)
	if err := row.Scan(&o.ID, &o.TransactionID, &o.MerchantID, &o.PayerID, &o.Amount, &o.Currency, &status,
		&instrument, &o.Instrument.TargetApp, &o.RedirectURL, &o.CallbackURL, &o.MobileNumber, &items,
		&o.GatewayTransactionID, &o.GatewayCode, &o.LastError, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.Instrument.Kind = model.InstrumentKind(instrument)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, err
		}
	}
	if r.sealer != nil {
		mobile, err := r.sealer.Open(o.MobileNumber)
		if err != nil {
			return nil, err
		}
		o.MobileNumber = mobile
	}
	return &o, nil
}
