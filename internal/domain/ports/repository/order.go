package repository

import (
	"context"
	"time"

	"restaurant-storefront/internal/domain/model"
)

// -----------------------------
// Orders
// -----------------------------

type OrderRepository interface {
	// Create inserts a new order; a duplicate transaction id returns domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, o *model.Order) error
	// FindByTransactionID locks the row when tx is a transaction.
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) (*model.Order, error)
	// UpdateStatus persists status, gateway ids and paid timestamp of o.
	UpdateStatus(ctx context.Context, tx Tx, o *model.Order) error
	// MarkPendingIfCreated moves created -> pending and reports whether a row changed.
	MarkPendingIfCreated(ctx context.Context, tx Tx, transactionID string) (bool, error)
	SetLastError(ctx context.Context, tx Tx, transactionID, reason string) error
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Order, error)
	CountPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time) (int, error)
}

// -----------------------------
// Callback log
// -----------------------------

type CallbackLogRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.CallbackRecord) error
	ListByTransactionID(ctx context.Context, tx Tx, transactionID string) ([]*model.CallbackRecord, error)
}

// -----------------------------
// Outbox
// -----------------------------

type OutboxRepository interface {
	Enqueue(ctx context.Context, tx Tx, ev *model.OrderEvent) error
	// ListDue returns unpublished events whose next attempt is due, oldest first.
	ListDue(ctx context.Context, tx Tx, now time.Time, maxAttempts, limit int) ([]*model.OrderEvent, error)
	MarkPublished(ctx context.Context, tx Tx, id string, at time.Time) error
	MarkFailed(ctx context.Context, tx Tx, id string, reason string, nextAttemptAt time.Time) error
}
