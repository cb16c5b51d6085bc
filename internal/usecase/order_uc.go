package usecase

import (
	"context"
	"time"

	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/repository"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// OrderView is an order with its callback history, newest callback last.
type OrderView struct {
	Order     *model.Order
	Callbacks []*model.CallbackRecord
}

type OrderUseCase interface {
	Get(ctx context.Context, transactionID string) (*OrderView, error)
	// StalePending returns up to limit orders pending since before now-olderThan and their total count.
	StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Order, int, error)
}

type orderUC struct {
	orders    repository.OrderRepository
	callbacks repository.CallbackLogRepository
}

func NewOrderUseCase(orders repository.OrderRepository, callbacks repository.CallbackLogRepository) *orderUC {
	return &orderUC{orders: orders, callbacks: callbacks}
}

func (u *orderUC) Get(ctx context.Context, transactionID string) (*OrderView, error) {
	o, err := u.orders.FindByTransactionID(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}
	cbs, err := u.callbacks.ListByTransactionID(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: o, Callbacks: cbs}, nil
}

func (u *orderUC) StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Order, int, error) {
	cutoff := time.Now().Add(-olderThan)
	n, err := u.orders.CountPendingOlderThan(ctx, nil, cutoff)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}
	list, err := u.orders.ListPendingOlderThan(ctx, nil, cutoff, limit)
	if err != nil {
		return nil, 0, err
	}
	return list, n, nil
}
