//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Repositories
// =============================

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order

	CreateFunc               func(ctx context.Context, tx repository.Tx, o *model.Order) error
	UpdateStatusFunc         func(ctx context.Context, tx repository.Tx, o *model.Order) error
	MarkPendingIfCreatedFunc func(ctx context.Context, tx repository.Tx, transactionID string) (bool, error)
	SetLastErrorFunc         func(ctx context.Context, tx repository.Tx, transactionID, reason string) error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *MockOrderRepo) put(o *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.TransactionID] = &cp
}

func (m *MockOrderRepo) get(id string) *model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (m *MockOrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.TransactionID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *o
	m.orders[o.TransactionID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Order, error) {
	if o := m.get(transactionID); o != nil {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, o)
	}
	if m.get(o.TransactionID) == nil {
		return domain.ErrNotFound
	}
	m.put(o)
	return nil
}

func (m *MockOrderRepo) MarkPendingIfCreated(ctx context.Context, tx repository.Tx, transactionID string) (bool, error) {
	if m.MarkPendingIfCreatedFunc != nil {
		return m.MarkPendingIfCreatedFunc(ctx, tx, transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[transactionID]
	if !ok || o.Status != model.OrderStatusCreated {
		return false, nil
	}
	o.Status = model.OrderStatusPending
	return true, nil
}

func (m *MockOrderRepo) SetLastError(ctx context.Context, tx repository.Tx, transactionID, reason string) error {
	if m.SetLastErrorFunc != nil {
		return m.SetLastErrorFunc(ctx, tx, transactionID, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[transactionID]; ok {
		o.LastError = reason
	}
	return nil
}

func (m *MockOrderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusPending && o.UpdatedAt.Before(cutoff) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOrderRepo) CountPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	list, err := m.ListPendingOlderThan(ctx, tx, cutoff, 1<<30)
	return len(list), err
}

// ---- Mock CallbackLogRepository ----

type MockCallbackLogRepo struct {
	mu      sync.Mutex
	Records []*model.CallbackRecord

	SaveFunc func(ctx context.Context, tx repository.Tx, rec *model.CallbackRecord) error
}

var _ repository.CallbackLogRepository = (*MockCallbackLogRepo)(nil)

func (m *MockCallbackLogRepo) Save(ctx context.Context, tx repository.Tx, rec *model.CallbackRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockCallbackLogRepo) ListByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) ([]*model.CallbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CallbackRecord
	for _, r := range m.Records {
		if r.TransactionID == transactionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockCallbackLogRepo) results() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Records))
	for i, r := range m.Records {
		out[i] = r.Result
	}
	return out
}

// ---- Mock OutboxRepository ----

type MockOutboxRepo struct {
	mu     sync.Mutex
	Events map[string]*model.OrderEvent
	order  []string

	EnqueueFunc func(ctx context.Context, tx repository.Tx, ev *model.OrderEvent) error
}

var _ repository.OutboxRepository = (*MockOutboxRepo)(nil)

func NewMockOutboxRepo() *MockOutboxRepo {
	return &MockOutboxRepo{Events: make(map[string]*model.OrderEvent)}
}

func (m *MockOutboxRepo) Enqueue(ctx context.Context, tx repository.Tx, ev *model.OrderEvent) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, tx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.Events[ev.ID] = &cp
	m.order = append(m.order, ev.ID)
	return nil
}

func (m *MockOutboxRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, maxAttempts, limit int) ([]*model.OrderEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OrderEvent
	for _, id := range m.order {
		ev := m.Events[id]
		if ev.PublishedAt == nil && ev.Attempts < maxAttempts && !ev.NextAttemptAt.After(now) {
			cp := *ev
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepo) MarkPublished(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.Events[id]
	if !ok {
		return domain.ErrNotFound
	}
	ev.PublishedAt = &at
	return nil
}

func (m *MockOutboxRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, reason string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.Events[id]
	if !ok {
		return domain.ErrNotFound
	}
	ev.Attempts++
	ev.LastError = &reason
	ev.NextAttemptAt = next
	return nil
}

func (m *MockOutboxRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu    sync.Mutex
	Calls []model.PaymentIntent

	InitiatePaymentFunc func(ctx context.Context, intent model.PaymentIntent) (model.InitiateResult, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) InitiatePayment(ctx context.Context, intent model.PaymentIntent) (model.InitiateResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, intent)
	m.mu.Unlock()
	if m.InitiatePaymentFunc != nil {
		return m.InitiatePaymentFunc(ctx, intent)
	}
	return model.InitiateResult{RedirectURL: "https://pay.test/" + intent.TransactionID}, nil
}

func (m *MockPaymentGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// ---- Mock CallbackVerifier ----

type MockVerifier struct {
	VerifyFunc func(cb model.GatewayCallback) (model.VerifiedCallback, error)
}

var _ adapter.CallbackVerifier = (*MockVerifier)(nil)

func (m *MockVerifier) Verify(cb model.GatewayCallback) (model.VerifiedCallback, error) {
	return m.VerifyFunc(cb)
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// ---- Mock SeenCache ----

type MockSeenCache struct {
	mu   sync.Mutex
	keys map[string]bool
	Err  error
}

func NewMockSeenCache() *MockSeenCache { return &MockSeenCache{keys: map[string]bool{}} }

func (m *MockSeenCache) Seen(ctx context.Context, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *MockSeenCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

// ---- Mock OrderNotifier ----

type MockNotifier struct {
	mu       sync.Mutex
	NameVal  string
	Received []*model.OrderEvent

	NotifyFunc func(ctx context.Context, ev *model.OrderEvent) error
}

var _ adapter.OrderNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) Name() string { return m.NameVal }

func (m *MockNotifier) NotifyOrderEvent(ctx context.Context, ev *model.OrderEvent) error {
	m.mu.Lock()
	m.Received = append(m.Received, ev)
	m.mu.Unlock()
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, ev)
	}
	return nil
}
