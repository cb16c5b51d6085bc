//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/infra/worker"
	"restaurant-storefront/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- Mocks ---

type mockNotificationUC struct {
	mu        sync.Mutex
	events    []*model.OrderEvent
	err       error
	delivered []string
}

func (m *mockNotificationUC) DueEvents(ctx context.Context, limit int) ([]*model.OrderEvent, error) {
	return m.events, m.err
}

func (m *mockNotificationUC) Deliver(ctx context.Context, ev *model.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, ev.ID)
	return nil
}

type inlineSubmitter struct{ full bool }

func (s inlineSubmitter) Submit(task worker.Task) error {
	if s.full {
		return worker.ErrQueueFull
	}
	go func() { _ = task(context.Background()) }()
	return nil
}

type mockLocker struct {
	lockErr  error
	unlocked bool
}

func (l *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.lockErr != nil {
		return "", l.lockErr
	}
	return "token", nil
}

func (l *mockLocker) Unlock(ctx context.Context, key, token string) error {
	l.unlocked = true
	return nil
}

type mockOrderUC struct {
	stale []*model.Order
	count int
	err   error
}

func (m *mockOrderUC) Get(ctx context.Context, transactionID string) (*usecase.OrderView, error) {
	return nil, domain.ErrNotFound
}

func (m *mockOrderUC) StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Order, int, error) {
	return m.stale, m.count, m.err
}

// --- Tests ---

func TestOutboxDispatcher_Tick(t *testing.T) {
	events := []*model.OrderEvent{{ID: "e1"}, {ID: "e2"}}

	t.Run("should deliver due events and release the lock", func(t *testing.T) {
		uc := &mockNotificationUC{events: events}
		locker := &mockLocker{}
		d := NewOutboxDispatcher(time.Second, 10, uc, inlineSubmitter{}, locker, "lock:test", newTestLogger())

		n := d.Tick(context.Background())

		assert.Equal(t, 2, n)
		assert.ElementsMatch(t, []string{"e1", "e2"}, uc.delivered)
		assert.True(t, locker.unlocked)
	})

	t.Run("should skip when another instance holds the lock", func(t *testing.T) {
		uc := &mockNotificationUC{events: events}
		d := NewOutboxDispatcher(time.Second, 10, uc, inlineSubmitter{}, &mockLocker{lockErr: domain.ErrLockNotAcquired}, "lock:test", newTestLogger())

		assert.Equal(t, 0, d.Tick(context.Background()))
		assert.Empty(t, uc.delivered)
	})

	t.Run("should dispatch without the lock when the lock backend fails", func(t *testing.T) {
		uc := &mockNotificationUC{events: events}
		d := NewOutboxDispatcher(time.Second, 10, uc, inlineSubmitter{}, &mockLocker{lockErr: errors.New("redis down")}, "lock:test", newTestLogger())

		assert.Equal(t, 2, d.Tick(context.Background()))
	})

	t.Run("should leave events for the next tick when the pool is full", func(t *testing.T) {
		uc := &mockNotificationUC{events: events}
		d := NewOutboxDispatcher(time.Second, 10, uc, inlineSubmitter{full: true}, nil, "", newTestLogger())

		assert.Equal(t, 0, d.Tick(context.Background()))
		assert.Empty(t, uc.delivered)
	})

	t.Run("should survive listing errors", func(t *testing.T) {
		uc := &mockNotificationUC{err: domain.ErrOperationFailed}
		d := NewOutboxDispatcher(time.Second, 10, uc, inlineSubmitter{}, nil, "", newTestLogger())

		assert.Equal(t, 0, d.Tick(context.Background()))
	})
}

func TestPendingWatcher_Tick(t *testing.T) {
	uc := &mockOrderUC{
		stale: []*model.Order{{TransactionID: "ORDER_1", CreatedAt: time.Now().Add(-time.Hour)}},
		count: 3,
	}
	w := NewPendingWatcher(uc, nil, time.Minute, 15*time.Minute, newTestLogger())
	assert.Equal(t, 3, w.Tick(context.Background()))

	uc.err = domain.ErrOperationFailed
	assert.Equal(t, -1, w.Tick(context.Background()))
}

var _ usecase.OrderUseCase = (*mockOrderUC)(nil)
var _ usecase.NotificationUseCase = (*mockNotificationUC)(nil)
