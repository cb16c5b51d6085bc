package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/infra/worker"
	"restaurant-storefront/internal/usecase"
)

// Submitter is the part of worker.Pool the dispatcher needs.
type Submitter interface {
	Submit(task worker.Task) error
}

// OutboxDispatcher periodically hands due order events to the worker pool.
// When a Locker is set only one instance dispatches per tick.
type OutboxDispatcher struct {
	interval time.Duration
	batch    int
	lockKey  string
	lockTTL  time.Duration
	notifUC  usecase.NotificationUseCase
	pool     Submitter
	locker   adapter.Locker
	log      *zerolog.Logger
}

func NewOutboxDispatcher(interval time.Duration, batch int, notifUC usecase.NotificationUseCase, pool Submitter, locker adapter.Locker, lockKey string, logger *zerolog.Logger) *OutboxDispatcher {
	compLog := logger.With().Str("component", "OutboxDispatcher").Logger()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &OutboxDispatcher{
		interval: interval,
		batch:    batch,
		lockKey:  lockKey,
		lockTTL:  interval * 6,
		notifUC:  notifUC,
		pool:     pool,
		locker:   locker,
		log:      &compLog,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) error {
	d.log.Info().Dur("interval", d.interval).Msg("Starting outbox dispatcher")
	d.Tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("Stopping outbox dispatcher")
			return ctx.Err()
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick dispatches one batch and returns how many events were handed to the pool.
func (d *OutboxDispatcher) Tick(ctx context.Context) int {
	if d.locker != nil {
		token, err := d.locker.TryLock(ctx, d.lockKey, d.lockTTL)
		switch {
		case errors.Is(err, domain.ErrLockNotAcquired):
			d.log.Debug().Msg("another instance holds the outbox lock")
			return 0
		case err != nil:
			// lock backend unavailable; delivery is at-least-once anyway
			d.log.Warn().Err(err).Msg("outbox lock unavailable, dispatching without it")
		default:
			defer func() {
				if err := d.locker.Unlock(context.WithoutCancel(ctx), d.lockKey, token); err != nil {
					d.log.Warn().Err(err).Msg("outbox unlock failed")
				}
			}()
		}
	}

	events, err := d.notifUC.DueEvents(ctx, d.batch)
	if err != nil {
		d.log.Error().Err(err).Msg("list due order events failed")
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	submitted := 0
	for _, ev := range events {
		wg.Add(1)
		err := d.pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			return d.notifUC.Deliver(ctx, ev)
		})
		if err != nil {
			wg.Done()
			d.log.Warn().Err(err).Str("event_id", ev.ID).Msg("worker pool saturated, event left for next tick")
			continue
		}
		submitted++
	}
	// hold the lock until this batch settles so no other instance picks the same rows
	settled := make(chan struct{})
	go func() { wg.Wait(); close(settled) }()
	select {
	case <-settled:
	case <-ctx.Done():
		return submitted
	}
	d.log.Debug().Int("count", submitted).Msg("order events dispatched")
	return submitted
}

