package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"restaurant-storefront/internal/infra/metrics"
	"restaurant-storefront/internal/usecase"
)

// PoolStatter is satisfied by *pgxpool.Pool.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// PendingWatcher reports orders that never received a gateway callback.
// Orders are only settled by verified webhooks, so it alerts and exports a gauge without changing state.
type PendingWatcher struct {
	interval   time.Duration
	staleAfter time.Duration
	orderUC    usecase.OrderUseCase
	pool       PoolStatter
	log        *zerolog.Logger
}

func NewPendingWatcher(orderUC usecase.OrderUseCase, pool PoolStatter, interval, staleAfter time.Duration, logger *zerolog.Logger) *PendingWatcher {
	compLog := logger.With().Str("component", "PendingWatcher").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &PendingWatcher{interval: interval, staleAfter: staleAfter, orderUC: orderUC, pool: pool, log: &compLog}
}

func (w *PendingWatcher) Run(ctx context.Context) error {
	w.log.Info().Dur("stale_after", w.staleAfter).Msg("Starting pending order watcher")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pending order watcher")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick returns the number of stale pending orders found, or -1 on failure.
func (w *PendingWatcher) Tick(ctx context.Context) int {
	if w.pool != nil {
		s := w.pool.Stat()
		metrics.SetDBPoolStats(metrics.PoolSnapshot{
			Max:           s.MaxConns(),
			Total:         s.TotalConns(),
			Idle:          s.IdleConns(),
			InUse:         s.AcquiredConns(),
			EmptyAcquires: s.EmptyAcquireCount(),
			AcquireWait:   s.AcquireDuration(),
		})
	}

	orders, n, err := w.orderUC.StalePending(ctx, w.staleAfter, 20)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale pending orders failed")
		return -1
	}
	metrics.SetStalePendingOrders(n)
	for _, o := range orders {
		w.log.Warn().
			Str("transaction_id", o.TransactionID).
			Time("created_at", o.CreatedAt).
			Str("last_error", o.LastError).
			Msg("order still awaiting gateway callback")
	}
	return n
}
