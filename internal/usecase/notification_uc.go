package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/domain/ports/repository"
	"restaurant-storefront/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase drains the order event outbox into the downstream notifiers.
type NotificationUseCase interface {
	DueEvents(ctx context.Context, limit int) ([]*model.OrderEvent, error)
	// Deliver sends ev to every notifier and records the result on the outbox row.
	Deliver(ctx context.Context, ev *model.OrderEvent) error
}

type notificationUC struct {
	outbox      repository.OutboxRepository
	notifiers   []adapter.OrderNotifier
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	log         *zerolog.Logger
}

func NewNotificationUseCase(outbox repository.OutboxRepository, notifiers []adapter.OrderNotifier, maxAttempts int, logger *zerolog.Logger) *notificationUC {
	compLog := logger.With().Str("component", "NotificationUC").Logger()
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &notificationUC{
		outbox:      outbox,
		notifiers:   notifiers,
		maxAttempts: maxAttempts,
		baseBackoff: 5 * time.Second,
		maxBackoff:  time.Hour,
		log:         &compLog,
	}
}

func (u *notificationUC) DueEvents(ctx context.Context, limit int) ([]*model.OrderEvent, error) {
	return u.outbox.ListDue(ctx, nil, time.Now(), u.maxAttempts, limit)
}

func (u *notificationUC) Deliver(ctx context.Context, ev *model.OrderEvent) error {
	log := u.log.With().Str("event_id", ev.ID).Str("transaction_id", ev.TransactionID).Str("kind", ev.Kind).Logger()

	var failures []string
	for _, n := range u.notifiers {
		if err := n.NotifyOrderEvent(ctx, ev); err != nil {
			metrics.IncOutboxDelivery(n.Name(), "error")
			failures = append(failures, fmt.Sprintf("%s: %v", n.Name(), err))
			continue
		}
		metrics.IncOutboxDelivery(n.Name(), "sent")
	}

	if len(failures) == 0 {
		if err := u.outbox.MarkPublished(ctx, nil, ev.ID, time.Now()); err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		log.Debug().Msg("order event delivered")
		return nil
	}

	reason := strings.Join(failures, "; ")
	attempt := ev.Attempts + 1
	next := time.Now().Add(u.backoff(attempt))
	if err := u.outbox.MarkFailed(ctx, nil, ev.ID, reason, next); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if attempt >= u.maxAttempts {
		metrics.IncOutboxDelivery("all", "gave_up")
		log.Error().Int("attempts", attempt).Str("reason", reason).Msg("giving up on order event")
	} else {
		log.Warn().Int("attempts", attempt).Time("next_attempt_at", next).Str("reason", reason).Msg("order event delivery failed")
	}
	return errors.New(reason)
}

// backoff doubles per attempt starting at baseBackoff, capped at maxBackoff.
func (u *notificationUC) backoff(attempt int) time.Duration {
	d := u.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= u.maxBackoff {
			return u.maxBackoff
		}
	}
	return d
}
