package notify

import (
	"context"

	"github.com/rs/zerolog"

	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
)

var _ adapter.OrderNotifier = (*LogNotifier)(nil)

// LogNotifier writes order events to the log. It is the fallback when no downstream is configured.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "LogNotifier").Logger()
	return &LogNotifier{log: &l}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) NotifyOrderEvent(_ context.Context, ev *model.OrderEvent) error {
	n.log.Info().
		Str("event_id", ev.ID).
		Str("transaction_id", ev.TransactionID).
		Str("kind", ev.Kind).
		RawJSON("payload", ev.Payload).
		Msg("order event")
	return nil
}
