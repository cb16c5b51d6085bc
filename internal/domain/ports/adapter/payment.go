package adapter

import (
	"context"

	"restaurant-storefront/internal/domain/model"
)

// PaymentGateway is the hex port for the outbound payment initiation.
type PaymentGateway interface {
	Name() string

	// InitiatePayment signs and submits a validated intent. It never retries.
	// On any failure the returned result is empty and the error wraps domain.ErrGateway.
	InitiatePayment(ctx context.Context, intent model.PaymentIntent) (model.InitiateResult, error)
}

// CallbackVerifier authenticates and decodes an inbound gateway callback.
// Implementations are pure: no I/O and no shared mutable state.
type CallbackVerifier interface {
	Verify(cb model.GatewayCallback) (model.VerifiedCallback, error)
}

// OrderNotifier delivers an order event to one downstream channel.
type OrderNotifier interface {
	Name() string
	NotifyOrderEvent(ctx context.Context, ev *model.OrderEvent) error
}
