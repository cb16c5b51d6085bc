package payment

import (
	"context"
	"sync"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway accepts every intent and returns a local pay page url.
// It is used in dev mode when no merchant credentials are configured.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	intents map[string]int64 // transaction id -> amount (paise)
}

// DevCredentials are the fixed, insecure credentials paired with the noop gateway.
func DevCredentials() Credentials {
	return Credentials{MerchantID: "DEVMERCHANT", SaltKey: "dev-salt-key", SaltIndex: 1}
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		intents: make(map[string]int64),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) InitiatePayment(ctx context.Context, intent model.PaymentIntent) (model.InitiateResult, error) {
	if err := ctx.Err(); err != nil {
		return model.InitiateResult{}, domain.NewGatewayError("noop.initiate", "context done", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.intents[intent.TransactionID]; ok {
		return model.InitiateResult{}, domain.NewGatewayError("noop.initiate", "duplicate transaction id", nil)
	}
	g.intents[intent.TransactionID] = intent.AmountSubunits
	if intent.Instrument.Kind == model.InstrumentUPIQR {
		uri, err := RenderQRDataURI("upi://pay?tr=" + intent.TransactionID)
		if err != nil {
			return model.InitiateResult{}, domain.NewGatewayError("noop.initiate", "qr", err)
		}
		return model.InitiateResult{QRCode: uri}, nil
	}
	return model.InitiateResult{RedirectURL: "https://example.test/pay/" + intent.TransactionID}, nil
}

// Amount returns the amount recorded for a transaction id.
func (g *NoopPaymentGateway) Amount(transactionID string) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.intents[transactionID]
	return a, ok
}
