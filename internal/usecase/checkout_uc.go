package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/domain/ports/repository"
	"restaurant-storefront/internal/infra/logging"
	"restaurant-storefront/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutRequest is the storefront's initiation input. Amount is in major units (rupees).
type CheckoutRequest struct {
	Amount        decimal.Decimal
	MerchantID    string
	TransactionID string
	PayerID       string
	// ClientIP is the caller's network address as seen by the HTTP layer. It scopes rate limiting.
	ClientIP      string
	RedirectURL   string
	RedirectMode  string
	CallbackURL   string
	MobileNumber  string
	Instrument    string
	Items         []model.LineItem
}

type CheckoutResult struct {
	Order  *model.Order
	Result model.InitiateResult
}

type CheckoutUseCase interface {
	// Initiate validates, persists the order and asks the gateway for a payment page or QR code.
	Initiate(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// CheckoutSettings carries merchant configuration and limits.
type CheckoutSettings struct {
	MerchantID         string
	DefaultRedirectURL string
	DefaultCallbackURL string
	RateLimit          int
	RateWindow         time.Duration
}

type checkoutUC struct {
	orders   repository.OrderRepository
	gateway  adapter.PaymentGateway
	limiter  adapter.RateLimiter
	settings CheckoutSettings
	log      *zerolog.Logger
}

func NewCheckoutUseCase(orders repository.OrderRepository, gateway adapter.PaymentGateway, limiter adapter.RateLimiter, settings CheckoutSettings, logger *zerolog.Logger) *checkoutUC {
	compLog := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{
		orders:   orders,
		gateway:  gateway,
		limiter:  limiter,
		settings: settings,
		log:      &compLog,
	}
}

// GuestPayerID is the shared payer id the storefront sends for shoppers without an account.
const GuestPayerID = "guest"

// initiateRateKey scopes the limit to the client address. Without one, only named payers are
// limited; the guest id is shared by every anonymous shopper and cannot identify a caller.
func initiateRateKey(clientIP, payerID string) (string, bool) {
	if clientIP != "" {
		return "rate_limit:initiate:ip:" + clientIP, true
	}
	if payerID == "" || strings.EqualFold(payerID, GuestPayerID) {
		return "", false
	}
	return "rate_limit:initiate:payer:" + payerID, true
}

func (u *checkoutUC) Initiate(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	ctx = logging.WithTransactionID(ctx, req.TransactionID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "CheckoutUC.Initiate")()

	intent, err := u.buildIntent(req)
	if err != nil {
		metrics.IncInitiation("validation")
		log.Info().Err(err).Msg("checkout rejected")
		return nil, err
	}

	if key, scoped := initiateRateKey(strings.TrimSpace(req.ClientIP), intent.PayerID); scoped && u.limiter != nil && u.settings.RateLimit > 0 {
		ok, err := u.limiter.Allow(ctx, key, u.settings.RateLimit, u.settings.RateWindow)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter failed; allowing request")
		} else if !ok {
			metrics.IncInitiation("rate_limited")
			return nil, domain.ErrRateLimited
		}
	}

	order := model.NewOrder(intent, req.Items)
	if err := u.orders.Create(ctx, nil, order); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			metrics.IncInitiation("duplicate")
			return nil, fmt.Errorf("transaction %s: %w", intent.TransactionID, domain.ErrAlreadyExists)
		}
		metrics.IncInitiation("internal")
		return nil, fmt.Errorf("create order: %w", err)
	}

	start := time.Now()
	res, err := u.gateway.InitiatePayment(ctx, intent)
	metrics.ObserveGatewayCall(u.gateway.Name(), err == nil, time.Since(start))
	if err == nil && res.IsEmpty() {
		err = domain.NewGatewayError("checkout.initiate", "gateway returned no payment target", nil)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrGateway) && !errors.Is(err, domain.ErrValidation) {
			err = domain.NewGatewayError("checkout.initiate", "", err)
		}
		// the order stays created; a new attempt needs a new transaction id
		if serr := u.orders.SetLastError(context.WithoutCancel(ctx), nil, intent.TransactionID, domain.ReasonOf(err, err.Error())); serr != nil {
			log.Error().Err(serr).Msg("failed to record gateway error on order")
		}
		metrics.IncInitiation("gateway_error")
		log.Error().Err(err).Str("gateway", u.gateway.Name()).Msg("payment initiation failed")
		return nil, err
	}

	moved, err := u.orders.MarkPendingIfCreated(ctx, nil, intent.TransactionID)
	if err != nil {
		// the gateway accepted the request; the callback will still settle the order
		log.Error().Err(err).Msg("failed to mark order pending")
	} else if moved {
		order.Status = model.OrderStatusPending
	}

	metrics.IncInitiation("initiated")
	log.Info().
		Int64("amount", intent.AmountSubunits).
		Str("payer", logging.Redact(intent.PayerID, false)).
		Bool("qr", res.QRCode != "").
		Msg("payment initiated")

	return &CheckoutResult{Order: order, Result: res}, nil
}

// buildIntent performs all validation. It never touches the network or the store.
func (u *checkoutUC) buildIntent(req CheckoutRequest) (model.PaymentIntent, error) {
	merchantID := strings.TrimSpace(req.MerchantID)
	if merchantID == "" {
		merchantID = u.settings.MerchantID
	} else if merchantID != u.settings.MerchantID {
		return model.PaymentIntent{}, domain.NewValidationError("merchantId", "unknown merchant")
	}

	amount, err := model.ToSubunits(req.Amount)
	if err != nil {
		return model.PaymentIntent{}, err
	}

	if len(req.Items) > 0 {
		cart, err := model.NewCart(req.Items)
		if err != nil {
			return model.PaymentIntent{}, err
		}
		if !cart.Total().Equal(req.Amount) {
			return model.PaymentIntent{}, domain.NewValidationError("amount",
				"%s does not match items total %s", req.Amount.StringFixed(2), cart.Total().StringFixed(2))
		}
	}

	instrument, err := model.ParseInstrument(req.Instrument)
	if err != nil {
		return model.PaymentIntent{}, err
	}
	mode, err := model.ParseRedirectMode(req.RedirectMode)
	if err != nil {
		return model.PaymentIntent{}, err
	}

	redirectURL := strings.TrimSpace(req.RedirectURL)
	if redirectURL == "" {
		redirectURL = u.settings.DefaultRedirectURL
	}
	callbackURL := strings.TrimSpace(req.CallbackURL)
	if callbackURL == "" {
		callbackURL = u.settings.DefaultCallbackURL
	}

	intent := model.PaymentIntent{
		MerchantID:     merchantID,
		TransactionID:  strings.TrimSpace(req.TransactionID),
		PayerID:        strings.TrimSpace(req.PayerID),
		AmountSubunits: amount,
		RedirectURL:    redirectURL,
		RedirectMode:   mode,
		CallbackURL:    callbackURL,
		MobileNumber:   strings.TrimSpace(req.MobileNumber),
		Instrument:     instrument,
	}
	if err := intent.Validate(); err != nil {
		return model.PaymentIntent{}, err
	}
	return intent, nil
}
