package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/domain/ports/repository"
	"restaurant-storefront/internal/infra/logging"
	"restaurant-storefront/internal/infra/metrics"
)

// Compile-time check
var _ CallbackUseCase = (*callbackUC)(nil)

type CallbackResult struct {
	Outcome              model.Outcome
	TransactionID        string
	GatewayTransactionID string
	Status               model.OrderStatus
	Applied              model.ApplyResult
}

type CallbackUseCase interface {
	// Handle verifies a gateway callback and applies it to the order exactly once.
	Handle(ctx context.Context, cb model.GatewayCallback) (*CallbackResult, error)
}

type callbackUC struct {
	verifier  adapter.CallbackVerifier
	orders    repository.OrderRepository
	callbacks repository.CallbackLogRepository
	outbox    repository.OutboxRepository
	tm        repository.TransactionManager
	seen      adapter.SeenCache
	seenTTL   time.Duration
	log       *zerolog.Logger
}

// NewCallbackUseCase builds the callback handler. seen may be nil when redis is not configured.
func NewCallbackUseCase(
	verifier adapter.CallbackVerifier,
	orders repository.OrderRepository,
	callbacks repository.CallbackLogRepository,
	outbox repository.OutboxRepository,
	tm repository.TransactionManager,
	seen adapter.SeenCache,
	seenTTL time.Duration,
	logger *zerolog.Logger,
) *callbackUC {
	compLog := logger.With().Str("component", "CallbackUC").Logger()
	if seenTTL <= 0 {
		seenTTL = 24 * time.Hour
	}
	return &callbackUC{
		verifier:  verifier,
		orders:    orders,
		callbacks: callbacks,
		outbox:    outbox,
		tm:        tm,
		seen:      seen,
		seenTTL:   seenTTL,
		log:       &compLog,
	}
}

func (u *callbackUC) Handle(ctx context.Context, cb model.GatewayCallback) (*CallbackResult, error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "CallbackUC.Handle")()

	v, err := u.verifier.Verify(cb)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownStatus) {
			return u.recordUnknown(ctx, log, v, err)
		}
		log.Warn().Err(err).Msg("callback rejected")
		return nil, err
	}

	ctx = logging.WithTransactionID(ctx, v.TransactionID())
	log = logging.With(ctx, u.log)
	res := &CallbackResult{
		Outcome:              v.Outcome,
		TransactionID:        v.TransactionID(),
		GatewayTransactionID: v.GatewayTransactionID(),
	}

	sig := cb.Signature()
	if u.seen != nil {
		hit, err := u.seen.Seen(ctx, sig)
		switch {
		case err != nil:
			metrics.IncCallbackRedeliveryLookup("error")
			log.Warn().Err(err).Msg("seen cache unavailable")
		case hit:
			metrics.IncCallbackRedeliveryLookup("hit")
			metrics.IncCallback(string(v.Outcome), string(model.ApplyDuplicate))
			res.Applied = model.ApplyDuplicate
			log.Debug().Msg("exact callback redelivery ignored")
			return res, nil
		default:
			metrics.IncCallbackRedeliveryLookup("miss")
		}
	}

	var (
		notFound bool
		anomaly  error
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		order, err := u.orders.FindByTransactionID(ctx, tx, v.TransactionID())
		if errors.Is(err, domain.ErrNotFound) {
			notFound = true
			return nil
		}
		if err != nil {
			return err
		}
		res.Status = order.Status

		if v.Outcome == model.OutcomeSucceeded && v.Payload.Data.Amount != order.Amount {
			anomaly = domain.NewConflictError("callback.amount",
				fmt.Sprintf("callback amount %d differs from order amount %d", v.Payload.Data.Amount, order.Amount))
			return u.callbacks.Save(ctx, tx, model.NewCallbackRecord(v, model.CallbackResultAnomaly))
		}

		applied, err := order.Apply(v.Outcome)
		if err != nil {
			if errors.Is(err, domain.ErrConflictingOutcome) {
				anomaly = err
				return u.callbacks.Save(ctx, tx, model.NewCallbackRecord(v, model.CallbackResultAnomaly))
			}
			return err
		}
		res.Applied = applied
		res.Status = order.Status

		if applied == model.ApplyApplied {
			order.GatewayTransactionID = v.GatewayTransactionID()
			order.GatewayCode = string(v.Payload.Code)
			if err := u.orders.UpdateStatus(ctx, tx, order); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
			if order.Status.IsTerminal() {
				ev, err := model.NewOrderEvent(order)
				if err != nil {
					return err
				}
				if err := u.outbox.Enqueue(ctx, tx, ev); err != nil {
					return fmt.Errorf("enqueue order event: %w", err)
				}
			}
		}
		return u.callbacks.Save(ctx, tx, model.NewCallbackRecord(v, string(applied)))
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to apply callback")
		return nil, err
	}

	if notFound {
		if err := u.callbacks.Save(ctx, nil, model.NewCallbackRecord(v, model.CallbackResultNotFound)); err != nil {
			log.Error().Err(err).Msg("failed to record callback for unknown order")
		}
		metrics.IncCallback(string(v.Outcome), model.CallbackResultNotFound)
		log.Warn().Str("outcome", string(v.Outcome)).Msg("callback for unknown order")
		return nil, fmt.Errorf("order %s: %w", v.TransactionID(), domain.ErrNotFound)
	}
	if anomaly != nil {
		metrics.IncCallback(string(v.Outcome), model.CallbackResultAnomaly)
		metrics.IncCallbackAnomaly(string(v.Outcome))
		log.Error().Err(anomaly).
			Str("order_status", string(res.Status)).
			Str("outcome", string(v.Outcome)).
			Msg("callback contradicts order state")
		return res, anomaly
	}

	metrics.IncCallback(string(v.Outcome), string(res.Applied))
	if res.Applied == model.ApplyApplied && res.Status == model.OrderStatusSucceeded {
		metrics.AddPaymentRevenue(model.CurrencyINR, v.Payload.Data.Amount)
	}
	if u.seen != nil {
		if err := u.seen.MarkSeen(ctx, sig, u.seenTTL); err != nil {
			log.Warn().Err(err).Msg("failed to mark callback seen")
		}
	}
	log.Info().
		Str("outcome", string(v.Outcome)).
		Str("result", string(res.Applied)).
		Str("status", string(res.Status)).
		Msg("callback processed")
	return res, nil
}

// recordUnknown keeps an audit row for an authenticated callback with an unmapped code.
// The order is never touched.
func (u *callbackUC) recordUnknown(ctx context.Context, log *zerolog.Logger, v model.VerifiedCallback, cause error) (*CallbackResult, error) {
	if err := u.callbacks.Save(ctx, nil, model.NewCallbackRecord(v, model.CallbackResultUnknown)); err != nil {
		log.Error().Err(err).Msg("failed to record unknown callback")
	}
	metrics.IncCallback(string(model.OutcomeUnknown), model.CallbackResultUnknown)
	log.Warn().Err(cause).
		Str("transaction_id", v.TransactionID()).
		Str("code", string(v.Payload.Code)).
		Msg("callback with unknown status code")
	return &CallbackResult{
		Outcome:              model.OutcomeUnknown,
		TransactionID:        v.TransactionID(),
		GatewayTransactionID: v.GatewayTransactionID(),
	}, cause
}
