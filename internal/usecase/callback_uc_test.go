//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v4"

	"restaurant-storefront/internal/domain"
	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/domain/ports/repository"
	"restaurant-storefront/internal/usecase"
)

type callbackDeps struct {
	verifier  *MockVerifier
	orders    *MockOrderRepo
	callbacks *MockCallbackLogRepo
	outbox    *MockOutboxRepo
	tm        *MockTxManager
	seen      *MockSeenCache
}

func newCallbackDeps() *callbackDeps {
	d := &callbackDeps{
		verifier:  &MockVerifier{},
		orders:    NewMockOrderRepo(),
		callbacks: &MockCallbackLogRepo{},
		outbox:    NewMockOutboxRepo(),
		tm:        &MockTxManager{},
	}
	// by default the verifier trusts everything and maps the code carried in the payload field
	d.verifier.VerifyFunc = func(cb model.GatewayCallback) (model.VerifiedCallback, error) {
		return verified(model.GatewayCode(cb.EncodedPayload), 19999), nil
	}
	return d
}

func (d *callbackDeps) uc() usecase.CallbackUseCase {
	var seen adapter.SeenCache
	if d.seen != nil {
		seen = d.seen
	}
	return usecase.NewCallbackUseCase(d.verifier, d.orders, d.callbacks, d.outbox, d.tm, seen, 0, newTestLogger())
}

func verified(code model.GatewayCode, amount int64) model.VerifiedCallback {
	return model.VerifiedCallback{
		Outcome: model.OutcomeFor(code),
		Payload: model.CallbackPayload{
			Success: code == model.CodePaymentSuccess,
			Code:    code,
			Data: model.CallbackData{
				MerchantID:            "MERCHANTUAT",
				MerchantTransactionID: "ORDER_1",
				TransactionID:         "T2310121234567890",
				Amount:                amount,
			},
		},
		Raw: []byte(`{}`),
	}
}

// callback builds a raw callback whose payload names the gateway code for the default mock verifier.
func callback(code model.GatewayCode, sig string) model.GatewayCallback {
	return model.GatewayCallback{EncodedPayload: string(code), Checksum: sig + "###1"}
}

func seedOrder(orders *MockOrderRepo, status model.OrderStatus) {
	o := model.NewOrder(model.PaymentIntent{
		MerchantID:     "MERCHANTUAT",
		TransactionID:  "ORDER_1",
		PayerID:        "guest",
		AmountSubunits: 19999,
		RedirectURL:    "https://shop.example/payment/success",
		RedirectMode:   model.RedirectModePOST,
		CallbackURL:    "https://shop.example/api/payment/webhook",
		Instrument:     model.DefaultInstrument(),
	}, nil)
	o.Status = status
	orders.put(o)
}

func TestCallbackUseCase_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("should apply success once and ignore the redelivery", func(t *testing.T) {
		// --- Arrange ---
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusPending)
		uc := deps.uc()

		// --- Act ---
		first, err1 := uc.Handle(ctx, callback(model.CodePaymentSuccess, "aa"))
		second, err2 := uc.Handle(ctx, callback(model.CodePaymentSuccess, "aa"))

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("expected no errors, got %v / %v", err1, err2)
		}
		if first.Applied != model.ApplyApplied || second.Applied != model.ApplyDuplicate {
			t.Errorf("expected applied then duplicate, got %s then %s", first.Applied, second.Applied)
		}
		o := deps.orders.get("ORDER_1")
		if o.Status != model.OrderStatusSucceeded || o.PaidAt == nil {
			t.Errorf("expected paid order, got %+v", o)
		}
		if o.GatewayTransactionID != "T2310121234567890" || o.GatewayCode != "PAYMENT_SUCCESS" {
			t.Errorf("gateway ids not stored: %+v", o)
		}
		if deps.outbox.count() != 1 {
			t.Errorf("expected exactly one order event, got %d", deps.outbox.count())
		}
		if got := deps.callbacks.results(); !reflect.DeepEqual(got, []string{"applied", "duplicate"}) {
			t.Errorf("unexpected callback log %v", got)
		}
	})

	t.Run("should ignore a late pending after success", func(t *testing.T) {
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusPending)
		uc := deps.uc()

		if _, err := uc.Handle(ctx, callback(model.CodePaymentSuccess, "aa")); err != nil {
			t.Fatal(err)
		}
		res, err := uc.Handle(ctx, callback(model.CodePaymentPending, "bb"))

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Applied != model.ApplyStale || res.Status != model.OrderStatusSucceeded {
			t.Errorf("expected stale on succeeded order, got %+v", res)
		}
		if deps.orders.get("ORDER_1").Status != model.OrderStatusSucceeded {
			t.Error("order must stay succeeded")
		}
	})

	t.Run("should not enqueue events for repeated pending callbacks", func(t *testing.T) {
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusCreated)
		uc := deps.uc()

		for _, sig := range []string{"a1", "a2", "a3"} {
			if _, err := uc.Handle(ctx, callback(model.CodePaymentPending, sig)); err != nil {
				t.Fatal(err)
			}
		}
		if deps.outbox.count() != 0 {
			t.Errorf("pending must not produce order events, got %d", deps.outbox.count())
		}
		if deps.orders.get("ORDER_1").Status != model.OrderStatusPending {
			t.Error("expected created -> pending")
		}
	})

	t.Run("should move a created order straight to failed", func(t *testing.T) {
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusCreated)

		res, err := deps.uc().Handle(ctx, callback(model.CodePaymentError, "cc"))

		if err != nil {
			t.Fatal(err)
		}
		if res.Status != model.OrderStatusFailed {
			t.Errorf("expected failed, got %s", res.Status)
		}
		if deps.outbox.count() != 1 {
			t.Fatalf("expected one order event, got %d", deps.outbox.count())
		}
		for _, ev := range deps.outbox.Events {
			if ev.Kind != model.EventOrderFailed {
				t.Errorf("expected order.failed event, got %s", ev.Kind)
			}
		}
	})

	t.Run("should report a conflicting terminal outcome without changing the order", func(t *testing.T) {
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusSucceeded)

		_, err := deps.uc().Handle(ctx, callback(model.CodePaymentError, "dd"))

		if !errors.Is(err, domain.ErrConflictingOutcome) {
			t.Fatalf("expected ErrConflictingOutcome, got %v", err)
		}
		if deps.orders.get("ORDER_1").Status != model.OrderStatusSucceeded {
			t.Error("order must stay succeeded")
		}
		if got := deps.callbacks.results(); !reflect.DeepEqual(got, []string{"anomaly"}) {
			t.Errorf("expected anomaly record, got %v", got)
		}
		if deps.outbox.count() != 0 {
			t.Error("anomalies must not emit order events")
		}
	})

	t.Run("should treat an amount mismatch on success as an anomaly", func(t *testing.T) {
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusPending)
		deps.verifier.VerifyFunc = func(cb model.GatewayCallback) (model.VerifiedCallback, error) {
			return verified(model.CodePaymentSuccess, 100), nil
		}

		_, err := deps.uc().Handle(ctx, callback(model.CodePaymentSuccess, "ee"))

		if !errors.Is(err, domain.ErrConflictingOutcome) {
			t.Fatalf("expected ErrConflictingOutcome, got %v", err)
		}
		if deps.orders.get("ORDER_1").Status != model.OrderStatusPending {
			t.Error("order must stay pending")
		}
	})

	t.Run("should reject unauthenticated callbacks without side effects", func(t *testing.T) {
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusPending)
		deps.verifier.VerifyFunc = func(cb model.GatewayCallback) (model.VerifiedCallback, error) {
			return model.VerifiedCallback{}, domain.NewAuthenticationError("test", "checksum mismatch")
		}

		res, err := deps.uc().Handle(ctx, callback(model.CodePaymentSuccess, "ff"))

		if !errors.Is(err, domain.ErrAuthentication) {
			t.Fatalf("expected ErrAuthentication, got %v", err)
		}
		if res != nil {
			t.Error("expected nil result")
		}
		if deps.orders.get("ORDER_1").Status != model.OrderStatusPending || len(deps.callbacks.Records) != 0 {
			t.Error("rejected callback must not change state or be recorded")
		}
	})

	t.Run("should record unknown codes and never mark paid", func(t *testing.T) {
		deps := newCallbackDeps()
		seedOrder(deps.orders, model.OrderStatusPending)
		deps.verifier.VerifyFunc = func(cb model.GatewayCallback) (model.VerifiedCallback, error) {
			v := verified("PAYMENT_DECLINED", 19999)
			return v, domain.NewUnknownStatusError("PAYMENT_DECLINED")
		}

		res, err := deps.uc().Handle(ctx, callback("PAYMENT_DECLINED", "gg"))

		if !errors.Is(err, domain.ErrUnknownStatus) {
			t.Fatalf("expected ErrUnknownStatus, got %v", err)
		}
		if res.Outcome != model.OutcomeUnknown || res.TransactionID != "ORDER_1" {
			t.Errorf("unexpected result %+v", res)
		}
		if deps.orders.get("ORDER_1").Status != model.OrderStatusPending {
			t.Error("unknown code must not change the order")
		}
		if got := deps.callbacks.results(); !reflect.DeepEqual(got, []string{"unknown"}) {
			t.Errorf("expected unknown record, got %v", got)
		}
	})

	t.Run("should report an unknown order", func(t *testing.T) {
		deps := newCallbackDeps()

		_, err := deps.uc().Handle(ctx, callback(model.CodePaymentSuccess, "hh"))

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if got := deps.callbacks.results(); !reflect.DeepEqual(got, []string{"not_found"}) {
			t.Errorf("expected not_found record, got %v", got)
		}
		if deps.orders.get("ORDER_1") != nil {
			t.Error("callback must not create an order")
		}
	})

	t.Run("should short-circuit exact redeliveries through the seen cache", func(t *testing.T) {
		deps := newCallbackDeps()
		deps.seen = NewMockSeenCache()
		seedOrder(deps.orders, model.OrderStatusPending)
		uc := deps.uc()

		if _, err := uc.Handle(ctx, callback(model.CodePaymentSuccess, "AB")); err != nil {
			t.Fatal(err)
		}
		res, err := uc.Handle(ctx, model.GatewayCallback{EncodedPayload: "PAYMENT_SUCCESS", HeaderChecksum: "ab###1"})

		if err != nil {
			t.Fatal(err)
		}
		if res.Applied != model.ApplyDuplicate {
			t.Errorf("expected duplicate, got %s", res.Applied)
		}
		if len(deps.callbacks.Records) != 1 {
			t.Errorf("redelivery should not reach the store, records=%d", len(deps.callbacks.Records))
		}
	})

	t.Run("should keep working when the seen cache is down", func(t *testing.T) {
		deps := newCallbackDeps()
		deps.seen = NewMockSeenCache()
		deps.seen.Err = errors.New("redis down")
		seedOrder(deps.orders, model.OrderStatusPending)

		res, err := deps.uc().Handle(ctx, callback(model.CodePaymentSuccess, "ii"))

		if err != nil || res.Applied != model.ApplyApplied {
			t.Fatalf("expected applied, got %+v %v", res, err)
		}
	})

	t.Run("should propagate transaction failures and not mark seen", func(t *testing.T) {
		deps := newCallbackDeps()
		deps.seen = NewMockSeenCache()
		seedOrder(deps.orders, model.OrderStatusPending)
		deps.tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			return errors.New("serialization failure")
		}

		_, err := deps.uc().Handle(ctx, callback(model.CodePaymentSuccess, "jj"))

		if err == nil {
			t.Fatal("expected an error, but got nil")
		}
		if seen, _ := deps.seen.Seen(ctx, "jj"); seen {
			t.Error("failed callbacks must stay retryable")
		}
	})
}
