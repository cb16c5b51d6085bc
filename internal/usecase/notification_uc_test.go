//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
	"restaurant-storefront/internal/usecase"
)

func paidEvent(t *testing.T) *model.OrderEvent {
	t.Helper()
	o := model.NewOrder(model.PaymentIntent{TransactionID: "ORDER_1", PayerID: "guest", AmountSubunits: 19999}, nil)
	if _, err := o.Apply(model.OutcomeSucceeded); err != nil {
		t.Fatal(err)
	}
	ev, err := model.NewOrderEvent(o)
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestNotificationUseCase_Deliver(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver to every notifier and mark published", func(t *testing.T) {
		// --- Arrange ---
		outbox := NewMockOutboxRepo()
		ev := paidEvent(t)
		_ = outbox.Enqueue(ctx, nil, ev)
		kafka := &MockNotifier{NameVal: "kafka"}
		tg := &MockNotifier{NameVal: "telegram"}
		uc := usecase.NewNotificationUseCase(outbox, []adapter.OrderNotifier{kafka, tg}, 3, newTestLogger())

		// --- Act ---
		due, err := uc.DueEvents(ctx, 10)
		if err != nil || len(due) != 1 {
			t.Fatalf("expected one due event, got %d (%v)", len(due), err)
		}
		err = uc.Deliver(ctx, due[0])

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(kafka.Received) != 1 || len(tg.Received) != 1 {
			t.Error("expected both notifiers to receive the event")
		}
		if outbox.Events[ev.ID].PublishedAt == nil {
			t.Error("expected event to be marked published")
		}
		if due, _ := uc.DueEvents(ctx, 10); len(due) != 0 {
			t.Error("published events must not be due again")
		}
	})

	t.Run("should reschedule on failure and stop after max attempts", func(t *testing.T) {
		// --- Arrange ---
		outbox := NewMockOutboxRepo()
		ev := paidEvent(t)
		_ = outbox.Enqueue(ctx, nil, ev)
		broken := &MockNotifier{NameVal: "kafka", NotifyFunc: func(ctx context.Context, ev *model.OrderEvent) error {
			return errors.New("broker unavailable")
		}}
		uc := usecase.NewNotificationUseCase(outbox, []adapter.OrderNotifier{broken}, 2, newTestLogger())

		// --- Act ---
		err := uc.Deliver(ctx, ev)

		// --- Assert ---
		if err == nil {
			t.Fatal("expected an error, but got nil")
		}
		stored := outbox.Events[ev.ID]
		if stored.Attempts != 1 || stored.LastError == nil || !stored.NextAttemptAt.After(time.Now()) {
			t.Errorf("expected rescheduled event, got %+v", stored)
		}
		if due, _ := uc.DueEvents(ctx, 10); len(due) != 0 {
			t.Error("rescheduled event must not be due immediately")
		}

		// second failure reaches the attempt cap
		stored.NextAttemptAt = time.Now().Add(-time.Second)
		_ = uc.Deliver(ctx, stored)
		outbox.Events[ev.ID].NextAttemptAt = time.Now().Add(-time.Second)
		if due, _ := uc.DueEvents(ctx, 10); len(due) != 0 {
			t.Error("events past max attempts must not be retried")
		}
	})
}
