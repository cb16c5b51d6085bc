//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"restaurant-storefront/internal/domain/model"
)

func TestOutboxAndCallbackRepos_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	orders := NewOrderRepo(testPool, nil)
	outbox := NewOutboxRepo(testPool)
	callbacks := NewCallbackLogRepo(testPool)

	paidOrder := func(t *testing.T) *model.Order {
		t.Helper()
		o := newTestOrder("ORDER_EVT")
		if err := orders.Create(ctx, nil, o); err != nil {
			t.Fatal(err)
		}
		if _, err := o.Apply(model.OutcomeSucceeded); err != nil {
			t.Fatal(err)
		}
		return o
	}

	t.Run("should enqueue, fail and publish an event", func(t *testing.T) {
		cleanup(t)
		ev, err := model.NewOrderEvent(paidOrder(t))
		if err != nil {
			t.Fatal(err)
		}
		if err := outbox.Enqueue(ctx, nil, ev); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}

		due, err := outbox.ListDue(ctx, nil, time.Now().Add(time.Second), 5, 10)
		if err != nil || len(due) != 1 {
			t.Fatalf("expected 1 due event, got %d (%v)", len(due), err)
		}

		next := time.Now().Add(time.Minute)
		if err := outbox.MarkFailed(ctx, nil, ev.ID, "broker down", next); err != nil {
			t.Fatal(err)
		}
		due, _ = outbox.ListDue(ctx, nil, time.Now(), 5, 10)
		if len(due) != 0 {
			t.Errorf("backed off event should not be due, got %d", len(due))
		}
		due, _ = outbox.ListDue(ctx, nil, next.Add(time.Second), 5, 10)
		if len(due) != 1 || due[0].Attempts != 1 || due[0].LastError == nil || *due[0].LastError != "broker down" {
			t.Fatalf("unexpected retry state: %+v", due)
		}
		due, _ = outbox.ListDue(ctx, nil, next.Add(time.Second), 1, 10)
		if len(due) != 0 {
			t.Errorf("exhausted event should not be due, got %d", len(due))
		}

		if err := outbox.MarkPublished(ctx, nil, ev.ID, time.Now()); err != nil {
			t.Fatal(err)
		}
		due, _ = outbox.ListDue(ctx, nil, next.Add(time.Hour), 5, 10)
		if len(due) != 0 {
			t.Errorf("published event should not be due, got %d", len(due))
		}
	})

	t.Run("should keep the callback history in arrival order", func(t *testing.T) {
		cleanup(t)
		first := &model.CallbackRecord{ID: "6f1c1a64-8c1e-4c1c-9d6f-000000000001", TransactionID: "ORDER_EVT", Code: "PAYMENT_PENDING",
			Outcome: model.OutcomePending, Result: "applied", Amount: 19999, Payload: []byte(`{"code":"PAYMENT_PENDING"}`), ReceivedAt: time.Now().Add(-time.Minute)}
		second := &model.CallbackRecord{ID: "6f1c1a64-8c1e-4c1c-9d6f-000000000002", TransactionID: "ORDER_EVT", Code: "PAYMENT_SUCCESS",
			Outcome: model.OutcomeSucceeded, Result: "applied", Amount: 19999, Payload: []byte(`{"code":"PAYMENT_SUCCESS"}`), ReceivedAt: time.Now()}
		for _, rec := range []*model.CallbackRecord{second, first} {
			if err := callbacks.Save(ctx, nil, rec); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		list, err := callbacks.ListByTransactionID(ctx, nil, "ORDER_EVT")
		if err != nil {
			t.Fatalf("ListByTransactionID failed: %v", err)
		}
		if len(list) != 2 || list[0].Outcome != model.OutcomePending || list[1].Outcome != model.OutcomeSucceeded {
			t.Errorf("unexpected history: %+v", list)
		}
	})
}
