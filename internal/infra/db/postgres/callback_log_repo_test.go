//go:build integration

package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/repository"
)

func TestCallbackLogRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	orders := NewOrderRepo(testPool, nil)
	callbacks := NewCallbackLogRepo(testPool)

	t.Run("should list callbacks in arrival order", func(t *testing.T) {
		cleanup(t)
		base := time.Now().Add(-time.Minute)
		for i, code := range []string{"PAYMENT_PENDING", "PAYMENT_SUCCESS"} {
			rec := &model.CallbackRecord{
				ID:            uuid.NewString(),
				TransactionID: "ORDER_LOG",
				Code:          code,
				Outcome:       model.OutcomeFor(model.GatewayCode(code)),
				Result:        string(model.ApplyApplied),
				Amount:        19999,
				ReceivedAt:    base.Add(time.Duration(i) * time.Second),
			}
			if err := callbacks.Save(ctx, nil, rec); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}

		list, err := callbacks.ListByTransactionID(ctx, nil, "ORDER_LOG")
		if err != nil {
			t.Fatalf("ListByTransactionID failed: %v", err)
		}
		if len(list) != 2 || list[0].Code != "PAYMENT_PENDING" || list[1].Outcome != model.OutcomeSucceeded {
			t.Errorf("unexpected history: %+v", list)
		}
		if string(list[0].Payload) != "{}" {
			t.Errorf("expected empty payload stored as {}, got %s", list[0].Payload)
		}
	})

	t.Run("should keep a state change when the gateway echoes long identifiers", func(t *testing.T) {
		cleanup(t)
		if err := orders.Create(ctx, nil, newTestOrder("ORDER_LONG")); err != nil {
			t.Fatal(err)
		}
		longRef := "T" + strings.Repeat("9", 120)
		longCode := "PAYMENT_" + strings.Repeat("X", 60)

		err := NewTxManager(testPool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			o, err := orders.FindByTransactionID(ctx, tx, "ORDER_LONG")
			if err != nil {
				return err
			}
			if _, err := o.Apply(model.OutcomeSucceeded); err != nil {
				return err
			}
			o.GatewayTransactionID = longRef
			o.GatewayCode = longCode
			if err := orders.UpdateStatus(ctx, tx, o); err != nil {
				return err
			}
			return callbacks.Save(ctx, tx, &model.CallbackRecord{
				ID:                   uuid.NewString(),
				TransactionID:        "ORDER_LONG",
				GatewayTransactionID: longRef,
				Code:                 longCode,
				Outcome:              model.OutcomeSucceeded,
				Result:               string(model.ApplyApplied),
				Amount:               19999,
				Payload:              []byte(`{"code":"PAYMENT_SUCCESS"}`),
				ReceivedAt:           time.Now(),
			})
		})
		if err != nil {
			t.Fatalf("expected the transaction to commit, got %v", err)
		}

		got, err := orders.FindByTransactionID(ctx, nil, "ORDER_LONG")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != model.OrderStatusSucceeded || got.GatewayTransactionID != longRef {
			t.Errorf("unexpected order: %+v", got)
		}
		list, err := callbacks.ListByTransactionID(ctx, nil, "ORDER_LONG")
		if err != nil || len(list) != 1 || list[0].Code != longCode {
			t.Errorf("expected the long callback to be stored, got %+v (%v)", list, err)
		}
	})
}
