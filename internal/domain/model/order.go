package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"restaurant-storefront/internal/domain"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"   // persisted at checkout, not yet accepted by the gateway
	OrderStatusPending   OrderStatus = "pending"   // gateway accepted the initiation; awaiting callback
	OrderStatusSucceeded OrderStatus = "succeeded" // verified PAYMENT_SUCCESS callback
	OrderStatusFailed    OrderStatus = "failed"    // verified PAYMENT_ERROR callback
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSucceeded || s == OrderStatusFailed
}

// ApplyResult tells the caller whether a callback changed the order.
type ApplyResult string

const (
	ApplyApplied   ApplyResult = "applied"
	ApplyDuplicate ApplyResult = "duplicate"
	ApplyStale     ApplyResult = "stale"
)

// Order is the storefront's record of a checkout attempt, keyed by TransactionID.
type Order struct {
	ID                   string
	TransactionID        string
	MerchantID           string
	PayerID              string
	Amount               int64 // paise
	Currency             string
	Status               OrderStatus
	Instrument           Instrument
	RedirectURL          string
	CallbackURL          string
	MobileNumber         string
	Items                []LineItem
	GatewayTransactionID string
	GatewayCode          string
	LastError            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PaidAt               *time.Time
}

// NewOrder creates the created-state order for an intent that already passed validation.
func NewOrder(intent PaymentIntent, items []LineItem) *Order {
	now := time.Now()
	return &Order{
		ID:            uuid.NewString(),
		TransactionID: intent.TransactionID,
		MerchantID:    intent.MerchantID,
		PayerID:       intent.PayerID,
		Amount:        intent.AmountSubunits,
		Currency:      CurrencyINR,
		Status:        OrderStatusCreated,
		Instrument:    intent.Instrument,
		RedirectURL:   intent.RedirectURL,
		CallbackURL:   intent.CallbackURL,
		MobileNumber:  intent.MobileNumber,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTransactionID returns a fresh gateway-safe transaction id.
func NewTransactionID() string {
	return "ORDER_" + ulid.Make().String()
}

// Apply moves the order according to a verified outcome.
// Pending is re-entrant, succeeded and failed are terminal, and a terminal order
// receiving the opposite terminal outcome is reported as ErrConflictingOutcome.
// Unknown outcomes never change the order.
func (o *Order) Apply(outcome Outcome) (ApplyResult, error) {
	var target OrderStatus
	switch outcome {
	case OutcomePending:
		target = OrderStatusPending
	case OutcomeSucceeded:
		target = OrderStatusSucceeded
	case OutcomeFailed:
		target = OrderStatusFailed
	default:
		return "", domain.NewUnknownStatusError(string(outcome))
	}

	if o.Status == target {
		return ApplyDuplicate, nil
	}
	if o.Status.IsTerminal() {
		if target == OrderStatusPending {
			// out-of-order delivery of an earlier pending notification
			return ApplyStale, nil
		}
		return "", domain.NewConflictError("order.apply",
			fmt.Sprintf("order %s is %s, callback says %s", o.TransactionID, o.Status, outcome))
	}

	now := time.Now()
	o.Status = target
	o.UpdatedAt = now
	if target == OrderStatusSucceeded {
		o.PaidAt = &now
	}
	return ApplyApplied, nil
}

// OrderEvent is an outbox row describing a terminal transition for downstream consumers.
type OrderEvent struct {
	ID            string
	TransactionID string
	Kind          string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	PublishedAt   *time.Time
	LastError     *string
	CreatedAt     time.Time
}

const (
	EventOrderPaid   = "order.paid"
	EventOrderFailed = "order.failed"
)

type orderEventBody struct {
	TransactionID        string     `json:"transactionId"`
	Status               string     `json:"status"`
	Amount               int64      `json:"amount"`
	AmountDisplay        string     `json:"amountDisplay"`
	Currency             string     `json:"currency"`
	PayerID              string     `json:"payerId"`
	GatewayTransactionID string     `json:"gatewayTransactionId,omitempty"`
	Items                []LineItem `json:"items,omitempty"`
	PaidAt               *time.Time `json:"paidAt,omitempty"`
}

// NewOrderEvent builds the outbox event for an order that just reached a terminal state.
func NewOrderEvent(o *Order) (*OrderEvent, error) {
	if !o.Status.IsTerminal() {
		return nil, domain.ErrInvalidArgument
	}
	kind := EventOrderPaid
	if o.Status == OrderStatusFailed {
		kind = EventOrderFailed
	}
	body, err := json.Marshal(orderEventBody{
		TransactionID:        o.TransactionID,
		Status:               string(o.Status),
		Amount:               o.Amount,
		AmountDisplay:        FormatSubunits(o.Amount),
		Currency:             o.Currency,
		PayerID:              o.PayerID,
		GatewayTransactionID: o.GatewayTransactionID,
		Items:                o.Items,
		PaidAt:               o.PaidAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}
	now := time.Now()
	return &OrderEvent{
		ID:            ulid.Make().String(),
		TransactionID: o.TransactionID,
		Kind:          kind,
		Payload:       body,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// CallbackRecord keeps every authenticated callback for audit.
type CallbackRecord struct {
	ID                   string
	TransactionID        string
	GatewayTransactionID string
	Code                 string
	Outcome              Outcome
	Result               string
	Amount               int64
	Payload              []byte
	ReceivedAt           time.Time
}

const (
	CallbackResultAnomaly  = "anomaly"
	CallbackResultUnknown  = "unknown"
	CallbackResultNotFound = "not_found"
)

func NewCallbackRecord(v VerifiedCallback, result string) *CallbackRecord {
	return &CallbackRecord{
		ID:                   uuid.NewString(),
		TransactionID:        v.TransactionID(),
		GatewayTransactionID: v.GatewayTransactionID(),
		Code:                 string(v.Payload.Code),
		Outcome:              v.Outcome,
		Result:               result,
		Amount:               v.Payload.Data.Amount,
		Payload:              v.Raw,
		ReceivedAt:           time.Now(),
	}
}
