package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"restaurant-storefront/internal/domain/model"
	"restaurant-storefront/internal/domain/ports/adapter"
)

var _ adapter.OrderNotifier = (*TelegramNotifier)(nil)

// TelegramNotifier tells restaurant staff about settled orders.
type TelegramNotifier struct {
	messenger adapter.StaffMessenger
	chatID    int64
}

func NewTelegramNotifier(m adapter.StaffMessenger, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{messenger: m, chatID: chatID}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

type eventBody struct {
	TransactionID        string           `json:"transactionId"`
	Status               string           `json:"status"`
	AmountDisplay        string           `json:"amountDisplay"`
	Currency             string           `json:"currency"`
	GatewayTransactionID string           `json:"gatewayTransactionId"`
	Items                []model.LineItem `json:"items"`
}

func (n *TelegramNotifier) NotifyOrderEvent(ctx context.Context, ev *model.OrderEvent) error {
	text, err := FormatStaffMessage(ev)
	if err != nil {
		return err
	}
	return n.messenger.SendMessage(ctx, n.chatID, text)
}

// FormatStaffMessage renders an order event as Telegram HTML.
func FormatStaffMessage(ev *model.OrderEvent) (string, error) {
	var body eventBody
	if err := json.Unmarshal(ev.Payload, &body); err != nil {
		return "", fmt.Errorf("decode order event %s: %w", ev.ID, err)
	}

	var b strings.Builder
	switch ev.Kind {
	case model.EventOrderPaid:
		b.WriteString("✅ <b>New paid order</b>\n")
	case model.EventOrderFailed:
		b.WriteString("❌ <b>Payment failed</b>\n")
	default:
		b.WriteString("<b>" + html.EscapeString(ev.Kind) + "</b>\n")
	}
	fmt.Fprintf(&b, "Order: <code>%s</code>\n", html.EscapeString(body.TransactionID))
	fmt.Fprintf(&b, "Amount: %s %s\n", html.EscapeString(body.AmountDisplay), html.EscapeString(body.Currency))
	if body.GatewayTransactionID != "" {
		fmt.Fprintf(&b, "Gateway ref: <code>%s</code>\n", html.EscapeString(body.GatewayTransactionID))
	}
	for _, it := range body.Items {
		fmt.Fprintf(&b, "• %d × %s\n", it.Quantity, html.EscapeString(it.Name))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
