package adapter

import "context"

// StaffMessenger sends plain text to the restaurant staff chat.
type StaffMessenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
