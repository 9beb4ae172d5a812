package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"
)

// DeliveryError wraps a failed send to Target.
type DeliveryError struct {
	Target string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sender is the part of *telebot.Bot the notifier needs.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Telegram delivers plain text to a chat. A target is the chat ID in
// decimal, as produced by Target.
type Telegram struct {
	bot Sender
}

func NewTelegram(bot Sender) *Telegram {
	return &Telegram{bot: bot}
}

func Target(chatID int64) string { return strconv.FormatInt(chatID, 10) }

func (t *Telegram) Send(ctx context.Context, target, text string) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Target: target, Err: err}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return &DeliveryError{Target: target, Err: fmt.Errorf("bad chat id: %w", err)}
	}
	if _, err := t.bot.Send(telebot.ChatID(id), text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return &DeliveryError{Target: target, Err: err}
	}
	return nil
}
