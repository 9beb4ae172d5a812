package notify

import (
	"context"
	"errors"
	"testing"

	"gopkg.in/telebot.v3"
)

type fakeSender struct {
	to   telebot.Recipient
	what interface{}
	err  error
}

func (f *fakeSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.to, f.what = to, what
	if f.err != nil {
		return nil, f.err
	}
	return &telebot.Message{}, nil
}

func TestSendParsesTarget(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	n := NewTelegram(fs)
	if err := n.Send(context.Background(), Target(-100123), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fs.to.Recipient() != "-100123" || fs.what != "hello" {
		t.Fatalf("sent %v to %v", fs.what, fs.to)
	}
}

func TestSendErrors(t *testing.T) {
	t.Parallel()
	var de *DeliveryError

	n := NewTelegram(&fakeSender{})
	if err := n.Send(context.Background(), "not-a-chat", "x"); !errors.As(err, &de) || de.Target != "not-a-chat" {
		t.Fatalf("bad target err = %v", err)
	}

	boom := errors.New("telegram: chat not found (400)")
	n = NewTelegram(&fakeSender{err: boom})
	if err := n.Send(context.Background(), "42", "x"); !errors.As(err, &de) || !errors.Is(err, boom) {
		t.Fatalf("send err = %v", err)
	}
}
