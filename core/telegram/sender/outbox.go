package sender

import (
	"context"
	"errors"
	"strconv"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned when the outbox has no Telegram API attached yet.
var ErrNotBound = errors.New("telegram sender: outbox not bound")

// API is the subset of *tele.Bot used to reach arbitrary chats.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
	Forward(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
}

// ChatEndpoint is the dispatcher endpoint for a chat; all sends to one chat
// share it.
func ChatEndpoint(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

// Outbox delivers messages to chats other than the one of the current update.
// Calls go through the dispatcher when one is bound and run inline otherwise.
type Outbox struct {
	mu  sync.RWMutex
	api API
	d   *Dispatcher
}

// NewOutbox returns an unbound outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Bind attaches the Telegram API and, optionally, the dispatcher used for delivery.
func (o *Outbox) Bind(api API, d *Dispatcher) {
	o.mu.Lock()
	o.api = api
	o.d = d
	o.mu.Unlock()
}

// Send enqueues a message for the given chat.
func (o *Outbox) Send(ctx context.Context, to int64, what any, opts ...any) error {
	return o.run(ctx, "send", to, func(api API) error {
		_, err := api.Send(tele.ChatID(to), what, opts...)
		return err
	})
}

// Copy enqueues a copy of msg for the given chat.
func (o *Outbox) Copy(ctx context.Context, to int64, msg tele.Editable, opts ...any) error {
	return o.run(ctx, "copy", to, func(api API) error {
		_, err := api.Copy(tele.ChatID(to), msg, opts...)
		return err
	})
}

// Forward enqueues a forward of msg to the given chat.
func (o *Outbox) Forward(ctx context.Context, to int64, msg tele.Editable) error {
	return o.run(ctx, "forward", to, func(api API) error {
		_, err := api.Forward(tele.ChatID(to), msg)
		return err
	})
}

func (o *Outbox) run(ctx context.Context, action string, to int64, call func(API) error) error {
	o.mu.RLock()
	api, d := o.api, o.d
	o.mu.RUnlock()
	if api == nil {
		return ErrNotBound
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if d == nil {
		return call(api)
	}
	return d.Enqueue(context.WithoutCancel(ctx), action, ChatEndpoint(to), func() error {
		return call(api)
	})
}
