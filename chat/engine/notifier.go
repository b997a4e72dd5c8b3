package engine

import (
	"context"
	"time"
)

// Notifier informs users about transitions they did not trigger themselves.
// Implementations live in the message layer.
type Notifier interface {
	NotifyMatched(ctx context.Context, a, b UserID) error
	NotifyDisconnected(ctx context.Context, user UserID, reason Reason) error
	NotifyBlocked(ctx context.Context, user UserID) error
	NotifyPayment(ctx context.Context, user UserID, approved bool, premiumUntil time.Time) error
}

// Observer receives connection and payment events for moderation. Calls happen
// outside of every engine lock; errors are the observer's own business.
type Observer interface {
	ConnectionOpened(ctx context.Context, conn Connection)
	ConnectionClosed(ctx context.Context, conn Connection, reason Reason)
	PaymentRequested(ctx context.Context, profile Profile)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyMatched(context.Context, UserID, UserID) error          { return nil }
func (NopNotifier) NotifyDisconnected(context.Context, UserID, Reason) error     { return nil }
func (NopNotifier) NotifyBlocked(context.Context, UserID) error                  { return nil }
func (NopNotifier) NotifyPayment(context.Context, UserID, bool, time.Time) error { return nil }

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) ConnectionOpened(context.Context, Connection)         {}
func (NopObserver) ConnectionClosed(context.Context, Connection, Reason) {}
func (NopObserver) PaymentRequested(context.Context, Profile)            {}

type noticeKind uint8

const (
	noticeMatched noticeKind = iota + 1
	noticeDisconnected
	noticeBlocked
	noticePayment
	noticeOpened
	noticeClosed
	noticePaymentRequested
)

// notice is a notification collected under lock and delivered after unlock.
type notice struct {
	kind     noticeKind
	user     UserID
	other    UserID
	reason   Reason
	approved bool
	until    time.Time
	conn     Connection
	profile  Profile
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
