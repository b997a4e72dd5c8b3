package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition          = errors.New("invalid transition")
	ErrUserBlocked                = errors.New("user is blocked")
	ErrFilterNotAllowed           = errors.New("filter requires premium")
	ErrAlreadyConnected           = errors.New("already connected")
	ErrPartnerNotFound            = errors.New("partner not found")
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
	ErrInvariantViolation         = errors.New("invariant violation")
	ErrProfileIncomplete          = errors.New("profile incomplete")
	ErrInvalidField               = errors.New("invalid field")
)

var errorCodes = map[error]string{
	ErrInvalidTransition:          "INVALID_TRANSITION",
	ErrUserBlocked:                "USER_BLOCKED",
	ErrFilterNotAllowed:           "FILTER_NOT_ALLOWED",
	ErrAlreadyConnected:           "ALREADY_CONNECTED",
	ErrPartnerNotFound:            "PARTNER_NOT_FOUND",
	ErrNotificationDeliveryFailed: "NOTIFICATION_DELIVERY_FAILED",
	ErrInvariantViolation:         "INVARIANT_VIOLATION",
	ErrProfileIncomplete:          "PROFILE_INCOMPLETE",
	ErrInvalidField:               "INVALID_FIELD",
}

// TransitionError is returned when an event is rejected. The session is left
// untouched.
type TransitionError struct {
	Err    error
	User   UserID
	State  State
	Event  EventKind
	Detail string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: user %d in %s", e.Event, e.User, e.State)
	if e.Detail != "" {
		return msg + ": " + e.Err.Error() + ": " + e.Detail
	}
	return msg + ": " + e.Err.Error()
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Code returns a stable identifier for logs.
func (e *TransitionError) Code() string { return codeOf(e.Err) }

func reject(err error, user UserID, st State, kind EventKind) *TransitionError {
	return &TransitionError{Err: err, User: user, State: st, Event: kind}
}

func rejectf(err error, user UserID, st State, kind EventKind, format string, args ...any) *TransitionError {
	return &TransitionError{Err: err, User: user, State: st, Event: kind, Detail: fmt.Sprintf(format, args...)}
}

// NotificationError reports notifier failures for a transition that was
// already committed.
type NotificationError struct {
	Errs []error
}

func (e *NotificationError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = err.Error()
	}
	return ErrNotificationDeliveryFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *NotificationError) Unwrap() []error {
	return append([]error{ErrNotificationDeliveryFailed}, e.Errs...)
}

func (e *NotificationError) Code() string { return codeOf(ErrNotificationDeliveryFailed) }

func codeOf(err error) string {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "INTERNAL"
}
