package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/tandembot/core/logger"
	tghelpers "github.com/m3rciful/tandembot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// State identifies a conversation step.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// Source reports the current state of a user.
type Source interface {
	StateOf(userID int64) State
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(userID int64) State

// StateOf implements Source.
func (f SourceFunc) StateOf(userID int64) State { return f(userID) }

// Router dispatches updates to the handler registered for the sender's state.
type Router struct {
	src Source

	mu       sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// NewRouter builds a router reading states from src.
func NewRouter(src Source) *Router {
	return &Router{src: src, handlers: make(map[State]tele.HandlerFunc)}
}

// Handle associates a state with its handler. A nil handler unbinds the state.
func (r *Router) Handle(st State, h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, st)
		return
	}
	r.handlers[st] = h
}

// State returns the current state of a user, or StateIdle without a source.
func (r *Router) State(userID int64) State {
	if r == nil || r.src == nil {
		return StateIdle
	}
	st := r.src.StateOf(userID)
	if st == "" {
		return StateIdle
	}
	return st
}

// GetState returns the state name, for use with middleware.State.
func (r *Router) GetState(userID int64) string {
	return string(r.State(userID))
}

// InProgress reports whether a handler is bound to the user's current state.
func (r *Router) InProgress(userID int64) bool {
	_, ok := r.handler(r.State(userID))
	return ok
}

// ManagerHandler executes the handler registered for the user's current state, if any.
func (r *Router) ManagerHandler(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	current := r.State(sender.ID)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", sender.ID),
		slog.String("state", string(current)),
	)

	if h, ok := r.handler(current); ok {
		return h(c)
	}
	return nil
}

func (r *Router) handler(st State) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[st]
	return h, ok
}
