package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/tandembot/core/logger"
	"github.com/m3rciful/tandembot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrInvalidRegistration is returned for empty names, nil handlers or
	// commands without a leading slash or description.
	ErrInvalidRegistration = errors.New("telegram registry: invalid registration")
	// ErrDuplicate is returned when a command, alias or callback key is taken.
	ErrDuplicate = errors.New("telegram registry: already registered")
)

// Registry holds bot commands, their reply keyboard aliases and callback
// handlers keyed by the callback unique.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	aliases          map[string]string
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
	}
}

// RegisterCommand adds a command and its aliases. Nothing is registered when
// the name or any alias is already taken.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if name == "" || name[0] != '/' || cmd.Handler == nil || cmd.Description == "" {
		return r.reject("command", name, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return r.reject("command", name, ErrDuplicate)
	}
	for _, alias := range cmd.Aliases {
		if _, ok := r.aliases[alias]; ok {
			return r.reject("alias", alias, ErrDuplicate)
		}
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = name
	}
	return nil
}

// RegisterCallback maps a callback unique to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return r.reject("callback", key, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; ok {
		return r.reject("callback", key, ErrDuplicate)
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) reject(kind, name string, err error) error {
	logger.Warn(context.Background(), "tg.wire", "register.skip",
		slog.String("op", kind),
		slog.String("name", name),
		slog.String("reason", err.Error()),
	)
	return fmt.Errorf("%w: %s %q", err, kind, name)
}

// ListCommands returns commands sorted by name. With visibleOnly, hidden
// and admin-only commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	return r.listCommands(func(c commands.Command) bool {
		return !visibleOnly || c.Public()
	})
}

func (r *Registry) listCommands(keep func(commands.Command) bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		if meta := r.commands[name]; keep(meta) {
			list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
		}
	}
	return list
}

// LookupCommand finds a command by name, with or without the slash.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// LookupAlias resolves reply keyboard labels only, so plain chat text that
// happens to equal a command name is not hijacked.
func (r *Registry) LookupAlias(text string) (string, commands.Command, bool) {
	text = strings.TrimSpace(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.aliases[text]
	if !ok || text == "" {
		return "", commands.Command{}, false
	}
	return name, r.commands[name], true
}

// Commands returns a snapshot of all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the sorted callback keys.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound sets the fallback handler for unknown callbacks. The
// handler answers the callback itself. A nil h clears it.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the fallback handler for unknown callbacks, or nil.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text no route claimed.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the text fallback handler, if any.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// CommandPublisher is the part of *tele.Bot that sets command menus.
type CommandPublisher interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the public command menu and, when adminID is
// set, a menu including moderator commands scoped to the admin's chat.
func InitBotCommands(bot CommandPublisher, reg *Registry, adminID int64) {
	publish := func(scope string, args ...interface{}) {
		if err := bot.SetCommands(args...); err != nil {
			logger.Error(context.Background(), "tg.wire", "register.commands.set_failed",
				slog.String("op", scope),
				slog.String("err", err.Error()),
			)
		}
	}
	publish("default", reg.ListCommands(true))
	if adminID != 0 {
		admin := reg.listCommands(func(c commands.Command) bool { return !c.Hidden })
		publish("admin", admin, tele.CommandScope{Type: tele.CommandScopeChat, ChatID: adminID})
	}
}
