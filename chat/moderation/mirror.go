package moderation

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/logger"
	"github.com/m3rciful/tandembot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const component = "moderation"

// Callback keys of the payment decision buttons.
const (
	CallbackPayApprove = "pay_ok"
	CallbackPayReject  = "pay_no"
)

// DefaultLogTail is the number of messages included in a disconnection log.
const DefaultLogTail = 20

// Config configures the moderation mirror.
type Config struct {
	// ChatID of the moderators' chat; zero disables mirroring.
	ChatID         int64 `yaml:"chat_id" envconfig:"MODERATION_CHAT_ID"`
	MirrorMessages bool  `yaml:"mirror_messages" envconfig:"MODERATION_MIRROR_MESSAGES"`
	HistoryLimit   int   `yaml:"history_limit" envconfig:"MODERATION_HISTORY_LIMIT"`
	LogTail        int   `yaml:"log_tail" envconfig:"MODERATION_LOG_TAIL"`
}

// Normalize fills defaults and clamps the log tail to the history limit.
func (c *Config) Normalize() {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.LogTail <= 0 {
		c.LogTail = DefaultLogTail
	}
	if c.LogTail > c.HistoryLimit {
		c.LogTail = c.HistoryLimit
	}
}

// Enabled reports whether a moderation chat is configured.
func (c Config) Enabled() bool { return c.ChatID != 0 }

// Outbox delivers messages to arbitrary chats.
type Outbox interface {
	Send(ctx context.Context, to int64, what any, opts ...any) error
	Forward(ctx context.Context, to int64, msg tele.Editable) error
}

// ProfileSource looks up cached profiles.
type ProfileSource interface {
	Profile(id engine.UserID) (engine.Profile, bool)
}

// Mirror implements engine.Observer and records relayed messages.
type Mirror struct {
	cfg     Config
	out     Outbox
	history *History
	now     func() time.Time

	mu       sync.RWMutex
	profiles ProfileSource
}

var _ engine.Observer = (*Mirror)(nil)

// NewMirror builds a mirror sending through out.
func NewMirror(cfg Config, out Outbox) *Mirror {
	cfg.Normalize()
	return &Mirror{
		cfg:     cfg,
		out:     out,
		history: NewHistory(cfg.HistoryLimit),
		now:     time.Now,
	}
}

// SetProfiles attaches the profile lookup used to describe participants.
func (m *Mirror) SetProfiles(src ProfileSource) {
	m.mu.Lock()
	m.profiles = src
	m.mu.Unlock()
}

// History exposes the per-connection message history.
func (m *Mirror) History() *History { return m.history }

// ConnectionOpened implements engine.Observer.
func (m *Mirror) ConnectionOpened(ctx context.Context, conn engine.Connection) {
	a, b := m.profile(conn.A), m.profile(conn.B)
	m.send(logger.WithConn(ctx, conn.ID), "connection.opened", RenderConnectionOpened(conn, a, b), nil)
}

// ConnectionClosed implements engine.Observer.
func (m *Mirror) ConnectionClosed(ctx context.Context, conn engine.Connection, reason engine.Reason) {
	entries, total := m.history.Take(conn.ID)
	if len(entries) > m.cfg.LogTail {
		entries = entries[len(entries)-m.cfg.LogTail:]
	}
	a, b := m.profile(conn.A), m.profile(conn.B)
	m.send(logger.WithConn(ctx, conn.ID), "connection.closed", RenderConnectionClosed(conn, a, b, reason, entries, total, m.now()), nil)
}

// PaymentRequested implements engine.Observer.
func (m *Mirror) PaymentRequested(ctx context.Context, p engine.Profile) {
	id := strconv.FormatInt(int64(p.UserID), 10)
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Approve", Unique: CallbackPayApprove, Data: id},
		{Text: "❌ Reject", Unique: CallbackPayReject, Data: id},
	})
	m.send(ctx, "payment.requested", RenderPaymentRequest(p, m.now()), markup)
}

// Record stores a relayed message in the connection history and forwards it
// to the moderation chat when message mirroring is on.
func (m *Mirror) Record(ctx context.Context, connID string, from engine.UserID, msg *tele.Message) {
	m.history.Append(connID, EntryOf(from, msg, m.now()))
	if !m.cfg.Enabled() || !m.cfg.MirrorMessages || msg == nil {
		return
	}
	if err := m.out.Forward(ctx, m.cfg.ChatID, msg); err != nil {
		logger.Warn(logger.WithConn(ctx, connID), component, "mirror.forward",
			slog.String("status", "fail"),
			slog.Int64("user_id", int64(from)),
			slog.String("err", err.Error()),
		)
	}
}

func (m *Mirror) send(ctx context.Context, event, text string, markup *tele.ReplyMarkup) {
	if !m.cfg.Enabled() {
		return
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup}
	if err := m.out.Send(ctx, m.cfg.ChatID, text, opts); err != nil {
		logger.Warn(ctx, component, event,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, component, event, slog.String("status", "ok"))
}

func (m *Mirror) profile(id engine.UserID) engine.Profile {
	m.mu.RLock()
	src := m.profiles
	m.mu.RUnlock()
	if src != nil {
		if p, ok := src.Profile(id); ok {
			return p
		}
	}
	return engine.Profile{UserID: id}
}
