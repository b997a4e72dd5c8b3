package moderation

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/telegram/format"
)

const (
	stampLayout = "2006-01-02 15:04 UTC"
	clockLayout = "15:04"
	textLimit   = 200
)

// RenderConnectionOpened describes a new connection.
func RenderConnectionOpened(conn engine.Connection, a, b engine.Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔗 *Connected* `%s`\n", conn.ID)
	sb.WriteString(participant(a) + "\n")
	sb.WriteString(participant(b) + "\n")
	sb.WriteString("Started: " + conn.StartedAt.UTC().Format(stampLayout))
	return sb.String()
}

// RenderConnectionClosed renders the chat log of a finished connection.
// total counts every message of the connection, entries only the shown tail.
func RenderConnectionClosed(conn engine.Connection, a, b engine.Profile, reason engine.Reason, entries []Entry, total int, at time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔚 *Disconnected* `%s`\n", conn.ID)
	sb.WriteString(participant(a) + "\n")
	sb.WriteString(participant(b) + "\n")
	sb.WriteString("Reason: " + format.MD(string(reason)) + "\n")
	sb.WriteString("Duration: " + at.Sub(conn.StartedAt).Round(time.Second).String() + "\n")
	if len(entries) < total {
		fmt.Fprintf(&sb, "Messages: %d, showing last %d", total, len(entries))
	} else {
		fmt.Fprintf(&sb, "Messages: %d", total)
	}

	names := map[engine.UserID]string{a.UserID: displayName(a), b.UserID: displayName(b)}
	for _, e := range entries {
		name, ok := names[e.From]
		if !ok {
			name = fmt.Sprintf("%d", e.From)
		}
		fmt.Fprintf(&sb, "\n`%s` %s: %s", e.At.UTC().Format(clockLayout), name, body(e))
	}
	return sb.String()
}

// RenderPaymentRequest asks moderators to approve a premium payment.
func RenderPaymentRequest(p engine.Profile, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("💳 *Premium request*\n")
	sb.WriteString(participant(p) + "\n")
	if p.IsPremium(now) {
		sb.WriteString("Premium: until " + p.PremiumUntil.UTC().Format(stampLayout))
	} else {
		sb.WriteString("Premium: inactive")
	}
	return sb.String()
}

func participant(p engine.Profile) string {
	lang := "?"
	if p.Language != "" {
		lang = engine.LanguageName(p.Language)
	}
	country := "?"
	if p.Country != "" {
		country = engine.CountryName(p.Country)
	}
	return fmt.Sprintf("%s (`%d`) · %s · %s", displayName(p), p.UserID, lang, country)
}

func displayName(p engine.Profile) string {
	if p.Name == "" {
		return "unknown"
	}
	return format.MD(p.Name)
}

func body(e Entry) string {
	text := format.MD(format.Truncate(e.Text, textLimit))
	if e.Kind == "text" {
		return text
	}
	if text == "" {
		return "(" + e.Kind + ")"
	}
	return "(" + e.Kind + ") " + text
}
