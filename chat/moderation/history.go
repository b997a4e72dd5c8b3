package moderation

import (
	"sync"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"

	tele "gopkg.in/telebot.v4"
)

// DefaultHistoryLimit bounds the messages kept per connection.
const DefaultHistoryLimit = 100

// closedMemory is how many recently taken connection ids are remembered, so a
// relay racing the close cannot recreate their history.
const closedMemory = 1024

// Entry is one relayed message.
type Entry struct {
	From engine.UserID
	Kind string
	Text string
	At   time.Time
}

// History keeps the most recent messages of every open connection.
type History struct {
	mu    sync.Mutex
	limit int
	logs  map[string][]Entry
	total map[string]int

	closed      map[string]struct{}
	closedOrder []string
}

// NewHistory returns a history keeping at most limit entries per connection.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit: limit,
		logs:  make(map[string][]Entry),
		total: make(map[string]int),

		closed: make(map[string]struct{}),
	}
}

// Append records e for the connection, evicting the oldest entry when full.
// Entries for a connection already taken are dropped.
func (h *History) Append(connID string, e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, done := h.closed[connID]; done {
		return
	}
	log := h.logs[connID]
	if len(log) >= h.limit {
		log = append(log[:0], log[len(log)-h.limit+1:]...)
	}
	h.logs[connID] = append(log, e)
	h.total[connID]++
}

// Take removes and returns the kept entries and the number of messages ever
// recorded for the connection.
func (h *History) Take(connID string) ([]Entry, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	log, total := h.logs[connID], h.total[connID]
	delete(h.logs, connID)
	delete(h.total, connID)
	h.markClosed(connID)
	return log, total
}

func (h *History) markClosed(connID string) {
	if _, ok := h.closed[connID]; ok {
		return
	}
	if len(h.closedOrder) >= closedMemory {
		delete(h.closed, h.closedOrder[0])
		h.closedOrder = h.closedOrder[1:]
	}
	h.closed[connID] = struct{}{}
	h.closedOrder = append(h.closedOrder, connID)
}

// Len returns the number of kept entries for the connection.
func (h *History) Len(connID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.logs[connID])
}

// KindOf names the content type of a Telegram message.
func KindOf(msg *tele.Message) string {
	switch {
	case msg == nil:
		return "other"
	case msg.Photo != nil:
		return "photo"
	case msg.Sticker != nil:
		return "sticker"
	case msg.Voice != nil:
		return "voice"
	case msg.VideoNote != nil:
		return "video_note"
	case msg.Video != nil:
		return "video"
	case msg.Animation != nil:
		return "animation"
	case msg.Audio != nil:
		return "audio"
	case msg.Document != nil:
		return "document"
	case msg.Text != "":
		return "text"
	}
	return "other"
}

// EntryOf converts a relayed message into a history entry.
func EntryOf(from engine.UserID, msg *tele.Message, now time.Time) Entry {
	e := Entry{From: from, Kind: KindOf(msg), At: now}
	if msg == nil {
		return e
	}
	e.Text = msg.Text
	if e.Text == "" {
		e.Text = msg.Caption
	}
	if msg.Unixtime != 0 {
		e.At = msg.Time()
	}
	return e
}
