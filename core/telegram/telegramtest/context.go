// Package telegramtest provides an in-memory tele.Context for handler tests.
package telegramtest

import (
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Context is a tele.Context double recording replies. Methods not
// overridden here panic when called.
type Context struct {
	tele.Context

	User     *tele.User
	Msg      *tele.Message
	Cb       *tele.Callback
	UpdateID int

	mu        sync.Mutex
	store     map[string]any
	Sent      []any
	Options   [][]any
	Responses []*tele.CallbackResponse
	// Answers counts Respond calls; Telegram accepts one per callback.
	Answers int
}

// Text builds a context carrying a text message from userID.
func Text(userID int64, text string) *Context {
	u := &tele.User{ID: userID, FirstName: "user"}
	return &Context{
		User: u,
		Msg:  &tele.Message{ID: 1, Sender: u, Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate}, Text: text},
	}
}

// Callback builds a context carrying callback data "\f<unique>|<payload>".
func Callback(userID int64, unique, payload string) *Context {
	u := &tele.User{ID: userID, FirstName: "user"}
	msg := &tele.Message{ID: 2, Sender: u, Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate}}
	return &Context{
		User: u,
		Msg:  msg,
		Cb:   &tele.Callback{ID: "cb", Sender: u, Message: msg, Data: "\f" + unique + "|" + payload},
	}
}

// Update implements tele.Context.
func (c *Context) Update() tele.Update {
	return tele.Update{ID: c.UpdateID, Message: c.messageUpdate(), Callback: c.Cb}
}

func (c *Context) messageUpdate() *tele.Message {
	if c.Cb != nil {
		return nil
	}
	return c.Msg
}

// Sender implements tele.Context.
func (c *Context) Sender() *tele.User { return c.User }

// Chat implements tele.Context.
func (c *Context) Chat() *tele.Chat {
	if c.Msg != nil && c.Msg.Chat != nil {
		return c.Msg.Chat
	}
	if c.User != nil {
		return &tele.Chat{ID: c.User.ID}
	}
	return nil
}

// Message implements tele.Context.
func (c *Context) Message() *tele.Message { return c.Msg }

// Callback implements tele.Context.
func (c *Context) Callback() *tele.Callback { return c.Cb }

// Text implements tele.Context.
func (c *Context) Text() string {
	if c.Msg == nil {
		return ""
	}
	if c.Msg.Text != "" {
		return c.Msg.Text
	}
	return c.Msg.Caption
}

// Args implements tele.Context.
func (c *Context) Args() []string {
	if c.Cb != nil {
		return nil
	}
	fields := strings.Fields(c.Text())
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		return fields[1:]
	}
	return fields
}

// Get implements tele.Context.
func (c *Context) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

// Set implements tele.Context.
func (c *Context) Set(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = val
}

// Send implements tele.Context.
func (c *Context) Send(what interface{}, opts ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, what)
	c.Options = append(c.Options, opts)
	return nil
}

// Reply implements tele.Context.
func (c *Context) Reply(what interface{}, opts ...interface{}) error {
	return c.Send(what, opts...)
}

// Edit implements tele.Context.
func (c *Context) Edit(what interface{}, opts ...interface{}) error {
	return c.Send(what, opts...)
}

// EditOrSend implements tele.Context.
func (c *Context) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.Send(what, opts...)
}

// Respond implements tele.Context.
func (c *Context) Respond(resp ...*tele.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Answers++
	c.Responses = append(c.Responses, resp...)
	return nil
}

// Texts returns every string reply in order.
func (c *Context) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.Sent {
		if t, ok := s.(string); ok {
			out = append(out, t)
		}
	}
	return out
}

// LastText returns the most recent string reply.
func (c *Context) LastText() string {
	texts := c.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}
