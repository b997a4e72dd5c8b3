// Package commands describes slash commands registered with the bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command with its menu entry. Aliases are reply
// keyboard labels that trigger the same handler.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are gated to the moderator and shown only in the
	// moderator's command menu.
	AdminOnly bool
	// Hidden commands work but never appear in a menu.
	Hidden  bool
	Aliases []string
}

// Public reports whether the command belongs in everyone's menu.
func (c Command) Public() bool { return !c.Hidden && !c.AdminOnly }
