// Package moderation mirrors chat activity to a moderators' Telegram chat:
// new connections, relayed messages, disconnection logs and premium
// payment requests awaiting a decision.
package moderation
