// Package state routes free-form updates to the handler bound to a user's
// current conversation state. The state itself is owned by the caller and
// read through a Source on every update.
package state
