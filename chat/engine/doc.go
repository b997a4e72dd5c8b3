// Package engine tracks per-user conversation state and pairs searching users.
//
// Every mutation enters through Engine.HandleEvent. Per-user state is guarded by
// a lock keyed by user id; connecting or disconnecting a pair takes both locks in
// ascending id order. Lock order across the package is: user locks, then the pool
// lock, then the connection table lock. Notifications are delivered only after
// every lock has been released.
package engine
