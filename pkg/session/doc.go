// Package session implements the game session: a concurrent
// participant map holding each player's last-known state plus
// per-participant bounded outbound queues, and the session manager
// registry keyed by 64-bit session id.
package session
