// Package bridge implements the outbound connection to the central
// control server: login, room/user-moderation notifications, and an
// exponential-backoff reconnect loop.
package bridge
