// Package clientdata implements the per-connection authenticated
// identity (TokenData), the connection-scoped client state
// (ClientData) that layers icons/roles/rate limiters/session
// membership on top of it, and the global account-id -> client
// registry (Store) that stands in for a weak-reference map.
package clientdata
