// Package wsgateway accepts game clients' WebSocket connections; the
// bridge client and public IP discovery open their own outbound
// sockets elsewhere. Everything above it (pkg/handler and
// below) is transport-agnostic and exercised in tests through fakes;
// wsgateway is what plugs the real world in, grounded on the
// teacher's pkg/server WebSocket handling.
package wsgateway
