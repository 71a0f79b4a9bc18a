// Command playrelay-server runs the relay server: it accepts
// WebSocket connections from game clients, authenticates them against
// a central control server over the bridge connection, and relays
// player state and events between the members of each session.
//
// # Architecture
//
// The server follows the same separation of concerns as the rest of
// this module:
//
//   - Configuration loading and validation (pkg/config)
//   - Bridge connection to the central control server (pkg/bridge)
//   - Per-connection message handling and session state (pkg/handler)
//   - Background scheduling: status logging, cache vacuuming, script
//     heartbeats (pkg/handler.Scheduler)
//   - Client transport, including per-frame compression (pkg/wsgateway,
//     pkg/compression)
//   - Prometheus metrics (pkg/metrics)
//
// # Startup Sequence
//
// 1. Load configuration from the path given by --config (default
//    config.toml), writing a default file if none exists
// 2. Configure console and, if enabled, file logging at their
//    independently configured levels
// 3. Restore the bridge's user moderation cache from its qdb snapshot
//    file, if one exists, then connect the bridge client to the
//    central control server
// 4. Start the metrics server, the client transport listener, the
//    background scheduler, and the periodic qdb snapshot writer
// 5. Handle SIGINT and SIGTERM by cancelling every subsystem, waiting
//    for them to stop, and writing one final qdb snapshot
//
// # Usage
//
// Run the server with the default config path:
//
//	./playrelay-server
//
// Run with an explicit config file:
//
//	./playrelay-server --config /etc/playrelay/config.toml
package main
