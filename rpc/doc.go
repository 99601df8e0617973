// Package rpc provides the transport core of dBot: the wire framing between the
// session server and the automation drivers, the per connection request/response
// channel and the session server that hands every connection to an entry point.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures, logging and process metrics used across
//     the RPC system.
//
//   - codec: The length-prefixed frame formats (text request, binary push,
//     response) and the canonical string form of arguments.
//
//   - transport: The channel and session server abstractions with pluggable
//     listeners (TCP, Unix sockets).
//
//   - server: The session server facade (validation, logging setup, shutdown).
//
//   - client: Command helpers that turn raw replies into booleans, optional values,
//     polled values and file transfers.
//
//   - driver: The driver side of the protocol, used for smoke tests and testing.
package rpc
