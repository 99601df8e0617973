// Package transport defines the interfaces of the dBot transport layer. A driver
// (Android, Windows or Web automation host) connects to the session server, and
// every accepted connection is handed to a user supplied entry point as an
// IChannel.
//
// The package focuses on:
//   - The request/response contract of a single connection
//   - The binary file transfer variant (push / pull)
//   - The session server contract (entry point registration, listen, close)
//   - The transport error taxonomy
//
// Key Components:
//
//   - IChannel: One connection. Request writes one frame and reads exactly one
//     reply; requests on the same channel never interleave.
//
//   - IRPCServerTransport: Accepts connections and runs the registered EntryPoint
//     for each of them in its own goroutine.
//
//   - PeerDisconnectedError / TransportError: Fatal to the channel. They are never
//     retried by the transport, retrying belongs to the caller (see lib/wait).
package transport
