// Package tcp implements the TCP connector of the dBot session server. It
// provides the concrete base.IServerConnector the drivers connect to.
//
// Key Components:
//
//   - serverConnector: Binds an IPv4 listener with SO_REUSEADDR (and optionally
//     SO_REUSEPORT) set before bind, so a restarted script does not fail with
//     "address already in use". Accepted connections get TCP_NODELAY, socket buffer
//     sizes (1 MiB send buffer by default), keep-alive and linger applied.
//
// See the base package documentation for the channel and session semantics.
package tcp
