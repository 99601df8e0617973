// Package base provides the transport core of dBot, independent of the specific
// listener type (TCP, Unix sockets). Protocol specific connectors plug into it
// through IServerConnector.
//
// The package focuses on:
//   - The connection channel: one request frame out, exactly one reply frame in
//   - The binary file transfer variant (push / pull) on the same locked socket
//   - The session server: accept loop and one goroutine per connection
//
// Key Components:
//
//   - channel: Implements transport.IChannel for one net.Conn. A single mutex
//     spans writing the request and reading the complete reply, so requests on a
//     connection are strictly sequential and reply N always belongs to request N.
//     Replies are read in chunks of ReadChunkSize (64 KiB by default) until the
//     declared length is satisfied; bytes past the end of a reply are kept and
//     become the start of the next one. Any transport or framing failure makes the
//     channel unusable, later requests return the same error.
//
//   - serverTransport: Accepts connections, binds each to a channel and calls the
//     registered entry point in its own goroutine. A panic or error in one entry
//     point is logged and only ends that session. Close stops the listener, closes
//     all active channels and waits for their goroutines.
//
// Observability:
//
//	Every outgoing frame and every completed reply is written to the "transport"
//	logger at debug level. Process wide counters are kept in rpc/common, per
//	channel statistics in a go-metrics registry (Stats) that is summarized when a
//	session ends.
//
// Thread Safety:
//
//	All public methods are safe for concurrent use. Close may be called while a
//	request is blocked in a read, the request then fails with ErrChannelClosed.
package base
