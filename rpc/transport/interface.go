package transport

import (
	"context"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/rcrowley/go-metrics"
	"net"
)

// --------------------------------------------------------------------------
// Connection Channel
// --------------------------------------------------------------------------

// IChannel is the handle a session entry point receives for its connection.
// It exchanges exactly one reply per request; concurrent calls are serialized,
// a second request is never written before the previous reply was fully read.
type IChannel interface {
	// Request sends a text frame and returns the raw reply body
	Request(args ...any) ([]byte, error)
	// RequestContext is Request with a context used while waiting for the
	// connection lock and the request pacing limiter
	RequestContext(ctx context.Context, args ...any) ([]byte, error)
	// RequestString is Request with the reply decoded as UTF-8 and trailing
	// whitespace removed
	RequestString(args ...any) (string, error)

	// Push sends a binary file transfer frame (tag, destination path, payload)
	Push(tag, path string, payload []byte) ([]byte, error)
	// Pull sends a text frame and returns the reply as raw bytes.
	// A body equal to "null" means the remote resource does not exist.
	Pull(args ...any) ([]byte, error)

	// RemoteAddr returns the address of the connected driver
	RemoteAddr() string
	// Stats returns the per-channel metrics registry
	Stats() metrics.Registry
	// Close closes the underlying connection
	Close() error
}

// --------------------------------------------------------------------------
// Session Server Transport
// --------------------------------------------------------------------------

// EntryPoint is invoked once per accepted connection with the bound channel as
// its sole argument. The returned error is only logged, the session ends when
// the entry point returns.
type EntryPoint func(ch IChannel) error

// IRPCServerTransport is the interface of the session server transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the entry point called for every session
	RegisterHandler(entry EntryPoint)
	// Listen binds the listener and serves sessions until Close is called
	Listen(config common.ServerConfig) error
	// Addr returns the bound listener address (nil before Listen)
	Addr() net.Addr
	// Ready is closed once the listener is bound
	Ready() <-chan struct{}
	// Close stops accepting, closes all active sessions and waits for them
	Close() error
	// Name returns the transport type ("tcp", "unix")
	Name() string
}
