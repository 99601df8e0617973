package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBot/rpc/codec"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/time/rate"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// channel binds one accepted connection. The lock is held from the first byte
// written until the last byte of the reply was read, so a connection never has
// more than one request in flight.
type channel struct {
	conn   net.Conn
	addr   string
	config common.ChannelConfig

	lock    chan struct{} // One slot semaphore, protects the exchange and all fields below
	readBuf []byte        // Scratch buffer for a single socket read
	pending []byte        // Bytes read past the end of the previous reply
	broken  error         // First fatal error, returned by every later request

	closed  atomic.Bool
	limiter *rate.Limiter

	stats    metrics.Registry
	requests metrics.Timer
	sent     metrics.Counter
	received metrics.Counter
	failures metrics.Counter
}

// -----------------------------------------------------------
// Channel Factory Method
// -----------------------------------------------------------

// NewChannel binds a connection to a new channel
func NewChannel(conn net.Conn, config common.ChannelConfig) transport.IChannel {
	return newChannel(conn, config)
}

func newChannel(conn net.Conn, config common.ChannelConfig) *channel {
	if config.ReadChunkSize <= 0 {
		config.ReadChunkSize = common.DefaultReadChunkSize
	}

	addr := "unknown"
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}

	stats := metrics.NewRegistry()
	c := &channel{
		conn:     conn,
		addr:     addr,
		config:   config,
		lock:     make(chan struct{}, 1),
		readBuf:  make([]byte, config.ReadChunkSize),
		stats:    stats,
		requests: metrics.NewRegisteredTimer("requests", stats),
		sent:     metrics.NewRegisteredCounter("bytes.sent", stats),
		received: metrics.NewRegisteredCounter("bytes.received", stats),
		failures: metrics.NewRegisteredCounter("errors", stats),
	}

	// Optional pacing of requests on this connection
	if config.RequestsPerSecond > 0 {
		burst := config.RequestBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IChannel)
// --------------------------------------------------------------------------

func (c *channel) Request(args ...any) ([]byte, error) {
	return c.exchange(context.Background(), common.RequestKindText, codec.Encode(args...))
}

func (c *channel) RequestContext(ctx context.Context, args ...any) ([]byte, error) {
	return c.exchange(ctx, common.RequestKindText, codec.Encode(args...))
}

func (c *channel) RequestString(args ...any) (string, error) {
	body, err := c.Request(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimRightFunc(string(body), unicode.IsSpace), nil
}

func (c *channel) Push(tag, path string, payload []byte) ([]byte, error) {
	return c.exchange(context.Background(), common.RequestKindPush, codec.EncodePush(tag, path, payload))
}

func (c *channel) Pull(args ...any) ([]byte, error) {
	return c.exchange(context.Background(), common.RequestKindPull, codec.Encode(args...))
}

func (c *channel) RemoteAddr() string {
	return c.addr
}

func (c *channel) Stats() metrics.Registry {
	return c.stats
}

func (c *channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Not taking the lock here unblocks a request stuck in a read
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// exchange writes one frame and reads exactly one reply while holding the lock
func (c *channel) exchange(ctx context.Context, kind common.RequestKind, frame []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case c.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.lock }()

	if c.closed.Load() {
		return nil, transport.ErrChannelClosed
	}
	if c.broken != nil {
		return nil, c.broken
	}

	start := time.Now()

	// Bound the whole exchange if configured
	if c.config.TimeoutSecond > 0 {
		deadline := start.Add(time.Duration(c.config.TimeoutSecond) * time.Second)
		if err := c.conn.SetDeadline(deadline); err != nil {
			return nil, c.fail(&transport.TransportError{Op: "set deadline", Addr: c.addr, Err: err})
		}
	}

	Logger.Debugf("---> %s %q", c.addr, c.trace(frame))
	if err := c.writeFrame(frame); err != nil {
		return nil, c.fail(err)
	}

	body, err := c.readResponse()
	if err != nil {
		return nil, c.fail(err)
	}
	Logger.Debugf("<--- %s %q", c.addr, c.trace(body))

	c.requests.UpdateSince(start)
	common.ObserveRequest(kind, start)
	return body, nil
}

// writeFrame writes the complete frame, looping on short writes
func (c *channel) writeFrame(frame []byte) error {
	for len(frame) > 0 {
		n, err := c.conn.Write(frame)
		c.sent.Inc(int64(n))
		common.BytesSent.Add(n)
		frame = frame[n:]
		if err != nil {
			return c.classify("write", err)
		}
		if n == 0 {
			return &transport.TransportError{Op: "write", Addr: c.addr, Err: io.ErrShortWrite}
		}
	}
	return nil
}

// readResponse reads one reply of the format {len}/{body}. The body may arrive
// in any number of reads, bytes past the declared length are kept for the next reply.
func (c *channel) readResponse() ([]byte, error) {
	buf := c.pending
	c.pending = nil

	// Read until the length prefix is complete
	for {
		complete, err := codec.ResponseHeaderComplete(buf)
		if err != nil {
			return nil, err
		}
		if complete {
			break
		}
		if buf, err = c.readChunk(buf); err != nil {
			return nil, err
		}
	}

	declared, body, err := codec.DecodeResponse(buf)
	if err != nil {
		return nil, err
	}

	// Reserve room for large transfers, the declared length is not trusted beyond MaxPrealloc
	if want := min(declared, codec.MaxPrealloc); cap(body) < want {
		grown := make([]byte, len(body), want)
		copy(grown, body)
		body = grown
	}

	// Read until the declared length is satisfied
	for len(body) < declared {
		if body, err = c.readChunk(body); err != nil {
			return nil, err
		}
	}

	// Keep the surplus, it is the start of the next reply
	if len(body) > declared {
		c.pending = append([]byte(nil), body[declared:]...)
		body = body[:declared:declared]
	}
	return body, nil
}

// readChunk performs a single socket read and appends the result to dst
func (c *channel) readChunk(dst []byte) ([]byte, error) {
	n, err := c.conn.Read(c.readBuf)
	if n > 0 {
		c.received.Inc(int64(n))
		common.BytesReceived.Add(n)
		dst = append(dst, c.readBuf[:n]...)
	}
	if err != nil {
		return dst, c.classify("read", err)
	}
	if n == 0 {
		return dst, &transport.PeerDisconnectedError{Addr: c.addr}
	}
	return dst, nil
}

// classify maps a socket error to the transport error taxonomy
func (c *channel) classify(op string, err error) error {
	switch {
	case c.closed.Load():
		return transport.ErrChannelClosed
	case errors.Is(err, io.EOF):
		return &transport.PeerDisconnectedError{Addr: c.addr}
	default:
		return &transport.TransportError{Op: op, Addr: c.addr, Err: err}
	}
}

// fail marks the channel as unusable, logs the error and returns it
func (c *channel) fail(err error) error {
	if errors.Is(err, codec.ErrMalformedFrame) {
		err = fmt.Errorf("%s: %w", c.addr, err)
	}
	c.broken = err
	c.failures.Inc(1)
	common.RequestErrors.Inc()
	if !errors.Is(err, transport.ErrChannelClosed) {
		Logger.Errorf("send/read tcp data error: %v", err)
	}
	return err
}

// trace returns the part of a frame written to the debug log
func (c *channel) trace(b []byte) []byte {
	if c.config.MaxTraceBytes > 0 && len(b) > c.config.MaxTraceBytes {
		return b[:c.config.MaxTraceBytes]
	}
	return b
}

// summary formats the channel statistics for the session log
func (c *channel) summary() string {
	return fmt.Sprintf("requests=%d mean=%s p99=%s sent=%dB received=%dB errors=%d",
		c.requests.Count(),
		time.Duration(c.requests.Mean()),
		time.Duration(c.requests.Percentile(0.99)),
		c.sent.Count(),
		c.received.Count(),
		c.failures.Count(),
	)
}

// release stops the metrics of the channel
func (c *channel) release() {
	c.stats.UnregisterAll()
}
