package base

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBot/rpc/codec"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// newTestChannel returns a channel bound to one end of a pipe and the driver end
func newTestChannel(t *testing.T, config common.ChannelConfig) (*channel, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	ch := newChannel(local, config)
	t.Cleanup(func() {
		ch.Close()
		remote.Close()
		ch.release()
	})
	return ch, remote
}

// serveDriver answers every request on conn with the reply returned by handler
func serveDriver(conn net.Conn, handler func(args [][]byte) []byte) {
	go func() {
		r := bufio.NewReader(conn)
		for {
			args, err := codec.ReadRequest(r)
			if err != nil {
				return
			}
			if _, err := conn.Write(codec.EncodeResponse(handler(args))); err != nil {
				return
			}
		}
	}()
}

// splitInto splits b into n non-empty fragments
func splitInto(b []byte, n int) [][]byte {
	fragments := make([][]byte, 0, n)
	size := len(b) / n
	for i := 0; i < n-1; i++ {
		fragments = append(fragments, b[:size])
		b = b[size:]
	}
	return append(fragments, b)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestRequestPingPong tests the exact bytes of a simple exchange
func TestRequestPingPong(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())

	go func() {
		req := make([]byte, 6)
		if _, err := io.ReadFull(remote, req); err != nil {
			return
		}
		if string(req) != "4\nping" {
			remote.Write([]byte("3/bad"))
			return
		}
		remote.Write([]byte("4/pong"))
	}()

	resp, err := ch.Request("ping")
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if string(resp) != "pong" {
		t.Fatalf("expected pong, got %q", resp)
	}
}

// TestFragmentedResponse tests that a reply split into any number of reads is reassembled
func TestFragmentedResponse(t *testing.T) {
	body := bytes.Repeat([]byte("a/b\nc"), 40) // 200 bytes with delimiters inside
	frame := codec.EncodeResponse(body)

	for _, n := range []int{1, 2, 3, 50} {
		t.Run(fmt.Sprintf("%d fragments", n), func(t *testing.T) {
			ch, remote := newTestChannel(t, common.DefaultChannelConfig())

			go func() {
				if _, err := codec.ReadRequest(bufio.NewReader(remote)); err != nil {
					return
				}
				for _, fragment := range splitInto(frame, n) {
					if _, err := remote.Write(fragment); err != nil {
						return
					}
				}
			}()

			resp, err := ch.Request("getText")
			if err != nil {
				t.Fatalf("Request() error: %v", err)
			}
			if !bytes.Equal(resp, body) {
				t.Fatalf("body mismatch: got %d bytes", len(resp))
			}
		})
	}
}

// TestSmallReadChunks tests reassembly when the read chunk is smaller than the reply
func TestSmallReadChunks(t *testing.T) {
	config := common.DefaultChannelConfig()
	config.ReadChunkSize = 3
	ch, remote := newTestChannel(t, config)

	body := bytes.Repeat([]byte{0x00, 0xff, '/'}, 1000)
	serveDriver(remote, func(args [][]byte) []byte { return body })

	resp, err := ch.Pull("pullFile", "/sdcard/a.bin")
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	if !bytes.Equal(resp, body) {
		t.Fatalf("body mismatch: got %d bytes", len(resp))
	}
}

// TestSurplusBytesRetained tests that bytes past a reply are used for the next reply
func TestSurplusBytesRetained(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())

	go func() {
		r := bufio.NewReader(remote)
		if _, err := codec.ReadRequest(r); err != nil {
			return
		}
		// Both replies arrive in a single read
		if _, err := remote.Write([]byte("3/one3/two")); err != nil {
			return
		}
		// Consume the second request without answering it
		codec.ReadRequest(r)
	}()

	first, err := ch.Request("first")
	if err != nil || string(first) != "one" {
		t.Fatalf("first reply: %q, %v", first, err)
	}
	second, err := ch.Request("second")
	if err != nil || string(second) != "two" {
		t.Fatalf("second reply: %q, %v", second, err)
	}
}

// sequencingConn records whether a request was written before the previous reply was read
type sequencingConn struct {
	net.Conn
	replySize  int
	delay      time.Duration
	writes     atomic.Int64
	readBytes  atomic.Int64
	violations atomic.Int64
}

func (c *sequencingConn) Write(b []byte) (int, error) {
	completed := c.readBytes.Load() / int64(c.replySize)
	if c.writes.Add(1)-1 > completed {
		c.violations.Add(1)
	}
	n, err := c.Conn.Write(b)
	// Artificial delay between write and read
	time.Sleep(c.delay)
	return n, err
}

func (c *sequencingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.readBytes.Add(int64(n))
	return n, err
}

// TestConcurrentRequestsDoNotInterleave tests that concurrent requests on one channel are serialized
func TestConcurrentRequestsDoNotInterleave(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	conn := &sequencingConn{Conn: local, replySize: len("2/ok"), delay: time.Millisecond}
	ch := newChannel(conn, common.DefaultChannelConfig())
	defer ch.Close()

	var received sync.Map
	serveDriver(remote, func(args [][]byte) []byte {
		received.Store(string(args[1]), true)
		return []byte("ok")
	})

	const goroutines = 10
	const perGoroutine = 10

	var wg sync.WaitGroup
	errCh := make(chan error, goroutines*perGoroutine)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				resp, err := ch.Request("click", fmt.Sprintf("%d-%d", g, i))
				if err != nil {
					errCh <- err
					return
				}
				if string(resp) != "ok" {
					errCh <- fmt.Errorf("unexpected reply %q", resp)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("request failed: %v", err)
	}
	if v := conn.violations.Load(); v != 0 {
		t.Fatalf("%d requests were written before the previous reply was read", v)
	}

	count := 0
	received.Range(func(_, _ any) bool { count++; return true })
	if count != goroutines*perGoroutine {
		t.Fatalf("driver decoded %d distinct requests, expected %d", count, goroutines*perGoroutine)
	}
}

// TestPeerDisconnected tests that a closed peer fails the request and the channel
func TestPeerDisconnected(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())

	go func() {
		codec.ReadRequest(bufio.NewReader(remote))
		remote.Close()
	}()

	_, err := ch.Request("getAndroidId")
	if !errors.Is(err, transport.ErrPeerDisconnected) {
		t.Fatalf("expected ErrPeerDisconnected, got %v", err)
	}

	var pdErr *transport.PeerDisconnectedError
	if !errors.As(err, &pdErr) || pdErr.Addr != ch.RemoteAddr() {
		t.Fatalf("expected PeerDisconnectedError with address %s, got %v", ch.RemoteAddr(), err)
	}

	// The channel is unusable from now on
	if _, err := ch.Request("getAndroidId"); !errors.Is(err, transport.ErrPeerDisconnected) {
		t.Fatalf("expected the channel to stay broken, got %v", err)
	}
}

// TestDisconnectMidBody tests a peer that disappears after sending part of the body
func TestDisconnectMidBody(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())

	go func() {
		codec.ReadRequest(bufio.NewReader(remote))
		remote.Write([]byte("10/abc"))
		remote.Close()
	}()

	if _, err := ch.Request("getText"); !errors.Is(err, transport.ErrPeerDisconnected) {
		t.Fatalf("expected ErrPeerDisconnected, got %v", err)
	}
}

// TestMalformedResponse tests that an unparsable reply header is reported and breaks the channel
func TestMalformedResponse(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())
	go func() {
		codec.ReadRequest(bufio.NewReader(remote))
		remote.Write([]byte("pong"))
	}()

	if _, err := ch.Request("ping"); !errors.Is(err, codec.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	if _, err := ch.Request("ping"); !errors.Is(err, codec.ErrMalformedFrame) {
		t.Fatalf("expected the channel to stay broken, got %v", err)
	}
}

// TestHugeDeclaredLength tests that a reply length far beyond the received bytes
// fails the request without reserving memory for it
func TestHugeDeclaredLength(t *testing.T) {
	headers := []string{"999999999999/abc", "999999999999999999/abc"}

	for _, header := range headers {
		t.Run(header, func(t *testing.T) {
			ch, remote := newTestChannel(t, common.DefaultChannelConfig())
			go func() {
				codec.ReadRequest(bufio.NewReader(remote))
				remote.Write([]byte(header))
				remote.Close()
			}()

			_, err := ch.Request("ping")
			if !errors.Is(err, transport.ErrPeerDisconnected) {
				t.Fatalf("expected ErrPeerDisconnected, got %v", err)
			}
			if _, again := ch.Request("ping"); !errors.Is(again, transport.ErrPeerDisconnected) {
				t.Fatalf("expected the channel to stay broken, got %v", again)
			}
		})
	}
}

// TestEmptyResponse tests that a zero length body is a valid reply
func TestEmptyResponse(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())
	serveDriver(remote, func(args [][]byte) []byte { return nil })

	resp, err := ch.Request("clear")
	if err != nil || len(resp) != 0 {
		t.Fatalf("empty reply: %q, %v", resp, err)
	}
}

// TestPushAndPull tests the binary transfer variants
func TestPushAndPull(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	files := map[string][]byte{}

	go func() {
		r := bufio.NewReader(remote)

		// Push: check the raw header first
		header, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if header != fmt.Sprintf("8/10/%d\n", len(png)) {
			remote.Write(codec.EncodeResponse([]byte("false")))
			return
		}
		rest := make([]byte, 8+10+len(png))
		if _, err := io.ReadFull(r, rest); err != nil {
			return
		}
		files[string(rest[8:18])] = rest[18:]
		remote.Write(codec.EncodeResponse([]byte("true")))

		// Pull: return the stored file or the null sentinel
		for {
			args, err := codec.ReadRequest(r)
			if err != nil {
				return
			}
			body, ok := files[string(args[1])]
			if !ok {
				body = []byte("null")
			}
			remote.Write(codec.EncodeResponse(body))
		}
	}()

	resp, err := ch.Push("pushFile", "/tmp/x.png", png)
	if err != nil || string(resp) != "true" {
		t.Fatalf("Push() = %q, %v", resp, err)
	}

	data, err := ch.Pull("pullFile", "/tmp/x.png")
	if err != nil || !bytes.Equal(data, png) {
		t.Fatalf("Pull() = %q, %v", data, err)
	}

	data, err = ch.Pull("pullFile", "/tmp/missing.png")
	if err != nil || !codec.IsNull(data) {
		t.Fatalf("Pull() of a missing file = %q, %v", data, err)
	}
}

// TestRequestString tests UTF-8 decoding and trimming of trailing whitespace
func TestRequestString(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())
	serveDriver(remote, func(args [][]byte) []byte { return []byte(" RPA_办公自动化 \r\n") })

	resp, err := ch.RequestString("getElementText", "//*[@id='kw']")
	if err != nil {
		t.Fatalf("RequestString() error: %v", err)
	}
	if resp != " RPA_办公自动化" {
		t.Fatalf("unexpected reply %q", resp)
	}
}

// TestTimeoutBreaksChannel tests that a deadline error ends the channel
func TestTimeoutBreaksChannel(t *testing.T) {
	config := common.DefaultChannelConfig()
	config.TimeoutSecond = 1
	ch, remote := newTestChannel(t, config)

	// The driver reads the request but never answers
	go io.Copy(io.Discard, remote)

	start := time.Now()
	_, err := ch.Request("findImage")
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %v", err)
	}
	var tErr *transport.TransportError
	if !errors.As(err, &tErr) || tErr.Op != "read" {
		t.Fatalf("expected a read TransportError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("request failed too early after %s", elapsed)
	}

	if _, err := ch.Request("findImage"); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected the channel to stay broken, got %v", err)
	}
}

// TestCloseUnblocksRequest tests that Close aborts a request waiting for its reply
func TestCloseUnblocksRequest(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())
	go io.Copy(io.Discard, remote)

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.Request("sleep")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	ch.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, transport.ErrChannelClosed) {
			t.Fatalf("expected ErrChannelClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("request was not unblocked by Close")
	}

	if _, err := ch.Request("sleep"); !errors.Is(err, transport.ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed after Close, got %v", err)
	}
}

// TestRequestContextWhileLocked tests that a request queued behind another one
// gives up when its context ends
func TestRequestContextWhileLocked(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())
	go io.Copy(io.Discard, remote)

	first := make(chan error, 1)
	go func() {
		_, err := ch.Request("sleep")
		first <- err
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := ch.RequestContext(ctx, "ping"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("queued request ignored its context, took %s", elapsed)
	}

	// The queued request must not have touched the channel
	ch.Close()
	if err := <-first; !errors.Is(err, transport.ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed for the first request, got %v", err)
	}
}

// TestRequestPacing tests the optional per channel rate limit
func TestRequestPacing(t *testing.T) {
	config := common.DefaultChannelConfig()
	config.RequestsPerSecond = 20
	config.RequestBurst = 1
	ch, remote := newTestChannel(t, config)
	serveDriver(remote, func(args [][]byte) []byte { return []byte("true") })

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := ch.Request("click", i); err != nil {
			t.Fatalf("Request() error: %v", err)
		}
	}

	// Burst of one, then 4 requests spaced 50ms apart
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("requests were not paced, took %s", elapsed)
	}
}

// TestChannelStats tests the per channel metrics registry
func TestChannelStats(t *testing.T) {
	ch, remote := newTestChannel(t, common.DefaultChannelConfig())
	serveDriver(remote, func(args [][]byte) []byte { return []byte("pong") })

	for i := 0; i < 3; i++ {
		if _, err := ch.Request("ping"); err != nil {
			t.Fatalf("Request() error: %v", err)
		}
	}

	if got := ch.requests.Count(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	if got := ch.sent.Count(); got != 3*int64(len("4\nping")) {
		t.Errorf("unexpected sent bytes %d", got)
	}
	if got := ch.received.Count(); got != 3*int64(len("4/pong")) {
		t.Errorf("unexpected received bytes %d", got)
	}
	if ch.Stats().Get("requests") == nil {
		t.Error("requests timer not registered")
	}
}
