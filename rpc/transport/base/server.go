package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport accepts connections and runs one session per connection
type serverTransport struct {
	connector IServerConnector
	entry     transport.EntryPoint
	config    common.ServerConfig

	listenerMu sync.Mutex
	listener   net.Listener
	ready      chan struct{}
	readyOnce  sync.Once

	sessions      *xsync.MapOf[uint64, *channel] // Active sessions by id
	nextSessionID atomic.Uint64
	wg            sync.WaitGroup // Tracks running sessions
	shutdown      atomic.Bool    // Set before the listener is closed
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with the specified connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		ready:     make(chan struct{}),
		sessions:  xsync.NewMapOf[uint64, *channel](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(entry transport.EntryPoint) {
	t.entry = entry
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.entry == nil {
		return fmt.Errorf("no entry point registered")
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.listenerMu.Lock()
	if t.shutdown.Load() {
		t.listenerMu.Unlock()
		listener.Close()
		return nil
	}
	t.listener = listener
	t.wg.Add(1) // the accept loop is tracked like a session
	t.listenerMu.Unlock()
	defer t.wg.Done()
	t.readyOnce.Do(func() { close(t.ready) })

	Logger.Infof("Started %s session server on %s, waiting for drivers to connect", t.connector.GetName(), listener.Addr())

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Close() causes Accept to fail, this is the regular way out
			if t.shutdown.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		// Handle the connection in its own goroutine
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Addr() net.Addr {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Name() string {
	return t.connector.GetName()
}

func (t *serverTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *serverTransport) Close() error {
	t.shutdown.Store(true)

	// Stop accepting new sessions
	var err error
	t.listenerMu.Lock()
	if t.listener != nil {
		err = t.listener.Close()
	}
	t.listenerMu.Unlock()

	// Unblock all running sessions
	t.sessions.Range(func(_ uint64, ch *channel) bool {
		ch.Close()
		return true
	})

	t.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection runs the entry point for one connection. A failing entry
// point only ends its own session.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()

	id := t.nextSessionID.Add(1)
	ch := newChannel(conn, t.config.Channel)

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", ch.RemoteAddr(), err)
	}

	t.sessions.Store(id, ch)
	common.SessionsTotal.Inc()
	common.SessionsActive.Inc()
	start := time.Now()

	defer func() {
		ch.Close()
		t.sessions.Delete(id)
		common.SessionsActive.Dec()
		Logger.Infof("Session %d with %s ended after %s (%s)", id, ch.RemoteAddr(), time.Since(start).Round(time.Millisecond), ch.summary())
		ch.release()
	}()

	// A closed server does not start new sessions
	if t.shutdown.Load() {
		return
	}

	Logger.Infof("Session %d started for %s", id, ch.RemoteAddr())

	if err := t.runEntryPoint(ch); err != nil {
		common.SessionsFailed.Inc()
		if errors.Is(err, transport.ErrPeerDisconnected) {
			Logger.Infof("Session %d: driver %s disconnected", id, ch.RemoteAddr())
		} else {
			Logger.Errorf("Session %d with %s failed: %v", id, ch.RemoteAddr(), err)
		}
	}
}

// runEntryPoint calls the entry point and converts a panic into an error
func (t *serverTransport) runEntryPoint(ch *channel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("entry point panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return t.entry(ch)
}
