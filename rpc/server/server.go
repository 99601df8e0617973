package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBot/lib/wait"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("server")

// ErrInvalidPort is returned when the port of a TCP endpoint is not in the range 0-65535
var ErrInvalidPort = errors.New("invalid port")

// SessionServer binds a listener and runs the entry point once per connected driver
type SessionServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	entry     transport.EntryPoint
}

// NewSessionServer creates a new session server
// It takes a config, a transport and the entry point called for every session
//
// Usage:
//
//	s, err := server.NewSessionServer(
//		config,
//		tcp.NewTCPServerTransport(),
//		func(ch transport.IChannel) error { ... },
//	)
//	if err != nil {
//		return err
//	}
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewSessionServer(
	config common.ServerConfig,
	t transport.IRPCServerTransport,
	entry transport.EntryPoint,
) (*SessionServer, error) {
	if entry == nil {
		return nil, fmt.Errorf("no entry point given")
	}

	// Only TCP endpoints carry a port
	if t.Name() == "tcp" {
		port, err := config.Port()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPort, err)
		}
		if port < 0 || port > 65535 {
			return nil, fmt.Errorf("%w: %d is not in the range 0-65535", ErrInvalidPort, port)
		}
	}

	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &SessionServer{
		config:    config,
		transport: t,
		entry:     entry,
	}, nil
}

// Serve initializes the loggers and serves sessions until Shutdown is called
func (s *SessionServer) Serve() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created %s session server", s.transport.Name())
	Logger.Infof(s.config.String())

	if s.config.Backlog != common.DefaultBacklog {
		Logger.Warningf("backlog %d is advisory, the accept queue size is chosen by the operating system", s.config.Backlog)
	}

	s.transport.RegisterHandler(s.entry)
	return s.transport.Listen(s.config)
}

// Shutdown stops accepting drivers, closes all active sessions and waits up to
// timeout for their entry points to return
func (s *SessionServer) Shutdown(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- s.transport.Close() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		Logger.Infof("session server stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("session server did not stop within %s", timeout)
	}
}

// Addr returns the bound listener address, nil before the listener is ready
func (s *SessionServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Ready is closed once the listener is bound
func (s *SessionServer) Ready() <-chan struct{} {
	return s.transport.Ready()
}

// Config returns the server configuration
func (s *SessionServer) Config() common.ServerConfig {
	return s.config
}

// WaitSpec returns the configured defaults for polled commands
func (s *SessionServer) WaitSpec() wait.Spec {
	return wait.Spec{
		WaitTime:       s.config.Wait.WaitTime,
		IntervalTime:   s.config.Wait.IntervalTime,
		RaiseOnTimeout: s.config.Wait.RaiseOnTimeout,
	}
}
