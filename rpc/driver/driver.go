package driver

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBot/rpc/codec"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("driver")

// Handler computes the reply body for the arguments of one request
type Handler func(args [][]byte) []byte

// Driver is the peer side of a session. It connects to a session server and
// answers every request it receives with the reply of a Handler.
type Driver struct {
	conn    net.Conn
	reader  *bufio.Reader
	handled atomic.Int64
}

// Dial connects to the session server listening on endpoint ("tcp" or "unix" network)
func Dial(network, endpoint string, timeout time.Duration) (*Driver, error) {
	conn, err := net.DialTimeout(network, endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return New(conn), nil
}

// New creates a driver on an already established connection
func New(conn net.Conn) *Driver {
	return &Driver{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 64*1024),
	}
}

// Serve reads requests and writes the handler replies until the server closes
// the session. A closed session is not an error.
func (d *Driver) Serve(handler Handler) error {
	Logger.Infof("serving session with %s", d.conn.RemoteAddr())
	for {
		args, err := codec.ReadRequest(d.reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				Logger.Infof("session with %s ended after %d requests", d.conn.RemoteAddr(), d.handled.Load())
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		reply := handler(args)
		Logger.Debugf("<--- %q ---> %q", summarize(args), reply)

		if _, err := d.conn.Write(codec.EncodeResponse(reply)); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}
		d.handled.Add(1)
	}
}

// Handled returns the number of answered requests
func (d *Driver) Handled() int64 {
	return d.handled.Load()
}

// Close ends the session
func (d *Driver) Close() error {
	return d.conn.Close()
}

// summarize returns the arguments of a request for the debug log
func summarize(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if len(a) > 64 {
			out[i] = fmt.Sprintf("%s... (%d bytes)", a[:64], len(a))
		} else {
			out[i] = string(a)
		}
	}
	return out
}
