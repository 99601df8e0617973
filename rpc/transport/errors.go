package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrPeerDisconnected is matched by every PeerDisconnectedError
	ErrPeerDisconnected = errors.New("peer disconnected")
	// ErrChannelClosed is returned by requests on a channel that was closed locally
	ErrChannelClosed = errors.New("channel closed")
)

// PeerDisconnectedError is returned when a read returns zero bytes during an exchange
type PeerDisconnectedError struct {
	Addr string
}

func (e *PeerDisconnectedError) Error() string {
	return fmt.Sprintf("%s: peer disconnected", e.Addr)
}

func (e *PeerDisconnectedError) Is(target error) bool {
	return target == ErrPeerDisconnected
}

// TransportError wraps any lower level socket failure (reset, broken pipe, deadline)
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
