package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults (taken from the reference drivers)
// --------------------------------------------------------------------------

const (
	// DefaultEndpoint is the address the session server listens on
	DefaultEndpoint = "0.0.0.0:9999"
	// DefaultBacklog is the advisory accept backlog
	DefaultBacklog = 5
	// DefaultWriteBufferSize mirrors the 1 MiB send buffer the drivers expect
	DefaultWriteBufferSize = 1024 * 1024
	// DefaultReadChunkSize is the size of a single socket read
	DefaultReadChunkSize = 64 * 1024
	// DefaultMaxTraceBytes limits how much of a frame is written to the debug log
	DefaultMaxTraceBytes = 256

	// DefaultWaitTime is the default budget of a polled command
	DefaultWaitTime = 3 * time.Second
	// DefaultIntervalTime is the default sleep between two polls
	DefaultIntervalTime = 500 * time.Millisecond
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds the socket buffer sizes applied to accepted connections
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	// ReusePort additionally sets SO_REUSEPORT on the listening socket (unix only)
	ReusePort bool
}

// ChannelConfig configures a single connection channel
type ChannelConfig struct {
	// TimeoutSecond bounds a single write+read exchange, 0 disables the deadline
	TimeoutSecond int64
	// ReadChunkSize is the maximum number of bytes requested per socket read
	ReadChunkSize int
	// RequestsPerSecond paces requests on one connection, 0 disables pacing
	RequestsPerSecond float64
	// RequestBurst is the burst size of the pacing limiter
	RequestBurst int
	// MaxTraceBytes limits the frame prefix written to the debug log
	MaxTraceBytes int
}

// WaitConf holds the defaults for polled commands
type WaitConf struct {
	WaitTime       time.Duration
	IntervalTime   time.Duration
	RaiseOnTimeout bool
}

// --------------------------------------------------------------------------
// Session server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the session server
type ServerConfig struct {
	// Endpoint is the listen address (host:port for tcp, a path for unix)
	Endpoint string
	// Backlog is advisory, the accept queue size is chosen by the operating system.
	// It does not limit active sessions.
	Backlog int

	Channel ChannelConfig
	Wait    WaitConf
	Socket  SocketConf
	TCP     TCPConf

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a configuration with the defaults of the reference drivers
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint: DefaultEndpoint,
		Backlog:  DefaultBacklog,
		Channel:  DefaultChannelConfig(),
		Wait: WaitConf{
			WaitTime:     DefaultWaitTime,
			IntervalTime: DefaultIntervalTime,
		},
		Socket: SocketConf{
			WriteBufferSize: DefaultWriteBufferSize,
		},
		TCP: TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
		LogLevel: "info",
	}
}

// DefaultChannelConfig returns the channel defaults (no deadline, no pacing, 64 KiB reads)
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		ReadChunkSize: DefaultReadChunkSize,
		MaxTraceBytes: DefaultMaxTraceBytes,
	}
}

// Port extracts the numeric port of a host:port endpoint
func (c *ServerConfig) Port() (int, error) {
	idx := strings.LastIndex(c.Endpoint, ":")
	if idx < 0 {
		return 0, fmt.Errorf("endpoint %q has no port", c.Endpoint)
	}
	return strconv.Atoi(c.Endpoint[idx+1:])
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Session server settings
	addSection("Session Server")
	addField("Endpoint", c.Endpoint)
	addField("Backlog", strconv.Itoa(c.Backlog))

	// Channel settings
	addSection("Channel")
	addField("Timeout", fmt.Sprintf("%d sec", c.Channel.TimeoutSecond))
	addField("Read Chunk", fmt.Sprintf("%d bytes", c.Channel.ReadChunkSize))
	if c.Channel.RequestsPerSecond > 0 {
		addField("Requests/sec", fmt.Sprintf("%.2f (burst %d)", c.Channel.RequestsPerSecond, c.Channel.RequestBurst))
	} else {
		addField("Requests/sec", "unlimited")
	}

	// Polling defaults
	addSection("Wait")
	addField("Wait Time", c.Wait.WaitTime.String())
	addField("Interval Time", c.Wait.IntervalTime.String())
	addField("Raise On Timeout", fmt.Sprintf("%t", c.Wait.RaiseOnTimeout))

	// Socket settings
	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Socket.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Socket.ReadBufferSize))
	addField("TCP No Delay", fmt.Sprintf("%t", c.TCP.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCP.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCP.TCPLingerSec))
	addField("Reuse Port", fmt.Sprintf("%t", c.TCP.ReusePort))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Driver (client side) configuration struct
// --------------------------------------------------------------------------

// DriverConfig configures the mock driver which dials into a session server
type DriverConfig struct {
	Endpoint      string
	TimeoutSecond int
	// Replies maps a command name to a fixed reply body
	Replies map[string]string
}

// String returns a formatted string representation of the driver configuration
func (c *DriverConfig) String() string {
	var sb strings.Builder

	sb.WriteString("\nDRIVER\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Endpoint", c.Endpoint))
	sb.WriteString(fmt.Sprintf("  %-22s: %d sec\n", "Timeout", c.TimeoutSecond))

	if len(c.Replies) > 0 {
		sb.WriteString("\nREPLIES\n")
		for name, reply := range c.Replies {
			sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, reply))
		}
	}
	return sb.String()
}
