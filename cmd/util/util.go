package util

import (
	"fmt"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"github.com/ValentinKolb/dBot/rpc/transport/tcp"
	"github.com/ValentinKolb/dBot/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from .env files and environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dbot")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupServerFlags adds the session server flags to a command
func SetupServerFlags(cmd *cobra.Command) {
	defaults := common.DefaultServerConfig()

	key := "endpoint"
	cmd.PersistentFlags().String(key, defaults.Endpoint, WrapString("The address on which the session server listens (e.g. 0.0.0.0:9999 for tcp, /tmp/dbot.sock for unix)"))

	key = "backlog"
	cmd.PersistentFlags().Int(key, defaults.Backlog, WrapString("Advisory accept backlog, the listener keeps the operating system default. It does not limit the number of active sessions"))

	key = "timeout"
	cmd.PersistentFlags().Int64(key, 0, WrapString("Timeout in seconds of a single request (write and read). 0 waits forever"))

	key = "requests-per-second"
	cmd.PersistentFlags().Float64(key, 0, WrapString("Maximum number of requests per second on one session (0 disables pacing)"))

	key = "request-burst"
	cmd.PersistentFlags().Int(key, 1, WrapString("Burst size of the request pacing"))

	key = "wait-time"
	cmd.PersistentFlags().Duration(key, defaults.Wait.WaitTime, WrapString("Default wait time of polled commands"))

	key = "interval-time"
	cmd.PersistentFlags().Duration(key, defaults.Wait.IntervalTime, WrapString("Default sleep between two attempts of a polled command"))

	key = "raise-on-timeout"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether a polled command that timed out is reported as an error"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, defaults.Socket.WriteBufferSize/1024, WrapString("The size of the socket write buffer (in KB)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the system default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, defaults.TCP.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY on accepted connections"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval of accepted connections (in seconds, 0 disables it)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, defaults.TCP.TCPLingerSec, WrapString("The linger time of accepted connections (in seconds, -1 keeps the system default)"))

	key = "reuse-port"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether to set SO_REUSEPORT on the listening socket (unix systems only)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// GetServerConfig reads the session server configuration from viper
func GetServerConfig() *common.ServerConfig {
	conf := &common.ServerConfig{
		Endpoint: viper.GetString("endpoint"),
		Backlog:  viper.GetInt("backlog"),
		Channel: common.ChannelConfig{
			TimeoutSecond:     viper.GetInt64("timeout"),
			ReadChunkSize:     common.DefaultReadChunkSize,
			RequestsPerSecond: viper.GetFloat64("requests-per-second"),
			RequestBurst:      viper.GetInt("request-burst"),
			MaxTraceBytes:     common.DefaultMaxTraceBytes,
		},
		Wait: common.WaitConf{
			WaitTime:       viper.GetDuration("wait-time"),
			IntervalTime:   viper.GetDuration("interval-time"),
			RaiseOnTimeout: viper.GetBool("raise-on-timeout"),
		},
		Socket: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCP: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
			ReusePort:       viper.GetBool("reuse-port"),
		},
		LogLevel: viper.GetString("log-level"),
	}

	return conf
}

// GetServerTransport creates the server transport selected by the transport flag
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetNetwork returns the network name used to dial the selected transport
func GetNetwork() (string, error) {
	switch t := viper.GetString("transport"); t {
	case "tcp", "unix":
		return t, nil
	default:
		return "", fmt.Errorf("invalid transport %s", t)
	}
}
