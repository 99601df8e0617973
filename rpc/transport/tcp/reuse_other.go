//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package tcp

import (
	"syscall"
)

// reuseControl keeps the platform defaults
func reuseControl(_ bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
