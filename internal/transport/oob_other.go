//go:build !unix

package transport

import (
	"fmt"
	"net"
)

// SendBreak is unavailable on this platform; callers fall back to a
// MARKER(BREAK) packet on the normal data path.
func SendBreak(conn net.Conn, b byte) error {
	return fmt.Errorf("transport: OOB break not supported on this platform")
}

// SupportsOOB reports whether SendBreak can be used on this platform.
func SupportsOOB() bool { return false }
