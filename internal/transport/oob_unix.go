//go:build unix

package transport

import (
	"fmt"
	"net"
	"syscall"
)

// SendBreak delivers the urgent out-of-band break byte (§3: "a BREAK
// may additionally be signalled via TCP urgent data, ahead of or
// instead of a MARKER packet") over conn, when the platform and socket
// type support MSG_OOB.
func SendBreak(conn net.Conn, b byte) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return fmt.Errorf("transport: SendBreak requires a *net.TCPConn")
	}
	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("transport: SyscallConn: %w", err)
	}
	var sendErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sendErr = syscall.Sendto(int(fd), []byte{b}, syscall.MSG_OOB, nil)
	})
	if ctrlErr != nil {
		return fmt.Errorf("transport: OOB send control: %w", ctrlErr)
	}
	if sendErr != nil {
		return fmt.Errorf("transport: OOB send: %w", sendErr)
	}
	return nil
}

// SupportsOOB reports whether SendBreak can be used on this platform.
func SupportsOOB() bool { return true }
