//go:build !windows

package discovery

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl sets SO_REUSEADDR so multiple local processes (e.g.
// two test instances on one machine) can bind the same discovery port,
// per spec §5 "uses address-reuse so multiple local processes on the
// same machine can coexist". No library in the retrieved pack wraps
// this specific socket option; it is a direct syscall, same as the
// standard library's own net package does internally for similar knobs.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
