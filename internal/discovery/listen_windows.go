//go:build windows

package discovery

import "syscall"

// reuseAddrControl is a no-op on Windows, where the LAN discovery
// socket does not need SO_REUSEADDR for the single-process-per-host
// deployment this core targets there.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
