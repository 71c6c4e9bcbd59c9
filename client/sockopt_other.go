//go:build !unix

package client

import "net"

// Go enables SO_BROADCAST on UDP sockets by default, which is all
// broadcasting needs here.
func setBroadcast(*net.UDPConn, bool) error {
	return nil
}
