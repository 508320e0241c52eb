package transport

import "net/netip"

// conn tracks one accepted socket through its single exchange: the raw
// descriptor, the peer for logging, and every byte received so far. Its
// interest mask lives in the poller registration and is never re-armed;
// the connection is read-and-write from accept until teardown.
type conn struct {
	fd      int
	peer    netip.AddrPort
	pending []byte
}
