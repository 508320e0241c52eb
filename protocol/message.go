package protocol

import "net/netip"

// HeaderSize is the fixed number of bytes in front of the payload:
// a 4-byte command followed by two 4-byte address slots.
const HeaderSize = 12

// Message is one unit of relay traffic, request or reply.
//
// The zero netip.Addr stands for an absent address and is encoded as the
// all-zero sentinel. Only IPv4 addresses are representable on the wire;
// anything else is carried as the sentinel.
type Message struct {
	Command     Command
	Source      netip.Addr
	Destination netip.Addr
	Payload     []byte
}
