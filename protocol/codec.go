package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

var (
	ErrMessageTooShort = errors.New("Message is malformed, it appears to be shorter than the fixed header")
)

// Encode packs a message into its wire form: the 12-byte header followed
// by the payload verbatim. Absent addresses become the all-zero sentinel.
func Encode(m Message) []byte {
	b := make([]byte, HeaderSize+len(m.Payload))

	binary.BigEndian.PutUint32(b[0:4], uint32(m.Command))
	putAddr(b[4:8], m.Source)
	putAddr(b[8:12], m.Destination)
	copy(b[HeaderSize:], m.Payload)

	return b
}

// Decode is the inverse of Encode. The input must hold at least the full
// header; everything after it is the payload, which aliases data rather
// than copying it. The command value is not range checked here.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return Message{}, fmt.Errorf("Failed to decode %d byte message: %w",
			len(data), ErrMessageTooShort)
	}

	return Message{
		Command:     Command(binary.BigEndian.Uint32(data[0:4])),
		Source:      takeAddr(data[4:8]),
		Destination: takeAddr(data[8:12]),
		Payload:     data[HeaderSize:],
	}, nil
}

func putAddr(b []byte, addr netip.Addr) {
	addr = addr.Unmap()
	if !addr.Is4() {
		// Sentinel. b is already zeroed.
		return
	}

	a4 := addr.As4()
	copy(b, a4[:])
}

func takeAddr(b []byte) netip.Addr {
	var a4 [4]byte
	copy(a4[:], b)

	if a4 == [4]byte{} {
		return netip.Addr{}
	}

	return netip.AddrFrom4(a4)
}
