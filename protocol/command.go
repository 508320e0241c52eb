package protocol

import "fmt"

// Command tells the relay what a message wants. It travels as the first
// four header bytes in network byte order.
type Command uint32

const (
	SEND Command = iota
	ACK
	REQ
	MSG
)

func (c Command) String() string {
	switch c {
	case SEND:
		return "SEND"
	case ACK:
		return "ACK"
	case REQ:
		return "REQ"
	case MSG:
		return "MSG"
	default:
		return fmt.Sprintf("COMMAND(%d)", uint32(c))
	}
}
