package relay

import (
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"github.com/luma/courier/protocol"
	"github.com/luma/courier/storage"
)

var (
	ErrUnexpectedCommand = errors.New("Command is not one the relay serves")
)

// Handler interprets one decoded request against the mailbox and produces
// the reply. It is invoked once per connection, after the transport has
// accumulated the connection's complete message.
//
// SEND stores the payload and is answered with an ACK echoing the request
// addresses. REQ drains the mailbox head and is answered with a MSG
// carrying the stored source and the relay's own address, or with the
// absent/absent/empty MSG sentinel when nothing is pending. Every other
// command, ACK and MSG included, is a protocol violation.
type Handler struct {
	box  storage.Mailbox
	self netip.Addr
	log  *zap.Logger
}

// New returns a Handler that stores into box and stamps MSG replies with
// self, the address this relay is reachable at.
func New(box storage.Mailbox, self netip.Addr, log *zap.Logger) *Handler {
	return &Handler{
		box:  box,
		self: self,
		log:  log,
	}
}

func (h *Handler) Handle(req protocol.Message) (protocol.Message, error) {
	switch req.Command {
	case protocol.SEND:
		h.box.Enqueue(req.Source, req.Payload)

		h.log.Info("Stored message",
			zap.Stringer("source", req.Source),
			zap.Int("bytes", len(req.Payload)),
			zap.Int("pending", h.box.Len()))

		return protocol.Message{
			Command:     protocol.ACK,
			Source:      req.Source,
			Destination: req.Destination,
		}, nil

	case protocol.REQ:
		entry, ok := h.box.TryDequeue()
		if !ok {
			h.log.Debug("Mailbox empty, replying with the empty sentinel")
			return protocol.Message{Command: protocol.MSG}, nil
		}

		h.log.Info("Forwarded message",
			zap.Stringer("source", entry.Source),
			zap.Int("bytes", len(entry.Payload)),
			zap.Int("pending", h.box.Len()))

		return protocol.Message{
			Command:     protocol.MSG,
			Source:      entry.Source,
			Destination: h.self,
			Payload:     entry.Payload,
		}, nil

	default:
		return protocol.Message{}, fmt.Errorf("Failed to handle %s request: %w",
			req.Command, ErrUnexpectedCommand)
	}
}
