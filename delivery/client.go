package delivery

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/luma/courier/protocol"
)

const (
	// DefaultPort is the port relays listen on, on every host.
	DefaultPort = 65432

	// DefaultTimeout bounds an exchange when Options leave it unset.
	DefaultTimeout = 3 * time.Second

	// replyChunk bounds the single acknowledgement read.
	replyChunk = 1024
)

// Client is the relay-backed Backend. Every operation dials afresh,
// runs its single exchange and hangs up, so there is no shared mutable
// state and a Client is safe for concurrent use.
type Client struct {
	self    netip.Addr
	port    int
	timeout time.Duration

	log *zap.Logger
}

var _ Backend = (*Client)(nil)

func NewClient(options Options) *Client {
	port := options.Port
	if port == 0 {
		port = DefaultPort
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		self:    options.Self,
		port:    port,
		timeout: timeout,
		log:     log,
	}
}

// Send pushes payload to the relay serving dest and waits for the ACK.
// The relay only stores the message; it reaches the destination
// whenever the destination next polls. One attempt, no retry.
func (c *Client) Send(dest netip.Addr, payload []byte) error {
	conn, err := c.dial(dest)
	if err != nil {
		c.log.Warn("Failed to dial the destination relay",
			zap.Stringer("dest", dest), zap.Error(err))
		return fmt.Errorf("Failed to reach %s: %w", dest, ErrConnection)
	}

	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("Failed to arm the exchange deadline: %w", ErrConnection)
	}

	req := protocol.Message{
		Command:     protocol.SEND,
		Source:      c.self,
		Destination: dest,
		Payload:     payload,
	}

	if _, err := conn.Write(protocol.Encode(req)); err != nil {
		return fmt.Errorf("Failed to send to %s: %w", dest, ErrConnection)
	}

	// The ACK is a bare header, one read is plenty.
	buf := make([]byte, replyChunk)

	n, err := conn.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s did not acknowledge within %s: %w", dest, c.timeout, ErrAckTimeout)
		}

		return fmt.Errorf("Failed to read the acknowledgement from %s: %w", dest, ErrConnection)
	}

	ack, err := protocol.Decode(buf[:n])
	if err != nil {
		return fmt.Errorf("Acknowledgement from %s is garbled: %w", dest, ErrProtocol)
	}

	if ack.Command != protocol.ACK {
		return fmt.Errorf("%s answered %s where ACK was expected: %w", dest, ack.Command, ErrProtocol)
	}

	c.log.Debug("Message acknowledged",
		zap.Stringer("dest", dest), zap.Int("bytes", len(payload)))

	return nil
}

// Receive polls this host's own relay for the oldest stored message.
// (nil, nil) means the mailbox was empty.
func (c *Client) Receive() (*Delivery, error) {
	conn, err := c.dial(c.self)
	if err != nil {
		c.log.Warn("Failed to dial the local relay",
			zap.Stringer("relay", c.self), zap.Error(err))
		return nil, fmt.Errorf("Failed to reach the relay at %s: %w", c.self, ErrConnection)
	}

	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("Failed to arm the exchange deadline: %w", ErrConnection)
	}

	req := protocol.Message{
		Command: protocol.REQ,
		Source:  c.self,
	}

	if _, err := conn.Write(protocol.Encode(req)); err != nil {
		return nil, fmt.Errorf("Failed to ask the relay for messages: %w", ErrConnection)
	}

	// Replies carry no length prefix; the relay signals completeness by
	// hanging up, so accumulate until EOF.
	raw, err := io.ReadAll(conn)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("Relay did not reply within %s: %w", c.timeout, ErrReceive)
		}

		return nil, fmt.Errorf("Failed to read the relay reply: %w", ErrReceive)
	}

	msg, err := protocol.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("Relay reply is garbled: %w", ErrReceive)
	}

	if msg.Command != protocol.MSG {
		return nil, fmt.Errorf("Relay answered %s where MSG was expected: %w", msg.Command, ErrProtocol)
	}

	if !msg.Source.IsValid() && len(msg.Payload) == 0 {
		// Nothing queued for this host.
		return nil, nil
	}

	c.log.Debug("Message received",
		zap.Stringer("source", msg.Source), zap.Int("bytes", len(msg.Payload)))

	return &Delivery{Source: msg.Source, Payload: msg.Payload}, nil
}

func (c *Client) dial(addr netip.Addr) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	return dialer.Dial("tcp", net.JoinHostPort(addr.String(), strconv.Itoa(c.port)))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
