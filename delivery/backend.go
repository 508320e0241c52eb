// Package delivery is the sending and receiving face of the relay: a
// small driver that producers and consumers embed instead of speaking
// the wire format themselves.
package delivery

import (
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"
)

// Delivery is one relayed message handed to a consumer: the payload
// plus the producer's address, when the producer chose to identify
// itself.
type Delivery struct {
	Source  netip.Addr
	Payload []byte
}

// Backend moves messages between this process and wherever they are
// stored in flight. Send and Receive each run one complete exchange;
// neither holds connection state between calls.
type Backend interface {
	// Send hands payload to the relay serving dest and waits for the
	// acknowledgement.
	Send(dest netip.Addr, payload []byte) error

	// Receive polls for the oldest message waiting for this host. It
	// returns (nil, nil) when nothing is waiting.
	Receive() (*Delivery, error)
}

// BackendRelay names the store-and-forward TCP relay backend.
const BackendRelay = "relay"

// Options configure whichever backend New builds.
type Options struct {
	// Self is the address peers see as this node's identity and the
	// host whose relay Receive polls. Leave unset to send anonymously.
	Self netip.Addr

	// Port every relay listens on. Zero means DefaultPort.
	Port int

	// Timeout bounds each exchange. Zero means DefaultTimeout.
	Timeout time.Duration

	Log *zap.Logger
}

// New picks the backend implementation by name. The choice happens
// here, once, when the application is configured; nothing selects a
// backend implicitly after that.
func New(backend string, options Options) (Backend, error) {
	switch backend {
	case BackendRelay, "":
		return NewClient(options), nil

	default:
		return nil, fmt.Errorf("Failed to build the %q backend: %w", backend, ErrUnknownBackend)
	}
}
