package delivery

import "errors"

// Failures callers can match with errors.Is. Every error leaving this
// package wraps exactly one of these.
var (
	// ErrConnection covers dial and transport failures before any reply
	// could arrive.
	ErrConnection = errors.New("Connection to the relay failed")

	// ErrAckTimeout means the message went out but its acknowledgement
	// never arrived in time.
	ErrAckTimeout = errors.New("Acknowledgement was not received in time")

	// ErrReceive means polling the relay produced no usable reply.
	ErrReceive = errors.New("Receiving from the relay failed")

	// ErrProtocol means the peer answered with a command the exchange
	// does not allow.
	ErrProtocol = errors.New("Reply violates the relay protocol")

	// ErrUnknownBackend means the configured backend name matches no
	// implementation.
	ErrUnknownBackend = errors.New("Backend is not one that exists")
)
