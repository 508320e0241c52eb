package protocol

// This package implements packing and unpacking of the messages that
// Courier relays exchange with producers and consumers.
//
// The format is a fixed 12-byte header followed by the raw payload:
//
//   ```
//   command:     uint32, network byte order
//   source:      4 bytes, an IPv4 address, or all zeroes for "absent"
//   destination: 4 bytes, an IPv4 address, or all zeroes for "absent"
//   payload:     every remaining byte, verbatim
//   ```
//
// === Commands
//
// - `SEND` (0) - a producer deposits a payload with the relay
// - `ACK`  (1) - the relay confirms a SEND was stored
// - `REQ`  (2) - a consumer asks for the next stored message
// - `MSG`  (3) - the relay hands over a stored message; with both
//                addresses absent and an empty payload it means
//                "nothing available"
//
// The codec does not validate the command range. A relay must reject
// commands it does not serve; the codec's job is only the byte layout,
// so unknown values round-trip untouched.
//
// === Sentinel addresses
//
// Either address slot may be absent. Absence is encoded as four zero
// bytes and decodes to the zero netip.Addr. A consequence is that the
// real address 0.0.0.0 is not representable; neither are IPv6 addresses,
// which encode as the sentinel too.
//
// === Framing
//
// There is deliberately no length field. A message occupies an entire
// connection: the sender transmits exactly one message and the receiver
// treats everything up to the peer's half-close as that message. One
// request and one reply per connection is a hard contract of the
// protocol; clients must open a fresh connection for every exchange, and
// a reader that starts decoding before the sender is done can see a
// truncated payload. Keep payloads comfortably under the relay's read
// chunk if that matters to you.
