package storage

import "net/netip"

// Entry is one undelivered message held by the relay: who deposited it
// and the bytes they deposited.
type Entry struct {
	Source  netip.Addr
	Payload []byte
}

// Mailbox stores undelivered messages. Delivery order is FIFO across all
// producers; there is no per-destination routing, so any consumer's
// request drains the global head.
type Mailbox interface {
	// Enqueue appends an entry at the tail. The mailbox takes ownership
	// of the payload slice.
	Enqueue(source netip.Addr, payload []byte)

	// TryDequeue removes and returns the head entry, or reports false
	// without failing when the mailbox is empty.
	TryDequeue() (Entry, bool)

	// Len reports how many entries are waiting.
	Len() int

	// Snapshot renders the pending entries as a JSON document for
	// inspection.
	Snapshot() ([]byte, error)
}
