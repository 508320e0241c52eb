package storage

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/tidwall/sjson"
)

// previewLength caps how much of a payload Snapshot reproduces.
const previewLength = 10

// InmemoryMailbox is a mutex-guarded FIFO of undelivered entries.
//
// The relay's event loop is the only goroutine that mutates the mailbox,
// but the debug HTTP handler and the depth gauge read it from other
// goroutines, so every access takes the lock.
type InmemoryMailbox struct {
	mu      sync.Mutex
	entries []Entry
}

func NewInmemoryMailbox() *InmemoryMailbox {
	return &InmemoryMailbox{}
}

func (m *InmemoryMailbox) Enqueue(source netip.Addr, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, Entry{Source: source, Payload: payload})
}

func (m *InmemoryMailbox) TryDequeue() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 {
		return Entry{}, false
	}

	entry := m.entries[0]
	m.entries[0] = Entry{}
	m.entries = m.entries[1:]

	return entry, true
}

func (m *InmemoryMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Snapshot returns the pending entries as a JSON array, oldest first.
// Payloads are reproduced as a short printable preview plus their size,
// never in full.
func (m *InmemoryMailbox) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := []byte("[]")

	for _, entry := range m.entries {
		source := ""
		if entry.Source.IsValid() {
			source = entry.Source.String()
		}

		var err error
		doc, err = sjson.SetBytes(doc, "-1", map[string]interface{}{
			"source":  source,
			"bytes":   len(entry.Payload),
			"preview": preview(entry.Payload),
		})
		if err != nil {
			return nil, fmt.Errorf("Failed to snapshot mailbox entry: %w", err)
		}
	}

	return doc, nil
}

// preview shortens a payload for inspection, quoting anything that is not
// printable.
func preview(payload []byte) string {
	if len(payload) > previewLength {
		return fmt.Sprintf("%q...", payload[:previewLength])
	}

	return fmt.Sprintf("%q", payload)
}

var _ Mailbox = (*InmemoryMailbox)(nil)
