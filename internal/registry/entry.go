package registry

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/openiio/iiod/internal/device"
)

// Entry is the registry record for one actively-streaming device. It
// is exclusively owned by its reader task once inserted into the
// Registry; the Registry itself holds only a lookup reference. subsMu
// guards Subs and must never be held while a hardware read is in
// flight.
type Entry struct {
	Handle     device.Handle
	SampleSize int

	subsMu sync.Mutex
	Subs   []*Subscriber

	logger *log.Logger

	// sticky is set by a failing iteration and consumed by the next
	// one, which tears the entry down instead of attempting another read.
	sticky error

	closed chan struct{} // closed once the reader task has fully torn the entry down
}

func newEntry(h device.Handle, sampleSize int, logger *log.Logger) *Entry {
	return &Entry{
		Handle:     h,
		SampleSize: sampleSize,
		logger:     logger,
		closed:     make(chan struct{}),
	}
}

// linkLocked links sub at the head of the subscriber list. Callers must already
// hold the registry lock (see Registry.AttachSubscriber); it acquires
// only subsMu itself, honoring the registry-lock-then-subsMu order.
func (e *Entry) linkLocked(sub *Subscriber) {
	e.subsMu.Lock()
	e.Subs = append([]*Subscriber{sub}, e.Subs...)
	e.subsMu.Unlock()
}

// Done returns a channel closed once the entry's reader task has
// unlinked every subscriber, removed the entry from the registry, and
// closed the device handle. Intended for tests.
func (e *Entry) Done() <-chan struct{} {
	return e.closed
}
