// Package registry implements the device-multiplexing read engine:
// the shared device registry, its per-device reader task, and the
// subscriber lifecycle. This is the hard part of the daemon —
// everything else in the repository exists to reach this package from
// a network connection.
package registry

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/openiio/iiod/internal/device"
)

// DefaultIterationCapBytes is the per-iteration hardware-read budget:
// large reads are split into bounded chunks so a subscriber joining or
// leaving mid-stream stays responsive and memory use is bounded.
// Configurable per Registry rather than hardcoded.
const DefaultIterationCapBytes = 1024

// Registry is the process-wide {device handle -> Entry} map. mu
// strictly encloses the decision to create, open, and insert an
// entry, and (symmetrically) the decision to terminate and remove
// one, so the two can never race.
type Registry struct {
	mu               sync.Mutex
	entries          map[device.Handle]*Entry
	logger           *log.Logger
	iterationCapByte int
}

// New creates an empty registry. logger may be nil (a no-op logger is
// substituted); iterationCapBytes <= 0 selects DefaultIterationCapBytes.
func New(logger *log.Logger, iterationCapBytes int) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if iterationCapBytes <= 0 {
		iterationCapBytes = DefaultIterationCapBytes
	}
	return &Registry{
		entries:          make(map[device.Handle]*Entry),
		logger:           logger,
		iterationCapByte: iterationCapBytes,
	}
}

// AttachSubscriber implements lookup-or-create fused with the
// subscriber-attachment step it exists to serialize against: the
// registry lock must enclose both the termination decision and any
// new attachment, or a lookup could hand a caller an entry whose
// reader task is mid-teardown. On success it returns the entry and
// whether it was newly created.
func (r *Registry) AttachSubscriber(h device.Handle, sampleSize int, sub *Subscriber) (*Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[h]; ok {
		if e.SampleSize != sampleSize {
			return nil, false, device.New(device.InvalidArgument, nil)
		}
		e.linkLocked(sub)
		return e, false, nil
	}

	if err := h.Open(); err != nil {
		return nil, false, device.New(device.DeviceOpenFailed, err)
	}

	e := newEntry(h, sampleSize, r.logger)
	e.linkLocked(sub)
	r.entries[h] = e

	go r.runReader(e)

	r.logger.Debug("device entry created", "device", h.ID(), "sample_size", sampleSize)
	return e, true, nil
}

// remove unlinks e from the registry. Called only by e's own reader
// task, with r.mu already held.
func (r *Registry) remove(e *Entry) {
	delete(r.entries, e.Handle)
}

// Count reports the number of live entries. Intended for tests and
// diagnostics; taking the lock here is cheap since it is never held
// across I/O.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
