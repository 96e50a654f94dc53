package registry

import (
	"github.com/openiio/iiod/internal/device"
	"github.com/openiio/iiod/internal/protocol"
)

// runReader is the reader task bound 1:1 to e. It runs detached (the
// goroutine started by AttachSubscriber is never joined — it owns its
// own cleanup) until the subscriber list empties or a sticky error
// forces teardown.
func (r *Registry) runReader(e *Entry) {
	for {
		r.mu.Lock()

		if e.sticky != nil {
			r.teardown(e)
			return
		}

		e.subsMu.Lock()
		if len(e.Subs) == 0 {
			e.subsMu.Unlock()
			r.teardown(e)
			return
		}
		nbSamples := e.Subs[0].Remaining
		for _, s := range e.Subs[1:] {
			if s.Remaining < nbSamples {
				nbSamples = s.Remaining
			}
		}
		e.subsMu.Unlock()

		capSamples := r.iterationCapByte / e.SampleSize
		if capSamples < 1 {
			capSamples = 1
		}
		if nbSamples > capSamples {
			nbSamples = capSamples
		}

		buf, allocErr := allocBuffer(nbSamples * e.SampleSize)
		if allocErr != nil {
			e.sticky = device.New(device.OutOfMemory, allocErr)
			r.mu.Unlock()
			continue
		}

		// Release the registry lock before the hardware read: it may
		// block arbitrarily long, and nothing may hold the registry
		// lock (or the subscriber-list lock) across the hardware read.
		r.mu.Unlock()

		ret := doRead(e.Handle, buf)

		got := 0
		if ret >= 0 {
			got = ret / e.SampleSize
		}

		e.subsMu.Lock()
		var remaining []*Subscriber
		for _, sub := range e.Subs {
			if ret < 0 {
				if sub.Verbose {
					protocol.WriteStreamError(sub.Sink, ret)
				} else {
					protocol.WriteStatus(sub.Sink, ret)
				}
				remaining = append(remaining, sub) // signalled at teardown
				continue
			}

			if !sub.Verbose {
				protocol.WriteStatus(sub.Sink, ret)
			}

			if got > sub.Remaining {
				// Joined after nbSamples was fixed for this iteration;
				// sees no bytes from the read already in flight.
				remaining = append(remaining, sub)
				continue
			}

			delivered, werr := writeSamples(sub.Sink, buf[:ret], e.SampleSize)
			sub.Remaining -= delivered
			if werr != nil {
				sub.signal(Result{Samples: delivered, Err: device.New(device.SinkWriteFailed, werr)})
				continue
			}
			if sub.Remaining <= 0 {
				sub.signal(Result{Samples: 0, Err: nil})
				continue
			}
			remaining = append(remaining, sub)
		}
		e.Subs = remaining
		e.subsMu.Unlock()

		if ret < 0 {
			e.sticky = device.NewCode(device.DeviceReadFailed, ret)
		}
	}
}

// teardown runs with r.mu already held. It does not write to any
// subscriber's sink: the per-iteration error framing, if any, was
// already written above during the failing iteration. A subscriber
// caught here is thus reported twice overall — once as an in-stream
// error line, once as its completion status once its caller's read
// wakes — preserved deliberately rather than deduplicated, since a
// client coded against the in-stream line still needs the final
// status to unblock.
func (r *Registry) teardown(e *Entry) {
	status := e.sticky

	e.subsMu.Lock()
	for _, sub := range e.Subs {
		sub.signal(Result{Err: status})
	}
	e.Subs = nil
	e.subsMu.Unlock()

	r.remove(e)
	r.mu.Unlock()

	if err := e.Handle.Close(); err != nil {
		r.logger.Warn("device close failed", "device", e.Handle.ID(), "error", err)
	}
	r.logger.Debug("device entry removed", "device", e.Handle.ID())
	close(e.closed)
}
