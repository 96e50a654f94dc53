// Package mock provides a deterministic, in-memory device.Context used
// by tests and by the daemon when no hardware backend is configured.
package mock

import (
	"sync"

	"github.com/openiio/iiod/internal/device"
)

// Device is a mock IIO device: ReadRaw yields bytes from a caller
// supplied generator function (or a fixed pattern), AttrRead/AttrWrite
// operate against an in-memory attribute map. It is safe to share a
// *Device across goroutines only to the extent device.Handle requires
// (ReadRaw/AttrRead/AttrWrite are serialized by the reader task or
// dispatcher that owns the handle, never called concurrently by this
// package itself).
type Device struct {
	id   string
	name string

	mu       sync.Mutex
	opened   bool
	opens    int
	closes   int
	attrs    map[string][]byte
	sequence byte

	// Gen, if set, fills buf for ReadRaw and returns (n, err) instead of
	// the default incrementing-byte-sequence generator. Err may be a
	// *device.Error to simulate a hardware read failure.
	Gen func(buf []byte) (int, error)

	// FailOpen, if set, is returned by Open instead of succeeding.
	FailOpen error
}

// New creates a mock device with the given id/name and initial
// attribute values.
func New(id, name string, attrs map[string]string) *Device {
	a := make(map[string][]byte, len(attrs))
	for k, v := range attrs {
		a[k] = []byte(v)
	}
	return &Device{id: id, name: name, attrs: a}
}

func (d *Device) ID() string   { return d.id }
func (d *Device) Name() string { return d.name }

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailOpen != nil {
		return d.FailOpen
	}
	d.opened = true
	d.opens++
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = false
	d.closes++
	return nil
}

// OpenCount and CloseCount let tests assert the "opened exactly once,
// closed exactly once" invariant the registry's reader task maintains.
func (d *Device) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *Device) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *Device) ReadRaw(buf []byte) (int, error) {
	d.mu.Lock()
	gen := d.Gen
	d.mu.Unlock()

	if gen != nil {
		return gen(buf)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range buf {
		buf[i] = d.sequence
		d.sequence++
	}
	return len(buf), nil
}

func (d *Device) AttrRead(name string, buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.attrs[name]
	if !ok {
		return 0, device.New(device.NoDevice, nil)
	}
	n := copy(buf, v)
	return n, nil
}

func (d *Device) AttrWrite(name string, value []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	d.attrs[name] = cp
	return len(value), nil
}

// Context is a static device.Context over a fixed set of mock devices,
// keyed by both id and name.
type Context struct {
	mu      sync.RWMutex
	byIDKey map[string]*Device
}

// NewContext builds a Context over the given devices.
func NewContext(devices ...*Device) *Context {
	c := &Context{byIDKey: make(map[string]*Device)}
	for _, d := range devices {
		c.byIDKey[d.ID()] = d
		c.byIDKey[d.Name()] = d
	}
	return c
}

func (c *Context) Lookup(idOrName string) (device.Handle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byIDKey[idOrName]
	if !ok {
		return nil, device.New(device.NoDevice, nil)
	}
	return d, nil
}
