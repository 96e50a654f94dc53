// Package device defines the IIO device handle and context that the
// streaming engine (internal/registry) and the command dispatcher
// (internal/dispatcher) consume. It is deliberately a thin interface:
// the backend packages (internal/device/mock, internal/device/sysfs)
// are built from an explicit device list, and neither they nor this
// package discover devices.
package device

// Handle is an opaque reference to one physical IIO device. A Handle
// is safe for use by a single reader task after Open; the registry
// only calls Open (and, at teardown, Close) itself.
type Handle interface {
	// ID returns the device's stable identifier (e.g. "iio:device0").
	ID() string
	// Name returns the device's human-readable name (e.g. "ad7124-8").
	Name() string

	Open() error
	Close() error

	// ReadRaw reads raw sample bytes into buf, returning the number of
	// bytes read or a negative-valued error via the returned error's
	// Kind (DeviceReadFailed). Callers size buf to a whole number of
	// samples; partial samples are a backend bug, not a caller concern.
	ReadRaw(buf []byte) (int, error)

	// AttrRead reads a named device attribute into buf, returning the
	// number of bytes read.
	AttrRead(name string, buf []byte) (int, error)
	// AttrWrite writes value to a named device attribute, returning the
	// number of bytes accepted by the device.
	AttrWrite(name string, value []byte) (int, error)
}

// Context enumerates already-known device handles and resolves a
// caller-supplied id or name to one. How the context came to know
// about its devices (a static map, a config file, a sysfs scan) is a
// backend concern; device discovery itself is out of scope here.
type Context interface {
	// Lookup resolves idOrName to a Handle. The same Handle value is
	// returned for repeated calls with the same device, so it is safe
	// to use as a map key in the registry.
	Lookup(idOrName string) (Handle, error)
}
