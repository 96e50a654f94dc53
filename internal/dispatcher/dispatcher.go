// Package dispatcher implements the three operations the (out-of-scope)
// command parser consumes: read_dev, read_dev_attr, write_dev_attr.
// It talks to both internal/device (to resolve ids/names) and
// internal/registry (to join the streaming engine), and it owns the attribute read/write paths, which share
// the device-lookup interface with streaming reads but carry no
// concurrency interest of their own.
package dispatcher

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/openiio/iiod/internal/device"
	"github.com/openiio/iiod/internal/protocol"
	"github.com/openiio/iiod/internal/registry"
)

// MaxAttrSize bounds a single attribute read, matching the sysfs
// PAGE_SIZE convention real IIO attribute files are bound by.
const MaxAttrSize = 4096

// Client is the per-request record: an output sink, a verbosity flag,
// and the device context to resolve against. The input source and
// "stop requested" flag belong to the outer loop, not the dispatcher.
type Client struct {
	Sink    io.Writer
	Verbose bool
	Ctx     device.Context
}

// Dispatcher is the public API consumed by the command parser.
type Dispatcher struct {
	Registry *registry.Registry
	logger   *log.Logger
}

// New creates a Dispatcher bound to reg. logger may be nil.
func New(reg *registry.Registry, logger *log.Logger) *Dispatcher {
	return &Dispatcher{Registry: reg, logger: logger}
}

// ReadDev implements read_dev: resolve the device, join (or start)
// its reader task for nb samples of sampleSize, block until the
// reader task signals completion, and return either the subscriber's
// terminal error code or nb*sampleSize.
func (d *Dispatcher) ReadDev(c *Client, deviceID string, nb, sampleSize int) (int, error) {
	h, err := c.Ctx.Lookup(deviceID)
	if err != nil {
		d.reportError(c, err)
		return device.CodeOf(err), err
	}

	if nb <= 0 {
		// Completes immediately with status zero, no payload.
		return 0, nil
	}

	sub := registry.NewSubscriber(c.Sink, c.Verbose, nb)
	if _, _, err := d.Registry.AttachSubscriber(h, sampleSize, sub); err != nil {
		d.reportError(c, err)
		return device.CodeOf(err), err
	}

	res := sub.Wait()
	if res.Err != nil {
		return device.CodeOf(res.Err), res.Err
	}
	return nb * sampleSize, nil
}

// ReadDevAttr implements read_dev_attr.
func (d *Dispatcher) ReadDevAttr(c *Client, deviceID, attr string) (int, error) {
	h, err := c.Ctx.Lookup(deviceID)
	if err != nil {
		d.reportError(c, err)
		return device.CodeOf(err), err
	}

	buf := make([]byte, MaxAttrSize)
	n, err := h.AttrRead(attr, buf)
	if err != nil {
		d.reportError(c, err)
		return device.CodeOf(err), err
	}

	if _, werr := protocol.WriteAttrPayload(c.Sink, buf[:n]); werr != nil {
		return n, device.New(device.SinkWriteFailed, werr)
	}
	return n, nil
}

// WriteDevAttr implements write_dev_attr.
func (d *Dispatcher) WriteDevAttr(c *Client, deviceID, attr string, value []byte) (int, error) {
	h, err := c.Ctx.Lookup(deviceID)
	if err != nil {
		d.reportError(c, err)
		return device.CodeOf(err), err
	}

	n, err := h.AttrWrite(attr, value)
	if err != nil {
		d.reportError(c, err)
		return device.CodeOf(err), err
	}

	if _, werr := protocol.WriteStatus(c.Sink, n); werr != nil {
		return n, device.New(device.SinkWriteFailed, werr)
	}
	return n, nil
}

func (d *Dispatcher) reportError(c *Client, err error) {
	if c.Verbose {
		protocol.WriteError(c.Sink, err)
		return
	}
	protocol.WriteStatus(c.Sink, device.CodeOf(err))
}
