// Package sysfs backs device.Handle with a real Linux IIO device:
// raw samples come from the /dev/iio:deviceN character device via a
// raw file descriptor (mirroring the raw-fd control-plane style used
// for ublk's control device), and attributes are plain files under
// /sys/bus/iio/devices/iio:deviceN/.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/openiio/iiod/internal/device"
)

// Device is a real IIO device addressed by its sysfs/chardev paths.
// It does not discover anything: the caller supplies id, name and
// paths up front (see Context) — device discovery and enumeration are
// out of scope for this package.
type Device struct {
	id, name string
	chardev  string // e.g. /dev/iio:device0
	sysfsDir string // e.g. /sys/bus/iio/devices/iio:device0

	mu sync.Mutex
	fd int
}

// New returns a Device for the given chardev and sysfs attribute
// directory. It does not open anything yet.
func New(id, name, chardev, sysfsDir string) *Device {
	return &Device{id: id, name: name, chardev: chardev, sysfsDir: sysfsDir, fd: -1}
}

func (d *Device) ID() string   { return d.id }
func (d *Device) Name() string { return d.name }

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd >= 0 {
		return nil
	}
	fd, err := unix.Open(d.chardev, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return device.New(device.DeviceOpenFailed, fmt.Errorf("open %s: %w", d.chardev, err))
	}
	d.fd = fd
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return fmt.Errorf("close %s: %w", d.chardev, err)
	}
	return nil
}

func (d *Device) ReadRaw(buf []byte) (int, error) {
	d.mu.Lock()
	fd := d.fd
	d.mu.Unlock()
	if fd < 0 {
		return 0, device.New(device.DeviceReadFailed, unix.EBADF)
	}
	n, err := unix.Read(fd, buf)
	if err != nil {
		return 0, device.New(device.DeviceReadFailed, err)
	}
	return n, nil
}

func (d *Device) attrPath(name string) string {
	return filepath.Join(d.sysfsDir, name)
}

func (d *Device) AttrRead(name string, buf []byte) (int, error) {
	f, err := os.Open(d.attrPath(name))
	if err != nil {
		return 0, device.New(device.NoDevice, err)
	}
	defer f.Close()
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return 0, device.New(device.DeviceReadFailed, err)
	}
	return n, nil
}

func (d *Device) AttrWrite(name string, value []byte) (int, error) {
	f, err := os.OpenFile(d.attrPath(name), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return 0, device.New(device.NoDevice, err)
	}
	defer f.Close()
	n, err := f.Write(value)
	if err != nil {
		return n, device.New(device.DeviceOpenFailed, err)
	}
	return n, nil
}

// Context resolves device ids/names to sysfs-backed Devices using a
// static id/name -> paths table supplied at construction (e.g. from
// config), never scanning /sys itself.
type Context struct {
	mu   sync.RWMutex
	byID map[string]*Device
}

// Spec describes one device's static location, as config would supply it.
type Spec struct {
	ID, Name string
	Chardev  string
	SysfsDir string
}

// NewContext builds a Context from a fixed device table.
func NewContext(specs ...Spec) *Context {
	c := &Context{byID: make(map[string]*Device)}
	for _, s := range specs {
		dev := New(s.ID, s.Name, s.Chardev, s.SysfsDir)
		c.byID[s.ID] = dev
		c.byID[s.Name] = dev
	}
	return c
}

func (c *Context) Lookup(idOrName string) (device.Handle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[idOrName]
	if !ok {
		return nil, device.New(device.NoDevice, nil)
	}
	return d, nil
}
