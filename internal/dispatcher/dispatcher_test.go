package dispatcher

import (
	"bytes"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openiio/iiod/internal/device"
	"github.com/openiio/iiod/internal/device/mock"
	"github.com/openiio/iiod/internal/registry"
)

func TestReadDevSuccess(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	reg := registry.New(nil, 0)
	disp := New(reg, nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	n, err := disp.ReadDev(client, "dev0", 8, 4)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	assert.Equal(t, "32\n", sink.String()[:3])
}

func TestReadDevUnknownDevice(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	reg := registry.New(nil, 0)
	disp := New(reg, nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	n, err := disp.ReadDev(client, "nope", 8, 4)
	require.Error(t, err)
	assert.Equal(t, -int(syscall.ENODEV), n)
	assert.Equal(t, "-19\n", sink.String())
}

func TestReadDevVerboseReportsErrorLine(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	reg := registry.New(nil, 0)
	disp := New(reg, nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Verbose: true, Ctx: mock.NewContext(d)}

	_, err := disp.ReadDev(client, "nope", 8, 4)
	require.Error(t, err)
	assert.Contains(t, sink.String(), "ERROR: ")
}

func TestReadDevZeroSamplesCompletesImmediately(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	reg := registry.New(nil, 0)
	disp := New(reg, nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	n, err := disp.ReadDev(client, "dev0", 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, sink.Len())
	assert.Equal(t, 0, reg.Count())
}

func TestReadDevAttrSuccess(t *testing.T) {
	d := mock.New("dev0", "adc0", map[string]string{"sampling_freq": "1000"})
	disp := New(registry.New(nil, 0), nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	n, err := disp.ReadDevAttr(client, "dev0", "sampling_freq")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "4\n1000\n", sink.String())
}

func TestReadDevAttrUnknownAttr(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	disp := New(registry.New(nil, 0), nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	_, err := disp.ReadDevAttr(client, "dev0", "missing")
	require.Error(t, err)
	de, ok := device.AsError(err)
	require.True(t, ok)
	assert.Equal(t, device.NoDevice, de.Kind)
}

func TestReadDevAttrUnknownDevice(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	disp := New(registry.New(nil, 0), nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	_, err := disp.ReadDevAttr(client, "nope", "sampling_freq")
	require.Error(t, err)
}

func TestWriteDevAttrSuccess(t *testing.T) {
	d := mock.New("dev0", "adc0", map[string]string{"sampling_freq": "1000"})
	disp := New(registry.New(nil, 0), nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	n, err := disp.WriteDevAttr(client, "dev0", "sampling_freq", []byte("2000"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "4\n", sink.String())

	buf := make([]byte, 16)
	read, rerr := d.AttrRead("sampling_freq", buf)
	require.NoError(t, rerr)
	assert.Equal(t, "2000", string(buf[:read]))
}

func TestWriteDevAttrUnknownDevice(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	disp := New(registry.New(nil, 0), nil)

	var sink bytes.Buffer
	client := &Client{Sink: &sink, Ctx: mock.NewContext(d)}

	_, err := disp.WriteDevAttr(client, "nope", "sampling_freq", []byte("2000"))
	require.Error(t, err)
}

// TestReadDevSampleSizeMismatchReportsInvalidArgument attaches a live
// entry directly through the registry (so there is no race to
// coordinate) and verifies ReadDev surfaces the resulting mismatch as
// device.InvalidArgument. Gen blocks so the entry stays live while
// clientB's mismatched attach runs.
func TestReadDevSampleSizeMismatchReportsInvalidArgument(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	proceed := make(chan struct{})
	d.Gen = func(buf []byte) (int, error) {
		<-proceed
		return len(buf), nil
	}
	reg := registry.New(nil, 0)
	disp := New(reg, nil)

	var sinkA bytes.Buffer
	subA := registry.NewSubscriber(&sinkA, false, 8)
	_, _, err := reg.AttachSubscriber(d, 4, subA)
	require.NoError(t, err)

	var sinkB bytes.Buffer
	clientB := &Client{Sink: &sinkB, Ctx: mock.NewContext(d)}
	n, err := disp.ReadDev(clientB, "dev0", 8, 2)
	require.Error(t, err)
	assert.Equal(t, -int(syscall.EINVAL), n)

	close(proceed)
	subA.Wait()
}
