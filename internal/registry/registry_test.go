package registry

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openiio/iiod/internal/device"
	"github.com/openiio/iiod/internal/device/mock"
)

func await(t *testing.T, e *Entry) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for entry teardown")
	}
}

// TestSingleSubscriberReceivesExactBytes requests few enough samples
// that the whole read completes in one iteration (nbSamples=8 is well
// under the default 1024-byte cap / 4-byte sample size = 256), so the
// wire layout is exactly one "%d\n" header followed by the raw sample
// bytes (which may contain arbitrary byte values, including '\n' or
// digit bytes — the test must not try to reparse them as text).
func TestSingleSubscriberReceivesExactBytes(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	reg := New(nil, 0)

	var sink bytes.Buffer
	sub := NewSubscriber(&sink, false, 8)

	e, created, err := reg.AttachSubscriber(d, 4, sub)
	require.NoError(t, err)
	assert.True(t, created)

	res := sub.Wait()
	require.NoError(t, res.Err)

	await(t, e)

	want := append([]byte("32\n"), sequence(0, 32)...)
	assert.Equal(t, want, sink.Bytes())
	assert.Equal(t, 1, d.OpenCount())
	assert.Equal(t, 1, d.CloseCount())
	assert.Equal(t, 0, reg.Count())
}

// sequence returns the bytes the mock device's default generator
// produces, starting from start and incrementing mod 256.
func sequence(start byte, n int) []byte {
	out := make([]byte, n)
	v := start
	for i := range out {
		out[i] = v
		v++
	}
	return out
}

// TestTwoSubscribersSeeIdenticalBytes verifies the broadcast
// invariant: every subscriber attached before an iteration's hardware
// read completes sees byte-identical framing and payload from that
// iteration. Gen blocks until both subscribers have attached, closing
// the race between subB's attach and subA's iteration finishing (and
// being torn down) before subB ever joins — without it, subB could
// land in its own later iteration with different generated bytes.
func TestTwoSubscribersSeeIdenticalBytes(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	proceed := make(chan struct{})
	d.Gen = func(buf []byte) (int, error) {
		<-proceed
		for i := range buf {
			buf[i] = byte(i)
		}
		return len(buf), nil
	}

	reg := New(nil, 0)
	var sinkA, sinkB bytes.Buffer
	subA := NewSubscriber(&sinkA, false, 8)
	subB := NewSubscriber(&sinkB, false, 8)

	e, _, err := reg.AttachSubscriber(d, 4, subA)
	require.NoError(t, err)
	_, _, err = reg.AttachSubscriber(d, 4, subB)
	require.NoError(t, err)

	close(proceed)

	resA := subA.Wait()
	resB := subB.Wait()
	require.NoError(t, resA.Err)
	require.NoError(t, resB.Err)

	await(t, e)

	assert.Equal(t, sinkA.Bytes(), sinkB.Bytes())
}

// TestSampleSizeMismatchIsInvalidArgument attaches a mismatched-size
// subscriber to a live entry. Gen blocks the reader's first iteration
// so the entry is guaranteed to still be live (not yet torn down) when
// the second AttachSubscriber call runs its sample-size check.
func TestSampleSizeMismatchIsInvalidArgument(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	proceed := make(chan struct{})
	d.Gen = func(buf []byte) (int, error) {
		<-proceed
		return len(buf), nil
	}
	reg := New(nil, 0)

	var sinkA, sinkB bytes.Buffer
	subA := NewSubscriber(&sinkA, false, 8)
	subB := NewSubscriber(&sinkB, false, 8)

	e, _, err := reg.AttachSubscriber(d, 4, subA)
	require.NoError(t, err)

	_, _, err = reg.AttachSubscriber(d, 2, subB)
	require.Error(t, err)
	de, ok := device.AsError(err)
	require.True(t, ok)
	assert.Equal(t, device.InvalidArgument, de.Kind)

	close(proceed)

	subA.Wait()
	await(t, e)
}

func TestMidStreamReadErrorTearsDownEntry(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	calls := 0
	var mu sync.Mutex
	d.Gen = func(buf []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return len(buf), nil
		}
		return -5, nil
	}

	// A 4-byte iteration cap forces one sample per iteration, so the
	// 100-sample request spans multiple iterations and actually
	// reaches Gen's second (failing) call instead of completing whole
	// in a single iteration under the default 1024-byte cap.
	reg := New(nil, 4)
	var sink bytes.Buffer
	sub := NewSubscriber(&sink, false, 100)

	e, _, err := reg.AttachSubscriber(d, 4, sub)
	require.NoError(t, err)

	res := sub.Wait()
	require.Error(t, res.Err)
	assert.Equal(t, -5, device.CodeOf(res.Err))

	await(t, e)
	assert.Equal(t, 1, d.OpenCount())
	assert.Equal(t, 1, d.CloseCount())
	assert.Equal(t, 0, reg.Count())
}

func TestDeviceOpenFailurePropagates(t *testing.T) {
	d := mock.New("dev0", "adc0", nil)
	d.FailOpen = device.New(device.DeviceOpenFailed, nil)

	reg := New(nil, 0)
	var sink bytes.Buffer
	sub := NewSubscriber(&sink, false, 4)

	_, _, err := reg.AttachSubscriber(d, 4, sub)
	require.Error(t, err)

	de, ok := device.AsError(err)
	require.True(t, ok)
	assert.Equal(t, device.DeviceOpenFailed, de.Kind)
	assert.Equal(t, 0, reg.Count())
}
