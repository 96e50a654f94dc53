package registry

import (
	"fmt"
	"io"

	"github.com/openiio/iiod/internal/device"
)

// allocBuffer allocates an n-byte buffer. Go's runtime has no portable
// way to recover from a true allocation failure (unlike a C malloc
// returning NULL, it is fatal and unrecoverable), so this only rejects
// a negative size (a zero size yields a nil buffer); true OOM is
// handled the same way any other Go process handles it, by not
// returning at all.
func allocBuffer(n int) (buf []byte, err error) {
	if n < 0 {
		return nil, fmt.Errorf("negative buffer size %d", n)
	}
	if n == 0 {
		return nil, nil
	}
	return make([]byte, n), nil
}

// doRead calls ReadRaw and translates its result into the signed
// byte-count-or-negative-errno convention the reader task works in
// throughout (mirroring the underlying read(2) convention).
func doRead(h device.Handle, buf []byte) int {
	n, err := h.ReadRaw(buf)
	if err != nil {
		return device.CodeOf(err)
	}
	return n
}

// writeSamples writes buf to sink, looping over partial writes the way
// a blocking write(2) would, and returns the number of whole samples
// it was able to deliver. A short write that returns no error is not
// treated as a failure, only as a partial delivery the caller accounts
// for by retrying on the next iteration.
func writeSamples(sink io.Writer, buf []byte, sampleSize int) (samples int, err error) {
	written := 0
	for written < len(buf) {
		n, werr := sink.Write(buf[written:])
		written += n
		if werr != nil {
			return written / sampleSize, werr
		}
		if n == 0 {
			break
		}
	}
	return written / sampleSize, nil
}
