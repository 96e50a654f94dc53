// Package protocol implements the daemon's bit-level output framing.
// It has no notion of commands or connections — it only knows how to
// shape bytes onto a sink — so it is shared by the reader task
// (internal/registry), the command dispatcher (internal/dispatcher),
// and the outer accept loop (internal/netserver).
package protocol

import (
	"fmt"
	"io"

	"github.com/openiio/iiod/internal/device"
)

// Prompt is the verbose prompt the outer loop owns, not the core;
// internal/netserver writes it, nothing in internal/registry or
// internal/dispatcher ever does.
const Prompt = "iio-daemon > "

// WriteStatus writes the non-verbose header: a signed decimal integer
// followed by a single newline ("%d\n").
func WriteStatus(w io.Writer, n int) (int, error) {
	return fmt.Fprintf(w, "%d\n", n)
}

// WriteError writes the generic verbose error line: "ERROR: " plus the
// platform's textual description of the error, plus a newline.
func WriteError(w io.Writer, err error) (int, error) {
	return fmt.Fprintf(w, "ERROR: %s\n", describe(err))
}

// WriteStreamError writes the verbose error line specific to a failed
// streaming read: "ERROR reading device: " plus the description.
func WriteStreamError(w io.Writer, code int) (int, error) {
	return fmt.Fprintf(w, "ERROR reading device: %s\n", describe(device.NewCode(device.DeviceReadFailed, code)))
}

// WriteAttrPayload writes the attribute read payload: the header line
// (byte count), the attribute bytes, then a single newline.
func WriteAttrPayload(w io.Writer, value []byte) (int, error) {
	n1, err := WriteStatus(w, len(value))
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(value)
	if err != nil {
		return n1 + n2, err
	}
	n3, err := fmt.Fprintln(w)
	return n1 + n2 + n3, err
}

func describe(err error) string {
	if de, ok := device.AsError(err); ok {
		return de.Errno.Error()
	}
	return err.Error()
}
