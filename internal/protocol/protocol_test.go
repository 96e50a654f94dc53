package protocol

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteStatus(&buf, 32)
	require.NoError(t, err)
	assert.Equal(t, "32\n", buf.String())
}

func TestWriteStatusNegative(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteStatus(&buf, -5)
	require.NoError(t, err)
	assert.Equal(t, "-5\n", buf.String())
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteError(&buf, fmt.Errorf("disk on fire"))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: disk on fire\n", buf.String())
}

func TestWriteStreamError(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteStreamError(&buf, -5)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ERROR reading device: ")
}

func TestWriteAttrPayload(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteAttrPayload(&buf, []byte("1000"))
	require.NoError(t, err)
	assert.Equal(t, "4\n1000\n", buf.String())
}

func TestWriteAttrPayloadEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteAttrPayload(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "0\n\n", buf.String())
}
