package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ListenAddress = ""

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device.Backend = "ftdi"

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsNonPositiveIterationCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stream.IterationByteCap = 0

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
}
