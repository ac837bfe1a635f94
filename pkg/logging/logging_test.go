package logging

import (
	"testing"

	"github.com/csudata/clup-agent/pkg/rpcwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelThenGetLevelRoundTrips(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel(InfoLevel) })

	require.NoError(t, SetLevel(DebugLevel))
	assert.Equal(t, DebugLevel, GetLevel())

	require.NoError(t, SetLevel(CriticalLevel))
	assert.Equal(t, CriticalLevel, GetLevel())
}

func TestSetLevelRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, SetLevel("bogus"))
}

func TestHandleSetLogLevelThenGetLogLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel(InfoLevel) })
	h := NewHandlers()

	args, err := rpcwire.EncodeArgs("warn")
	require.NoError(t, err)
	errCode, _ := h.HandleSetLogLevel(args)
	require.Equal(t, 0, errCode)

	errCode, payload := h.HandleGetLogLevel(nil)
	require.Equal(t, 0, errCode)
	var level string
	require.NoError(t, rpcwire.DecodeArgs(payload, &level))
	assert.Equal(t, "warn", level)
}
