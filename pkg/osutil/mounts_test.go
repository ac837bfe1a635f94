package osutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIsMountRoot(t *testing.T) {
	mounted, err := CheckIsMount("/")
	require.NoError(t, err)
	assert.True(t, mounted)
}

func TestCheckIsMountFalseForOrdinaryDir(t *testing.T) {
	mounted, err := CheckIsMount(t.TempDir())
	require.NoError(t, err)
	assert.False(t, mounted)
}
