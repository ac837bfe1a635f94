package shutdown

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownCancelsContextRunsHandlesAndRemovesPIDFile(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "clup-agent.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("1234"), 0o644))

	c := New(pidFile)

	var ran bool
	c.RegisterExitHandle(func() { ran = true })

	var wg sync.WaitGroup
	drained := c.Shutdown(&wg)

	assert.True(t, ran)
	assert.True(t, drained)
	assert.True(t, c.IsExiting())
	_, err := os.ReadFile(pidFile)
	assert.Error(t, err)
}

func TestShutdownIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "clup-agent.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("1234"), 0o644))

	c := New(pidFile)

	var calls int
	c.RegisterExitHandle(func() { calls++ })

	var wg sync.WaitGroup
	first := c.Shutdown(&wg)
	second := c.Shutdown(&wg)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestShutdownTimesOutIfWorkerNeverDrains(t *testing.T) {
	c := New("")

	var wg sync.WaitGroup
	wg.Add(1) // never Done()

	start := time.Now()
	drained := c.Shutdown(&wg)
	elapsed := time.Since(start)

	assert.False(t, drained)
	assert.Less(t, elapsed, 15*time.Second)
}

func TestContextNotDoneBeforeShutdown(t *testing.T) {
	c := New("")
	select {
	case <-c.Context().Done():
		t.Fatal("context should not be done before Shutdown")
	default:
	}
	assert.False(t, c.IsExiting())
}
