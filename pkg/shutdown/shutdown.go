// Package shutdown coordinates graceful process exit: a cancellable
// context every long-running goroutine watches, a registry of exit
// handles run in order on the way out, and a bounded drain that waits
// for workers to notice the context was cancelled before giving up.
//
// Grounded on original_source/lib/grace_exit.py, reworked from its
// global _exit_flag/thread-enumeration approach onto a context.Context
// plus caller-supplied sync.WaitGroup, since Go has no thread registry
// to walk the way Python's threading.enumerate() does.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/csudata/clup-agent/pkg/logging"
)

const (
	drainRetries  = 30
	drainInterval = 300 * time.Millisecond
)

// Coordinator owns the process-wide exit context and the handles that
// must run before the process actually terminates.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handles []func()

	pidFile string

	shutdownOnce   sync.Once
	shutdownResult bool
}

// New builds a Coordinator whose Shutdown will remove pidFile once
// draining completes (or times out).
func New(pidFile string) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel, pidFile: pidFile}
}

// Context is cancelled the moment a shutdown signal arrives or Shutdown
// is called; every long-running goroutine should select on Context().Done().
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// IsExiting reports whether shutdown has begun.
func (c *Coordinator) IsExiting() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// RegisterExitHandle appends a function to be run, in registration
// order, as the first step of Shutdown.
func (c *Coordinator) RegisterExitHandle(h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = append(c.handles, h)
}

// ListenSignals installs handlers for SIGINT/SIGTERM that trigger
// Shutdown, and ignores SIGPIPE the way the source agent does so a
// peer closing its read side doesn't kill the process outright.
func (c *Coordinator) ListenSignals(wg *sync.WaitGroup) {
	signal.Ignore(syscall.SIGPIPE)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Logger.Info().Str("signal", sig.String()).Msg("recv signal, program will stop")
		c.Shutdown(wg)
	}()
}

// Shutdown cancels the exit context, runs every registered exit
// handle, waits up to drainRetries*drainInterval for wg to drain, and
// finally removes the pid file regardless of whether the drain
// completed in time. Safe to call more than once (e.g. once from the
// signal handler and once from main waiting on Context()) — later
// calls block until the first completes and return its result.
func (c *Coordinator) Shutdown(wg *sync.WaitGroup) bool {
	c.shutdownOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		handles := append([]func(){}, c.handles...)
		c.mu.Unlock()
		for _, h := range handles {
			h()
		}

		c.shutdownResult = c.drain(wg)
		if c.pidFile != "" {
			if err := os.Remove(c.pidFile); err != nil && !os.IsNotExist(err) {
				logging.Errorf(err, "remove pid file %s", c.pidFile)
			}
		}
	})
	return c.shutdownResult
}

func (c *Coordinator) drain(wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(time.Duration(drainRetries) * drainInterval):
		logging.Warn("not all workers stopped before the drain timeout")
		return false
	}
}
