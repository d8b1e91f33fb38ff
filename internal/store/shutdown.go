package store

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// Flusher is anything holding unsaved state that must reach disk before the
// process exits.
type Flusher interface {
	Flush() error
	Path() string
}

// ShutdownCoordinator owns the interrupt wiring for every live store. It is
// constructed once at process start and handed to each cache, replacing any
// ambient global registry. Registration is append-only and happens at
// construction time of the caches, before the pipeline starts; the signal
// goroutine only reads the slice afterwards, so no locking is needed.
type ShutdownCoordinator struct {
	flushers []Flusher
	log      zerolog.Logger
}

func NewShutdownCoordinator(log zerolog.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{log: log.With().Str("component", "shutdown").Logger()}
}

// Register adds a flusher to the shutdown set.
func (c *ShutdownCoordinator) Register(f Flusher) {
	c.flushers = append(c.flushers, f)
}

// FlushAll saves every registered flusher, best effort. Safe to call more
// than once: flushers with nothing dirty are no-ops.
func (c *ShutdownCoordinator) FlushAll() {
	for _, f := range c.flushers {
		if err := f.Flush(); err != nil {
			c.log.Error().Err(err).Str("path", f.Path()).Msg("failed to flush store")
			continue
		}
	}
}

// HandleSignals installs the SIGINT/SIGTERM handler. On interrupt all stores
// are flushed and the process exits with the conventional 130 status.
// Interruption is a control path, not an error: work done so far is persisted,
// and the atomic save discipline in File guarantees no half-written cache.
func (c *ShutdownCoordinator) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		c.log.Warn().Str("signal", sig.String()).Msg("interrupt received, saving caches")
		c.FlushAll()
		os.Exit(130)
	}()
}
