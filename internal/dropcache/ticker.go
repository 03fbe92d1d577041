// Package dropcache implements the optional cache-drop ticker: every
// period, it opens a configured path for writing and writes the single
// byte "1", the standard Linux "drop page cache" incantation.
package dropcache

import (
	"context"
	"os"
	"time"
)

// DefaultPath matches original_source/drop_cache.c's default target.
const DefaultPath = "/proc/sys/vm/drop_caches"

// DefaultPeriod is used when the operator does not configure one.
const DefaultPeriod = 30 * time.Second

// Ticker periodically writes to Path every Period, until its context is
// canceled. It uses time.Ticker, which the standard library documents as
// monotonic, and a context.Context so a single cancellation wakes it
// immediately rather than waiting out the current period.
type Ticker struct {
	Path   string
	Period time.Duration

	onWrite func(error) // test hook; nil in production
}

// New builds a Ticker with the given path/period, substituting the
// defaults for zero values.
func New(path string, period time.Duration) *Ticker {
	if path == "" {
		path = DefaultPath
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Ticker{Path: path, Period: period}
}

// Run blocks, writing to Path every Period, until ctx is canceled. It is
// designed to be launched under an errgroup.Group alongside the FUSE server
// loop (cmd/kibosh), returning nil on a clean ctx.Done() shutdown.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := t.write()
			if t.onWrite != nil {
				t.onWrite(err)
			}
		}
	}
}

func (t *Ticker) write() error {
	f, err := os.OpenFile(t.Path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{'1'})
	return err
}
