// Package pidfile writes and removes the optional process pidfile, using
// an atomic rename so a reader never observes a partially written file.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
)

// Write atomically writes the current process's pid, followed by a
// newline, to path.
func Write(path string) error {
	content := strconv.Itoa(os.Getpid()) + "\n"
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("pidfile: write %s: %w", path, err)
	}
	return nil
}

// Remove deletes path, ignoring a not-exist error so a second shutdown
// signal or an already-cleaned-up pidfile is not treated as a failure.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pidfile: remove %s: %w", path, err)
	}
	return nil
}
