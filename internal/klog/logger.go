// Package klog is the ambient logging wrapper used throughout kibosh. It
// follows the shape go-fuse itself accepts (fs.Options.Logger and
// fuse.MountOptions.Logger are both a plain *log.Logger): a thin layer over
// the standard library logger, not a structured logging framework, with a
// timestamp format and an Info/Debug split kibosh needs that the stdlib
// logger doesn't provide out of the box.
package klog

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger wraps a stdlib *log.Logger, stamping each line with a
// "YYYY-MM-DD HH:MM:SS,NNNNNNNNN" timestamp — lexicographically ordered
// so log lines sort the same as they were written — and gating Debugf
// output behind verbose.
type Logger struct {
	out     io.Writer
	std     *log.Logger
	verbose bool
}

// New builds a Logger writing to w. If w is nil, os.Stderr is used,
// matching go-fuse's own default Logger construction.
func New(w io.Writer, verbose bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		out:     w,
		std:     log.New(w, "", 0),
		verbose: verbose,
	}
}

func timestamp() string {
	now := time.Now()
	return fmt.Sprintf("%s,%09d", now.Format("2006-01-02 15:04:05"), now.Nanosecond())
}

// Infof logs an operational message unconditionally.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.std.Printf("%s INFO %s", timestamp(), fmt.Sprintf(format, args...))
}

// Debugf logs a diagnostic message only when the logger was constructed
// with verbose set, matching the --verbose mount option.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.std.Printf("%s DEBUG %s", timestamp(), fmt.Sprintf(format, args...))
}

// StdLogger exposes the underlying *log.Logger for handing to
// fs.Options.Logger / fuse.MountOptions.Logger, which both expect that
// concrete type rather than an interface.
func (l *Logger) StdLogger() *log.Logger {
	if l == nil {
		return log.New(os.Stderr, "", 0)
	}
	return l.std
}
