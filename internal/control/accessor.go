package control

import (
	"sync"

	"github.com/kibosh/kibosh/internal/iobuf"
)

// Accessor is the per-open in-memory buffer backing one open of
// /kibosh_control. It is owned exclusively by the open that created it;
// two concurrent writers each carry their own buffer, and whichever
// releases last wins.
type Accessor struct {
	mu       sync.Mutex
	buf      []byte
	readOnly bool
	capacity int
	pool     *iobuf.Pool
}

// Read serves len bytes starting at offset from the accessor buffer,
// mirroring a regular file's read semantics.
func (a *Accessor) Read(offset int64, length int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if offset < 0 || offset >= int64(len(a.buf)) {
		return nil
	}
	end := offset + int64(length)
	if end > int64(len(a.buf)) {
		end = int64(len(a.buf))
	}
	out := make([]byte, end-offset)
	copy(out, a.buf[offset:end])
	return out
}

// Write overwrites/extends the accessor buffer starting at offset with
// data, growing it as needed. The buffer is hard-capped at capacity: bytes
// beyond it are silently dropped, which causes Parse to fail safely at
// release time instead of rejecting the write outright.
func (a *Accessor) Write(offset int64, data []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if offset < 0 {
		return 0
	}
	if offset > int64(a.capacity) {
		return 0
	}

	end := offset + int64(len(data))
	if end > int64(a.capacity) {
		end = int64(a.capacity)
	}
	n := end - offset
	if n <= 0 {
		return 0
	}

	if need := int(end); need > len(a.buf) {
		grown := a.pool.Get(need)
		copy(grown, a.buf)
		old := a.buf
		a.buf = grown
		if old != nil {
			a.pool.Put(old)
		}
	}
	copy(a.buf[offset:end], data[:n])
	return int(n)
}

// Snapshot returns a copy of the accessor's current buffer contents, used
// by Release to hand the committed text to State.commit without holding
// the accessor lock across the parse.
func (a *Accessor) Snapshot() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.buf...)
}
