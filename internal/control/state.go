// Package control implements the Kibosh control channel: the in-memory
// JSON document backing /kibosh_control, with open-for-read snapshot and
// open-for-write commit semantics, independent of any FUSE type so it can
// be exercised without mounting anything.
package control

import (
	"bytes"
	"sync"

	"github.com/kibosh/kibosh/internal/fault"
	"github.com/kibosh/kibosh/internal/handle"
	"github.com/kibosh/kibosh/internal/iobuf"
	"github.com/kibosh/kibosh/internal/klog"
)

// DefaultCapacity is the maximum accepted JSON document length on write:
// 16384 bytes.
const DefaultCapacity = 16384

// DefaultMode is the permission bits reported for /kibosh_control absent
// an operator override.
const DefaultMode = 0600

// State owns the live fault set and its canonical JSON representation.
// All access is serialized by mu: readers take a snapshot under the lock,
// writers commit under the lock, so a concurrent operation handler
// observes the whole old set or the whole new set, never a mix.
type State struct {
	mu sync.RWMutex

	currentJSON  []byte
	activeFaults *fault.Set

	capacity int
	mode     uint32

	log *klog.Logger

	accessors *handle.Table[*Accessor]
	bufPool   *iobuf.Pool
}

// New constructs a State with the empty fault set active, matching the
// startup default.
func New(mode uint32, capacity int, log *klog.Logger) *State {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if mode == 0 {
		mode = DefaultMode
	}
	empty := fault.Empty()
	b, _ := empty.MarshalJSON()
	return &State{
		currentJSON:  b,
		activeFaults: empty,
		capacity:     capacity,
		mode:         mode,
		log:          log,
		accessors:    handle.NewTable[*Accessor](),
		bufPool: iobuf.New(8, func(want int) int {
			if want < capacity {
				return capacity
			}
			return want
		}),
	}
}

// Mode returns the permission bits reported for the control file.
func (s *State) Mode() uint32 { return s.mode }

// Capacity returns the maximum accepted JSON document length.
func (s *State) Capacity() int { return s.capacity }

// Size returns the length of the current canonical JSON document, used
// for the control file's getattr.
func (s *State) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.currentJSON))
}

// ActiveFaults returns the live fault set under the shared lock, for use
// by the op layer's FirstMatch call. The returned Set must not be mutated
// by the caller; Apply on matched Kinds is safe
// because decay mutation is expected to happen while still holding this
// same lock — callers take the lock themselves via WithFaults.
func (s *State) ActiveFaults() *fault.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeFaults
}

// WithFaults runs fn with the active fault set while holding the state
// lock, so fn's FirstMatch + Apply (including corruption-count decay) is
// atomic with respect to concurrent control-channel commits.
func (s *State) WithFaults(fn func(set *fault.Set)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.activeFaults)
}

// Open allocates a per-open accessor. If trunc is false, the accessor
// buffer starts as a snapshot of the current JSON;
// otherwise it starts empty. readOnly records the access mode so Release
// can route to "close silently" vs. the commit path.
func (s *State) Open(trunc bool, readOnly bool) handle.ID {
	var initial []byte
	if !trunc {
		s.mu.RLock()
		initial = append([]byte(nil), s.currentJSON...)
		s.mu.RUnlock()
	}
	id := s.accessors.Alloc(&Accessor{buf: initial, readOnly: readOnly, capacity: s.capacity, pool: s.bufPool})
	s.log.Debugf("control: opened accessor %d (%d open)", id, s.accessors.Len())
	return id
}

// Accessor returns the live accessor for id, if any.
func (s *State) Accessor(id handle.ID) (*Accessor, bool) {
	return s.accessors.Get(id)
}

// Release implements the control file's release contract: read-only
// accessors close silently; read-write accessors compare their buffer to
// the current JSON and, if different, attempt to parse and atomically
// commit it. Rejected configurations never touch the live set.
func (s *State) Release(id handle.ID) error {
	acc, ok := s.accessors.Release(id)
	if !ok {
		return nil
	}
	s.accessors.Compact()
	if acc.readOnly {
		return nil
	}
	return s.commit(acc.Snapshot())
}

func (s *State) commit(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bytes.Equal(buf, s.currentJSON) {
		// Idempotent commit: no reparse, no change.
		return nil
	}

	parsed, err := fault.Parse(buf)
	if err != nil {
		if s.log != nil {
			s.log.Infof("control: rejecting configuration: %v", err)
		}
		// Safe-fail: the write "succeeds" from the writer's perspective but
		// the existing configuration survives untouched.
		return nil
	}

	s.activeFaults = parsed
	s.currentJSON = append([]byte(nil), buf...)
	return nil
}
