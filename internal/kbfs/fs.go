// Package kbfs is the FUSE op layer: a path-based passthrough filesystem
// that mirrors a target directory tree, consulting the control channel's
// fault set on every read and write.
package kbfs

import (
	"github.com/kibosh/kibosh/internal/control"
	"github.com/kibosh/kibosh/internal/fault"
	"github.com/kibosh/kibosh/internal/klog"
)

// controlName is the sole synthetic entry added at the root.
const controlName = "kibosh_control"

// Fs holds the state shared by every Node and the control file. The fault
// critical section (FirstMatch + Apply, including corruption-count decay)
// and the control channel's commit both serialize on Ctrl's own lock:
// there is no separate Fs-level lock here, because introducing one would
// let a read/write race a commit without actually being ordered by
// anything.
type Fs struct {
	TargetRoot string

	Ctrl *control.State
	RNG  *fault.RNG
	Log  *klog.Logger
}

// NewFs constructs the shared filesystem state. targetRoot must already be
// an absolute, canonicalized path; callers validate that at startup.
func NewFs(targetRoot string, ctrl *control.State, rng *fault.RNG, log *klog.Logger) *Fs {
	return &Fs{
		TargetRoot: targetRoot,
		Ctrl:       ctrl,
		RNG:        rng,
		Log:        log,
	}
}

// firstMatchAndApply is the bounded critical section: one FirstMatch call
// plus the matched Kind's Apply, performed atomically with respect to
// concurrent control-channel commits. buf is the operation's data buffer;
// faults that carry no buffer effect (unreadable/unwritable/delay
// variants) ignore it, and their Effect.N is set to len(buf) so the
// caller never mistakes it for a shortened transfer.
func (f *Fs) firstMatchAndApply(path string, op fault.Op, buf []byte) (fault.Effect, bool) {
	var eff fault.Effect
	matched := false
	f.Ctrl.WithFaults(func(set *fault.Set) {
		k := set.FirstMatch(path, op, f.RNG)
		if k == nil {
			return
		}
		matched = true
		eff = k.Apply(buf, f.RNG)
		switch k.(type) {
		case *fault.ReadCorrupt, *fault.WriteCorrupt:
		default:
			eff.N = len(buf)
		}
	})
	return eff, matched
}
