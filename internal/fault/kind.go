package fault

import "github.com/kibosh/kibosh/internal/iobuf"

// scratchBufs pools the scratch copies write_corrupt allocates so a
// high-frequency corrupted write doesn't churn the allocator on every
// call. Sized to typical FUSE write chunk sizes; Get grows past that
// transparently for larger writes.
var scratchBufs = iobuf.New(64, func(want int) int {
	if want < 128*1024 {
		return 128 * 1024
	}
	return want
})

// ReleaseBuf returns a buffer previously handed back via Effect.Buf to the
// scratch pool. Callers must not touch buf after calling this.
func ReleaseBuf(buf []byte) {
	if buf == nil {
		return
	}
	scratchBufs.Put(buf)
}

// Effect is what applying a matched Kind asks the op layer (C6) to do.
// Exactly one of Errno/DelayMS/N+Buf is meaningful per variant; the zero
// value of the fields the variant doesn't use is always inert (Errno==0
// means "no forced error", DelayMS==0 means "no sleep", Buf==nil means
// "mutate/return the caller's buffer, don't replace it").
type Effect struct {
	Errno   int32 // negative errno to return; 0 = no forced error
	DelayMS int64 // milliseconds to sleep, performed by the caller outside the lock
	N       int   // bytes actually transferred, for corrupt modes
	Buf     []byte
}

// Kind is the tagged-union interface every fault variant implements.
// Implementations are pointer receivers so that corruption-mode count
// decay mutates the live descriptor in place.
type Kind interface {
	// Matches reports whether this fault applies to (path, op). For
	// probabilistic faults it also draws from r and requires the sample
	// to fall within the configured fraction.
	Matches(path string, op Op, r *RNG) bool

	// Apply produces the effect of this fault firing. Unreadable,
	// Unwritable and the delay variants ignore buf; for corrupt variants
	// it is the buffer to corrupt (read path: the already-filled
	// destination, mutated in place; write path: the caller's source,
	// which WriteCorrupt copies into a scratch buffer and never mutates).
	Apply(buf []byte, r *RNG) Effect

	typeTag() string
}

func negateCode(code int) int32 {
	if code < 0 {
		code = -code
	}
	return int32(-code)
}

// Unreadable fails reads with a fixed, non-zero error code.
type Unreadable struct {
	matcher
	Code int
}

func (k *Unreadable) Matches(path string, op Op, _ *RNG) bool { return k.matcher.matches(path, op) }
func (k *Unreadable) Apply(_ []byte, _ *RNG) Effect           { return Effect{Errno: negateCode(k.Code)} }
func (k *Unreadable) typeTag() string                         { return "unreadable" }

// Unwritable fails writes with a fixed, non-zero error code.
type Unwritable struct {
	matcher
	Code int
}

func (k *Unwritable) Matches(path string, op Op, _ *RNG) bool { return k.matcher.matches(path, op) }
func (k *Unwritable) Apply(_ []byte, _ *RNG) Effect           { return Effect{Errno: negateCode(k.Code)} }
func (k *Unwritable) typeTag() string                         { return "unwritable" }

// ReadDelay probabilistically delays reads.
type ReadDelay struct {
	matcher
	DelayMS  int64
	Fraction float64
}

func (k *ReadDelay) Matches(path string, op Op, r *RNG) bool {
	return k.matcher.matches(path, op) && r.Float64() <= k.Fraction
}
func (k *ReadDelay) Apply(_ []byte, _ *RNG) Effect { return Effect{DelayMS: k.DelayMS} }
func (k *ReadDelay) typeTag() string               { return "read_delay" }

// WriteDelay probabilistically delays writes.
type WriteDelay struct {
	matcher
	DelayMS  int64
	Fraction float64
}

func (k *WriteDelay) Matches(path string, op Op, r *RNG) bool {
	return k.matcher.matches(path, op) && r.Float64() <= k.Fraction
}
func (k *WriteDelay) Apply(_ []byte, _ *RNG) Effect { return Effect{DelayMS: k.DelayMS} }
func (k *WriteDelay) typeTag() string               { return "write_delay" }

// ReadCorrupt probabilistically corrupts read buffers, decaying into a
// permanent DROP@1.0 fault after Count injections. Count < 0 never decays.
type ReadCorrupt struct {
	matcher
	Mode     Mode
	Count    int64
	Fraction float64
}

func (k *ReadCorrupt) Matches(path string, op Op, _ *RNG) bool { return k.matcher.matches(path, op) }

func (k *ReadCorrupt) Apply(buf []byte, r *RNG) Effect {
	n := applyCorruptAndDecay(&k.Mode, &k.Count, &k.Fraction, buf, r)
	return Effect{N: n}
}
func (k *ReadCorrupt) typeTag() string { return "read_corrupt" }

// WriteCorrupt probabilistically corrupts write buffers. It never mutates
// the caller's source buffer: Apply returns a corrupted copy, taken from
// the scratchBufs pool, in Effect.Buf.
type WriteCorrupt struct {
	matcher
	Mode     Mode
	Count    int64
	Fraction float64
}

func (k *WriteCorrupt) Matches(path string, op Op, _ *RNG) bool { return k.matcher.matches(path, op) }

func (k *WriteCorrupt) Apply(buf []byte, r *RNG) Effect {
	scratch := scratchBufs.Get(len(buf))
	copy(scratch, buf)
	n := applyCorruptAndDecay(&k.Mode, &k.Count, &k.Fraction, scratch, r)
	return Effect{N: n, Buf: scratch}
}
func (k *WriteCorrupt) typeTag() string { return "write_corrupt" }

// applyCorruptAndDecay is shared by ReadCorrupt and WriteCorrupt. It
// transitions a fully decayed fault to DROP@1.0 *before* delegating to the
// corruption kernel, so that the (Count+1)th match already observes DROP
// behavior: a read_corrupt{count=2} corrupts the first two matches and
// drops the third.
func applyCorruptAndDecay(mode *Mode, count *int64, fraction *float64, buf []byte, r *RNG) int {
	if *count == 0 {
		*mode = ModeDrop
		*fraction = 1.0
	}
	n := corrupt(*mode, *fraction, buf, r)
	if *count > 0 {
		*count--
	}
	return n
}
