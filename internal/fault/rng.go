package fault

import (
	"math/bits"

	"github.com/valyala/fastrand"
)

// source is the minimal randomness interface the fault model needs:
// independent uniform uint32 draws, from which probability sampling and
// the corruption kernel derive uniform floats and byte-range indices.
type source interface {
	Uint32() uint32
}

// RNG is the per-Fs random source behind probabilistic fault matching and
// the corruption kernel. It wraps valyala/fastrand.RNG for the common
// unseeded case, and falls back to a tiny deterministic generator when the
// operator supplies an explicit random_seed so test runs are reproducible.
type RNG struct {
	src source
}

// NewRNG builds an RNG. seed == nil means "seed from wall-clock time, not
// reproducible"; a non-nil seed makes every subsequent draw deterministic
// for a given seed value.
func NewRNG(seed *int64) *RNG {
	if seed == nil {
		return &RNG{src: &fastrand.RNG{}}
	}
	return &RNG{src: &splitmix{state: uint64(*seed)}}
}

// NewUnseededRNG builds an RNG backed directly by fastrand.RNG, used where
// determinism is never required (e.g. ad hoc sampling in tests of the
// corruption kernel alone).
func NewUnseededRNG() *RNG {
	return &RNG{src: &fastrand.RNG{}}
}

// Float64 returns a uniform sample in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(r.src.Uint32()) / (1 << 32)
}

// Intn returns a uniform sample in [0, n).
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(uint64(r.src.Uint32()) * uint64(n) >> 32)
}

// Byte returns a uniformly random byte, used by the RAND/RAND_SEQ
// corruption modes.
func (r *RNG) Byte() byte {
	return byte(r.src.Uint32())
}

// splitmix is a deterministic, seedable generator (SplitMix64) used only
// when the operator asks for reproducible fault injection via an explicit
// random_seed. It implements source directly so it can stand in for
// fastrand.RNG without the fault package caring which one is live.
type splitmix struct {
	state uint64
}

func (s *splitmix) Uint32() uint32 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return uint32(bits.RotateLeft64(z, 32))
}
