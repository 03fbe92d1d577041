package iobuf

import "testing"

func TestPoolGetWidth(t *testing.T) {
	width := 10
	p := New(4, func(int) int { return width })

	b := p.Get(width)
	if len(b) != width {
		t.Fatalf("pool buffer length invalid: got %v want %v", len(b), width)
	}
}

func TestPoolPutAcceptsShortSlice(t *testing.T) {
	width := 10
	p := New(4, func(int) int { return width })

	p.Put(make([]byte, width)[:2])
	if p.NumPooled() != 1 {
		t.Fatal("pool should have accepted short slice with sufficient capacity")
	}
}

func TestPoolCapsPooledCount(t *testing.T) {
	size := 4
	width := 10
	p := New(size, func(int) int { return width })

	for i := 0; i < size*2; i++ {
		p.Put(make([]byte, width))
	}

	if p.NumPooled() != size {
		t.Fatalf("pool size invalid: got %v want %v", p.NumPooled(), size)
	}
}

func TestPoolGetGrowsPastCachedCapacity(t *testing.T) {
	p := New(2, func(int) int { return 8 })
	p.Put(make([]byte, 8))

	b := p.Get(64)
	if len(b) != 64 {
		t.Fatalf("Get(64) len = %d, want 64", len(b))
	}
}
