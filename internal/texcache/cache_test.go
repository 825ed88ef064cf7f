package texcache

import (
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/local/mangaview/internal/lazy"
)

// fakeLoader returns a 1×1 image whose single red byte counts the decodes
// of that key, so callers can tell a fresh decode from a reused one. When
// armed, the next decode signals started and waits for gate.
type fakeLoader struct {
	mu      sync.Mutex
	calls   map[Key]int
	fail    map[int]bool
	armed   atomic.Bool
	started chan struct{}
	gate    chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		calls:   map[Key]int{},
		fail:    map[int]bool{},
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
}

func (f *fakeLoader) load(k Key) *image.RGBA {
	if f.armed.CompareAndSwap(true, false) {
		close(f.started)
		<-f.gate
	}
	f.mu.Lock()
	f.calls[k]++
	n := f.calls[k]
	fail := f.fail[k.Image]
	f.mu.Unlock()
	if fail {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Pix[0] = uint8(n)
	return img
}

func (f *fakeLoader) count(k Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[k]
}

func TestQuantize(t *testing.T) {
	if Quantize(0.5) != Quantize(0.50000001) {
		t.Errorf("near-equal scales should share a key")
	}
	if Quantize(0.5) == Quantize(0.5002) {
		t.Errorf("distinct scales should not share a key")
	}
	if got := Quantize(1.25).Float(); got != 1.25 {
		t.Errorf("Float() = %v", got)
	}
	if NewKey(3, 1) != (Key{Image: 3, Scale: Quantize(1)}) {
		t.Errorf("NewKey mismatch")
	}
}

func TestPrepareThenGetPromotes(t *testing.T) {
	pool := lazy.NewPool(1)
	defer pool.Close()
	f := newFakeLoader()
	c := New(pool, f.load)

	k := NewKey(1, 1.0)
	c.Prepare(k)
	c.Prepare(k)
	if c.State(k) != Pending || c.Len() != 1 {
		t.Fatalf("State = %v, Len = %d; want one pending entry", c.State(k), c.Len())
	}
	c.entries[k].pending.Get()

	if got := c.Get(k); got.Pix[0] != 1 {
		t.Fatalf("promoted value = %d, want first decode", got.Pix[0])
	}
	if c.State(k) != Ready {
		t.Fatalf("State = %v, want ready", c.State(k))
	}
	if c.Get(k).Pix[0] != 1 || f.count(k) != 1 {
		t.Fatalf("ready entry should be reused; decodes = %d", f.count(k))
	}
}

func TestGetPendingFallsBackToSyncDecode(t *testing.T) {
	pool := lazy.NewPool(1)
	defer pool.Close()
	f := newFakeLoader()
	f.armed.Store(true)
	c := New(pool, f.load)

	k := NewKey(2, 0.5)
	c.Prepare(k)
	<-f.started
	if c.State(k) != Pending {
		t.Fatalf("State = %v, want pending", c.State(k))
	}

	// The background decode is parked on the gate; Get must not wait for it.
	got := c.Get(k)
	if got == nil || got.Bounds().Dx() != 1 || got.Pix[0] != 1 {
		t.Fatalf("fallback returned %v", got)
	}
	if c.State(k) != Ready {
		t.Fatalf("State after fallback = %v, want ready", c.State(k))
	}

	close(f.gate)
	pool.Close()
	if f.count(k) != 2 {
		t.Fatalf("background job should still complete; decodes = %d", f.count(k))
	}
	if c.Get(k) != got {
		t.Fatalf("late background result must not replace the ready value")
	}
}

func TestEvictedPendingIsNotReused(t *testing.T) {
	pool := lazy.NewPool(1)
	defer pool.Close()
	f := newFakeLoader()
	c := New(pool, f.load)

	k := NewKey(7, 1.0)
	c.Prepare(k)
	c.Evict(nil)
	if c.Len() != 0 {
		t.Fatalf("Evict(nil) left %d entries", c.Len())
	}
	pool.Close()
	before := f.count(k)
	got := c.Get(k)
	if f.count(k) != before+1 {
		t.Fatalf("Get after eviction should decode synchronously")
	}
	if int(got.Pix[0]) != before+1 {
		t.Fatalf("Get returned a stale value")
	}
}

func TestEvictKeepsOnlyUsed(t *testing.T) {
	pool := lazy.NewPool(2)
	defer pool.Close()
	f := newFakeLoader()
	c := New(pool, f.load)

	var all []Key
	for i := 0; i < 6; i++ {
		k := NewKey(i, 1)
		all = append(all, k)
		if i%2 == 0 {
			c.Prepare(k)
		} else {
			c.Get(k)
		}
	}
	used := []Key{all[1], all[2], NewKey(99, 1)}
	removed := c.Evict(used)
	if removed != 4 {
		t.Errorf("Evict removed %d, want 4", removed)
	}
	keep := map[Key]bool{}
	for _, k := range used {
		keep[k] = true
	}
	for _, k := range c.Keys() {
		if !keep[k] {
			t.Errorf("key %v survived eviction", k)
		}
	}
	if c.State(NewKey(99, 1)) != Absent {
		t.Errorf("Evict must not create entries")
	}
}

func TestDecodeFailureStoresPlaceholder(t *testing.T) {
	pool := lazy.NewPool(1)
	defer pool.Close()
	f := newFakeLoader()
	f.fail[4] = true
	c := New(pool, f.load)

	got := c.Get(NewKey(4, 1))
	if got == nil || !got.Bounds().Empty() {
		t.Fatalf("failed decode = %v, want empty placeholder", got)
	}
	if c.State(NewKey(4, 1)) != Ready {
		t.Fatalf("failed decode should still be ready")
	}
}

func TestKeysOrder(t *testing.T) {
	pool := lazy.NewPool(1)
	defer pool.Close()
	c := New(pool, newFakeLoader().load)
	c.Get(NewKey(2, 1))
	c.Get(NewKey(1, 2))
	c.Get(NewKey(1, 1))
	keys := c.Keys()
	want := []Key{NewKey(1, 1), NewKey(1, 2), NewKey(2, 1)}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
	if Pending.String() != "pending" || Absent.String() != "absent" {
		t.Errorf("State strings")
	}
}
