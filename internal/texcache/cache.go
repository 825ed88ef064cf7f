// Package texcache keeps decoded, resized page images for the pages around
// the cursor. Decoding happens on a worker pool; the render pass polls, falls
// back to a synchronous decode when a texture is needed now, and evicts
// everything it did not use.
package texcache

import (
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/local/mangaview/internal/lazy"
	"github.com/local/mangaview/internal/metrics"
)

// Scale is a render scale quantized to 1/10000 so that it can be used as a
// map key.
type Scale int64

const scaleUnit = 10000

// Quantize converts a float scale.
func Quantize(f float64) Scale { return Scale(math.Round(f * scaleUnit)) }

// Float returns the scale as a factor.
func (s Scale) Float() float64 { return float64(s) / scaleUnit }

// Key identifies one texture.
type Key struct {
	Image int
	Scale Scale
}

// NewKey builds a key from a float scale.
func NewKey(image int, scale float64) Key { return Key{Image: image, Scale: Quantize(scale)} }

// State of an entry.
type State int

const (
	Absent State = iota
	Pending
	Ready
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	}
	return "absent"
}

// Loader decodes and resizes one image. A failed decode returns nil or an
// empty image; the cache stores an empty placeholder either way.
type Loader func(Key) *image.RGBA

type entry struct {
	pending *lazy.Handle[*image.RGBA]
	value   *image.RGBA
}

func (e *entry) state() State {
	if e.pending != nil {
		return Pending
	}
	return Ready
}

// Cache is owned by the render goroutine and is not safe for concurrent use.
type Cache struct {
	pool    *lazy.Pool
	load    Loader
	entries map[Key]*entry
}

// New creates a cache whose background decodes run on pool.
func New(pool *lazy.Pool, load Loader) *Cache {
	return &Cache{pool: pool, load: load, entries: map[Key]*entry{}}
}

// Placeholder is the value stored for images that failed to decode.
func Placeholder() *image.RGBA { return image.NewRGBA(image.Rectangle{}) }

func (c *Cache) decode(k Key) *image.RGBA {
	img := c.load(k)
	if img == nil {
		img = Placeholder()
	}
	return img
}

// Prepare starts a background decode for k unless k is already pending or
// ready.
func (c *Cache) Prepare(k Key) {
	if _, ok := c.entries[k]; ok {
		return
	}
	c.entries[k] = &entry{pending: lazy.Submit(c.pool, func() *image.RGBA { return c.decode(k) })}
	metrics.SetCacheEntries(len(c.entries))
	log.Debug().Int("image", k.Image).Float64("scale", k.Scale.Float()).Msg("texture queued")
}

// Get returns the texture for k. A ready entry is returned as is. A pending
// entry is polled once; if the job has not finished the texture is decoded
// synchronously and stored as ready, and the background result is dropped
// when it lands. An absent key is decoded synchronously.
func (c *Cache) Get(k Key) *image.RGBA {
	e, ok := c.entries[k]
	if ok && e.pending == nil {
		metrics.CacheRequest("ready")
		return e.value
	}
	if ok {
		if v, done := e.pending.TryGet(); done {
			e.pending, e.value = nil, v
			metrics.CacheRequest("promoted")
			return v
		}
		metrics.CacheRequest("fallback")
	} else {
		metrics.CacheRequest("miss")
	}

	v := c.decode(k)
	c.entries[k] = &entry{value: v}
	metrics.SetCacheEntries(len(c.entries))
	return v
}

// Evict removes every entry, pending or ready, whose key is not in used.
func (c *Cache) Evict(used []Key) int {
	keep := make(map[Key]struct{}, len(used))
	for _, k := range used {
		keep[k] = struct{}{}
	}
	removed := 0
	for k := range c.entries {
		if _, ok := keep[k]; !ok {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvicted(removed)
		metrics.SetCacheEntries(len(c.entries))
		log.Debug().Int("evicted", removed).Int("kept", len(c.entries)).Msg("texture cache evicted")
	}
	return removed
}

// State reports the lifecycle state of k.
func (c *Cache) State(k Key) State {
	e, ok := c.entries[k]
	if !ok {
		return Absent
	}
	return e.state()
}

// Len returns the number of entries.
func (c *Cache) Len() int { return len(c.entries) }

// Keys lists the cached keys ordered by image then scale.
func (c *Cache) Keys() []Key {
	out := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Image != out[j].Image {
			return out[i].Image < out[j].Image
		}
		return out[i].Scale < out[j].Scale
	})
	return out
}
