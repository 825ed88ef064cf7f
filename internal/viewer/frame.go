package viewer

import (
	"image"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/mangaview/internal/paging"
	"github.com/local/mangaview/internal/texcache"
)

// Placement is one texture the frame would draw.
type Placement struct {
	Image   int
	Path    string
	Scale   float64
	Texture *image.RGBA
}

// Frame runs one render pass without drawing. It picks up finished
// classifier results, fetches the visible textures, schedules the
// neighbouring pages and evicts everything else.
func (a *App) Frame() []Placement {
	a.pollClassifiers()

	if a.index.Len() == 0 {
		if n := a.cache.Evict(nil); n > 0 {
			log.Debug().Int("evicted", n).Msg("no tags left")
		}
		a.pagesChanged = false
		return nil
	}
	a.cursor = a.index.Clamp(a.cursor)

	visible := a.visible()
	used := make([]texcache.Key, 0, len(visible)+4)
	out := make([]Placement, 0, len(visible))
	for _, v := range visible {
		k := texcache.NewKey(v.Image, v.Scale*a.zoom)
		v.Texture = a.cache.Get(k)
		used = append(used, k)
		out = append(out, v)
	}

	drawn := 1
	if a.mode == Vertical {
		drawn = len(visible)
	}
	used = a.preload(-1, used)
	used = a.preload(drawn, used)
	a.cache.Evict(used)

	if a.pagesChanged {
		a.emitCurrent()
		a.pagesChanged = false
	}
	return out
}

// visible lists the images on screen with their fit scales, zoom excluded.
func (a *App) visible() []Placement {
	if a.mode != Vertical {
		page := a.index.Page(a.cursor)
		scales := a.fitScales(page)
		out := make([]Placement, len(page))
		for i, idx := range page {
			out[i] = Placement{Image: idx, Path: a.images[idx].path, Scale: scales[i]}
		}
		return out
	}

	var out []Placement
	c := a.cursor
	offsetY := 0.0
	for {
		idx := a.index.Page(c)[0]
		scale := a.widthFit(idx)
		out = append(out, Placement{Image: idx, Path: a.images[idx].path, Scale: scale})
		offsetY += float64(a.images[idx].h) * scale
		if offsetY >= float64(a.height) {
			break
		}
		next, hit := a.index.Advance(c, 1)
		if hit {
			break
		}
		c = next
	}
	return out
}

func (a *App) preload(offset int, used []texcache.Key) []texcache.Key {
	c, hit := a.index.Advance(a.cursor, offset)
	if hit {
		return used
	}
	page := a.index.Page(c)
	scales := a.fitScales(page)
	for i, idx := range page {
		k := texcache.NewKey(idx, scales[i]*a.zoom)
		a.cache.Prepare(k)
		used = append(used, k)
	}
	return used
}

// fitScales fits page to the viewport height, shrinking the whole page when
// its combined width would overflow. Vertical mode fits the first image to
// the capped viewport width.
func (a *App) fitScales(page paging.Page) []float64 {
	if len(page) == 0 {
		return nil
	}
	if a.mode == Vertical {
		return []float64{a.widthFit(page[0])}
	}

	scales := make([]float64, len(page))
	drawnW := 0.0
	for i, idx := range page {
		e := a.images[idx]
		scales[i] = float64(a.height) / float64(e.h)
		drawnW += float64(e.w) * scales[i]
	}
	if drawnW > float64(a.width) {
		f := float64(a.width) / drawnW
		for i := range scales {
			scales[i] *= f
		}
	}
	return scales
}

func (a *App) widthFit(idx int) float64 {
	return math.Min(maxVerticalFitW, float64(a.width)) / float64(a.images[idx].w)
}

// emitCurrent prints the images of the current page, each followed by a tab.
func (a *App) emitCurrent() {
	var b strings.Builder
	b.WriteString("current_image=")
	for _, p := range a.paths(a.index.Page(a.cursor)) {
		b.WriteString(p)
		b.WriteByte('\t')
	}
	a.emit(b.String())
}

