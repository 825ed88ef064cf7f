// Package viewer is the application core: it owns the image and tag
// registries, the per-tag override sets, the navigation cursor and the
// texture cache, and turns commands into mutations of that state.
//
// An App is driven from a single control goroutine. Decoding and page side
// classification run on the worker pool.
package viewer

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/mangaview/internal/imagerender"
	"github.com/local/mangaview/internal/lazy"
	"github.com/local/mangaview/internal/metrics"
	"github.com/local/mangaview/internal/navigation"
	"github.com/local/mangaview/internal/pageside"
	"github.com/local/mangaview/internal/paging"
	"github.com/local/mangaview/internal/store"
	"github.com/local/mangaview/internal/texcache"
)

// Media is everything the viewer needs from the image layer.
type Media interface {
	// Expand resolves ref and lists the pages it holds.
	Expand(ctx context.Context, ref string) ([]imagerender.Page, error)
	// Probe returns the pixel size of a local page without decoding it.
	Probe(local string) (int, int, error)
	// Render decodes a local page resized by scale.
	Render(local string, scale float64) (*image.RGBA, error)
	// Classify decodes a local page and detects blank spread gutters.
	Classify(local string) (pageside.Side, error)
}

const (
	defaultWidth    = 800
	defaultHeight   = 600
	defaultMaxZoom  = 3
	maxVerticalFitW = 700
)

// Options configures an App.
type Options struct {
	Media Media
	Pool  *lazy.Pool
	// Store persists repage overrides; nil keeps them in memory only.
	Store store.Overrides
	// Emit receives status lines (current_mode=..., current_image=...).
	Emit func(string)

	WideRatio float64
	MaxZoom   float64
	Width     int
	Height    int
}

// imageEntry is identified, ordered and persisted by path, the source
// reference; local is what gets decoded.
type imageEntry struct {
	path  string
	local string
	w, h  int
	wide bool
	side *lazy.Handle[pageside.Side]
}

// App is the viewer state machine.
type App struct {
	media Media
	pool  *lazy.Pool
	store store.Overrides
	emit  func(string)
	cache *texcache.Cache
	index *navigation.Index

	wideRatio float64
	maxZoom   float64
	width     int
	height    int

	images []imageEntry
	byPath map[string]int
	// refs mirrors images[i].local for the decode workers.
	refMu sync.RWMutex
	refs  []string

	tags      map[navigation.TagID][]int
	overrides map[navigation.TagID]paging.Overrides
	persisted map[string]struct{}
	// unsettled tracks tags with classifier results still outstanding and
	// the result count they were last paged with.
	unsettled map[navigation.TagID]int

	mode         Mode
	cursor       navigation.Cursor
	current      int
	zoom         float64
	pagesChanged bool
	quit         bool
}

// New builds an App and loads persisted overrides from opts.Store.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Media == nil {
		return nil, fmt.Errorf("viewer: media is required")
	}
	a := &App{
		media:     opts.Media,
		pool:      opts.Pool,
		store:     opts.Store,
		emit:      opts.Emit,
		index:     navigation.New(),
		wideRatio: opts.WideRatio,
		maxZoom:   opts.MaxZoom,
		width:     opts.Width,
		height:    opts.Height,
		byPath:    map[string]int{},
		tags:      map[navigation.TagID][]int{},
		overrides: map[navigation.TagID]paging.Overrides{},
		persisted: map[string]struct{}{},
		unsettled: map[navigation.TagID]int{},
		mode:      Manga,
		current:   -1,
		zoom:      1,
	}
	if a.pool == nil {
		a.pool = lazy.NewPool(lazy.DefaultWorkers())
	}
	if a.emit == nil {
		a.emit = func(string) {}
	}
	if a.wideRatio <= 0 {
		a.wideRatio = paging.DefaultWideRatio
	}
	if a.maxZoom <= 0 {
		a.maxZoom = defaultMaxZoom
	}
	if a.width <= 0 {
		a.width = defaultWidth
	}
	if a.height <= 0 {
		a.height = defaultHeight
	}
	a.cache = texcache.New(a.pool, a.loadTexture)

	if a.store != nil {
		paths, err := a.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
		for _, p := range paths {
			a.persisted[p] = struct{}{}
		}
		log.Info().Int("overrides", len(paths)).Msg("loaded repage overrides")
	}
	return a, nil
}

func (a *App) loadTexture(k texcache.Key) *image.RGBA {
	a.refMu.RLock()
	var ref string
	if k.Image >= 0 && k.Image < len(a.refs) {
		ref = a.refs[k.Image]
	}
	a.refMu.RUnlock()
	if ref == "" {
		return nil
	}
	img, err := a.media.Render(ref, k.Scale.Float())
	if err != nil {
		log.Warn().Err(err).Str("image", ref).Msg("failed to decode image")
		return nil
	}
	return img
}

// Mode returns the current view mode.
func (a *App) Mode() Mode { return a.mode }

// Cursor returns the current tag and page.
func (a *App) Cursor() navigation.Cursor { return a.cursor }

// Current returns the path of the current image, or "".
func (a *App) Current() string {
	if a.current < 0 || a.index.Len() == 0 {
		return ""
	}
	return a.images[a.current].path
}

// Pages returns the page list of tag as image paths.
func (a *App) Pages(tag navigation.TagID) [][]string {
	pages := a.index.Pages(tag)
	out := make([][]string, len(pages))
	for i, p := range pages {
		out[i] = a.paths(p)
	}
	return out
}

// Tags lists the tags in navigation order.
func (a *App) Tags() []navigation.TagID {
	return append([]navigation.TagID(nil), a.index.Tags()...)
}

// Zoom returns the zoom factor.
func (a *App) Zoom() float64 { return a.zoom }

// Quit reports whether quit() was received.
func (a *App) Quit() bool { return a.quit }

// Cache exposes the texture cache for inspection.
func (a *App) Cache() *texcache.Cache { return a.cache }

// Resize changes the viewport used for fit scales.
func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 || (w == a.width && h == a.height) {
		return
	}
	a.width, a.height = w, h
	a.pagesChanged = true
}

// Title is the window title for the current position.
func (a *App) Title() string {
	if a.index.Len() == 0 || a.current < 0 {
		return "no images loaded"
	}
	indices := a.tags[a.cursor.Tag]
	rel := 0
	for i, idx := range indices {
		if idx == a.current {
			rel = i
			break
		}
	}
	return fmt.Sprintf("%d - %s [%d/%d]", a.cursor.Tag, filepath.Base(a.images[a.current].path), rel+1, len(indices))
}

func (a *App) paths(p paging.Page) []string {
	out := make([]string, len(p))
	for i, idx := range p {
		out[i] = a.images[idx].path
	}
	return out
}

// addImage registers pg in tag and returns whether the tag changed.
func (a *App) addImage(tag navigation.TagID, pg imagerender.Page) bool {
	ref, local := pg.Source, pg.Local
	if local == "" {
		local = ref
	}
	idx, ok := a.byPath[ref]
	if !ok {
		w, h, err := a.media.Probe(local)
		if err != nil {
			log.Warn().Err(err).Str("image", ref).Msg("error loading image")
			metrics.IncSkipped("probe")
			return false
		}
		if w <= 0 || h <= 0 {
			log.Warn().Str("image", ref).Int("width", w).Int("height", h).Msg("image has no pixels")
			metrics.IncSkipped("empty")
			return false
		}
		idx = len(a.images)
		media := a.media
		side := lazy.Submit(a.pool, func() pageside.Side {
			s, err := media.Classify(local)
			if err != nil {
				log.Warn().Err(err).Str("image", ref).Msg("page side classification failed")
				return pageside.Side{}
			}
			return s
		})
		a.images = append(a.images, imageEntry{
			path:  ref,
			local: local,
			w:     w,
			h:     h,
			wide:  paging.IsWide(w, h, a.wideRatio),
			side:  side,
		})
		a.refMu.Lock()
		a.refs = append(a.refs, local)
		a.refMu.Unlock()
		a.byPath[ref] = idx
	}

	if a.current < 0 {
		a.cursor = navigation.Cursor{Tag: tag}
		a.current = idx
		a.pagesChanged = true
	}

	indices := a.tags[tag]
	pos := sort.Search(len(indices), func(i int) bool {
		return imagerender.CompareRefs(a.images[indices[i]].path, ref) >= 0
	})
	if pos < len(indices) && indices[pos] == idx {
		return false
	}
	indices = append(indices, 0)
	copy(indices[pos+1:], indices[pos:])
	indices[pos] = idx
	a.tags[tag] = indices

	if _, ok := a.persisted[ref]; ok {
		o := a.tagOverrides(tag)
		if !o.Has(idx) {
			o.Toggle(idx)
		}
	}
	if _, ok := a.unsettled[tag]; !ok {
		a.unsettled[tag] = -1
	}
	log.Debug().Int("tag", int(tag)).Str("image", ref).Int("index", idx).Msg("added image")
	return true
}

func (a *App) tagOverrides(tag navigation.TagID) paging.Overrides {
	o, ok := a.overrides[tag]
	if !ok {
		o = paging.Overrides{}
		a.overrides[tag] = o
	}
	return o
}

// repage recomputes the pages of tag for the current mode.
func (a *App) repage(tag navigation.TagID) {
	indices, ok := a.tags[tag]
	if !ok || len(indices) == 0 {
		return
	}
	var old paging.Page
	if tag == a.cursor.Tag {
		old = a.index.Page(a.cursor)
	}

	var pages []paging.Page
	if a.mode == Manga {
		imgs := make([]paging.Image, len(indices))
		for i, idx := range indices {
			e := a.images[idx]
			side, known := e.side.TryGet()
			imgs[i] = paging.Image{Index: idx, Wide: e.wide, Side: side, Known: known}
		}
		pages = paging.Repage(imgs, a.overrides[tag])
	} else {
		pages = paging.Singles(indices)
	}
	a.index.Set(tag, pages)
	metrics.IncRepage(a.mode.String())

	if tag != a.cursor.Tag {
		return
	}
	if p := paging.Find(pages, a.current); p >= 0 {
		a.cursor.Page = p
	} else {
		a.cursor = a.index.Clamp(a.cursor)
		a.current = a.index.Page(a.cursor)[0]
	}
	if !old.Equal(a.index.Page(a.cursor)) {
		a.resetView()
	}
}

// pollClassifiers repages every tag whose count of finished classifier jobs
// moved since its last paging.
func (a *App) pollClassifiers() {
	for tag, prev := range a.unsettled {
		indices, ok := a.tags[tag]
		if !ok {
			delete(a.unsettled, tag)
			continue
		}
		done := 0
		for _, idx := range indices {
			if a.images[idx].side.Poll() {
				done++
			}
		}
		if done == prev {
			continue
		}
		a.repage(tag)
		if done == len(indices) {
			delete(a.unsettled, tag)
		} else {
			a.unsettled[tag] = done
		}
	}
}

// SettlePaging waits for every outstanding classification and repages the
// affected tags.
func (a *App) SettlePaging() {
	for tag := range a.unsettled {
		for _, idx := range a.tags[tag] {
			a.images[idx].side.Get()
		}
		a.repage(tag)
		delete(a.unsettled, tag)
	}
}

// moveTo puts the cursor on c and resets the view.
func (a *App) moveTo(c navigation.Cursor) {
	page := a.index.Page(c)
	if len(page) == 0 {
		return
	}
	a.cursor = c
	a.current = page[0]
	a.resetView()
}

func (a *App) resetView() {
	a.zoom = 1
	a.pagesChanged = true
}
