// Package imagerender probes, decodes and resizes page images. Plain image
// files go through the standard decoders; page documents (PDF, CBZ, EPUB...)
// and formats the decoders do not know go through MuPDF.
package imagerender

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/local/mangaview/internal/filetype"
	"github.com/local/mangaview/internal/metrics"
	"github.com/local/mangaview/internal/pageside"
	"github.com/local/mangaview/internal/storage"
)

// ErrUnsupported is returned by Expand for files that are neither images nor
// page documents.
var ErrUnsupported = errors.New("unsupported file type")

// baseDPI is the MuPDF resolution at which a document page has its probed
// size.
const baseDPI = 72.0

// Renderer implements the probe/decode contracts the viewer relies on.
type Renderer struct {
	detector   *filetype.Detector
	resolver   *storage.Resolver
	classifier *pageside.Classifier
}

// New creates a renderer. A nil resolver only accepts local paths.
func New(resolver *storage.Resolver, classifier *pageside.Classifier) *Renderer {
	if classifier == nil {
		classifier = pageside.New(pageside.DefaultOptions())
	}
	return &Renderer{detector: filetype.New(), resolver: resolver, classifier: classifier}
}

// PageRef names page n (0-based) of a document.
func PageRef(path string, n int) string { return fmt.Sprintf("%s#%04d", path, n+1) }

// Page is one viewable page. Source is the reference the user added, or its
// page reference for documents; Local is the on-disk path it decodes from.
type Page struct {
	Source string
	Local  string
}

// CompareRefs orders page references by path, then by page number, so that
// book.pdf#10000 follows book.pdf#9999. It does not touch the filesystem.
func CompareRefs(a, b string) int {
	pa, na := cutPage(a)
	pb, nb := cutPage(b)
	if c := strings.Compare(pa, pb); c != 0 {
		return c
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	return 0
}

func cutPage(ref string) (string, int) {
	i := strings.LastIndexByte(ref, '#')
	if i <= 0 || i == len(ref)-1 {
		return ref, -1
	}
	n, err := strconv.Atoi(ref[i+1:])
	if err != nil || n < 1 {
		return ref, -1
	}
	return ref[:i], n - 1
}

// SplitRef separates a document page reference into path and 0-based page.
// Plain paths return page -1. A path that exists on disk is never split.
func SplitRef(ref string) (string, int) {
	path, page := cutPage(ref)
	if page < 0 {
		return ref, -1
	}
	if _, err := os.Stat(ref); err == nil {
		return ref, -1
	}
	return path, page
}

// Expand resolves ref to local storage and lists the pages it contains:
// itself for an image, one per page for a document. Sources stay in terms of
// ref so that remote pages order and persist by their URL.
func (r *Renderer) Expand(ctx context.Context, ref string) ([]Page, error) {
	local := ref
	if r.resolver != nil {
		p, err := r.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref, err)
		}
		local = p
	}

	info, err := r.detector.Detect(local)
	if err != nil {
		return nil, err
	}
	switch info.Kind {
	case filetype.Image:
		return []Page{{Source: ref, Local: local}}, nil
	case filetype.Document:
		n, err := pageCount(local, info.IsPDF)
		if err != nil {
			return nil, err
		}
		pages := make([]Page, n)
		for i := range pages {
			pages[i] = Page{Source: PageRef(ref, i), Local: PageRef(local, i)}
		}
		log.Debug().Str("file", local).Int("pages", n).Msg("expanded document")
		return pages, nil
	}
	return nil, fmt.Errorf("%s (%s): %w", local, info.MIMEType, ErrUnsupported)
}

func pageCount(path string, isPDF bool) (int, error) {
	if isPDF {
		n, err := api.PageCountFile(path)
		if err == nil {
			return n, nil
		}
		log.Debug().Err(err).Str("file", path).Msg("pdfcpu page count failed; trying mupdf")
	}
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Probe returns the pixel size of ref without a full decode. Document pages
// report their size at baseDPI.
func (r *Renderer) Probe(ref string) (int, int, error) {
	path, page := SplitRef(ref)
	if page < 0 {
		f, err := os.Open(path)
		if err != nil {
			return 0, 0, err
		}
		cfg, _, err := image.DecodeConfig(f)
		f.Close()
		if err == nil {
			return cfg.Width, cfg.Height, nil
		}
		page = 0
	}

	doc, err := fitz.New(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to probe %s: %w", ref, err)
	}
	defer doc.Close()
	if page >= doc.NumPage() {
		return 0, 0, fmt.Errorf("page %d out of range (document has %d pages)", page+1, doc.NumPage())
	}
	b, err := doc.Bound(page)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to probe page %d: %w", page+1, err)
	}
	return b.Dx(), b.Dy(), nil
}

// decode returns ref rendered at scale. Plain images are decoded at full
// size and resized; document pages are rasterized at the target resolution.
func decode(ref string, scale float64) (image.Image, error) {
	path, page := SplitRef(ref)
	if page < 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err == nil {
			return img, nil
		}
		page = 0
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer doc.Close()
	img, err := doc.ImageDPI(page, baseDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page+1, err)
	}
	return img, nil
}

// Render decodes ref and resizes it by scale into an RGBA buffer.
func (r *Renderer) Render(ref string, scale float64) (*image.RGBA, error) {
	start := time.Now()
	if scale <= 0 {
		scale = 1
	}
	_, page := SplitRef(ref)
	src, err := decode(ref, scale)
	if err != nil {
		metrics.ObserveDecode(false, time.Since(start))
		return nil, err
	}

	var out *image.RGBA
	if page >= 0 {
		// MuPDF already rendered at the target size.
		out = toRGBA(src)
	} else {
		out = Resize(src, scale)
	}
	metrics.ObserveDecode(true, time.Since(start))
	log.Debug().
		Str("ref", ref).
		Float64("scale", scale).
		Int("width", out.Bounds().Dx()).
		Int("height", out.Bounds().Dy()).
		Dur("took", time.Since(start)).
		Msg("rendered texture")
	return out, nil
}

// Classify decodes ref at full size and runs the page side classifier.
func (r *Renderer) Classify(ref string) (pageside.Side, error) {
	start := time.Now()
	img, err := decode(ref, 1)
	if err != nil {
		metrics.ObserveClassify("error", time.Since(start))
		return pageside.Side{}, err
	}
	side := r.classifier.Classify(img)
	metrics.ObserveClassify(sideLabel(side), time.Since(start))
	return side, nil
}

func sideLabel(s pageside.Side) string {
	switch {
	case s.Right && s.Left:
		return "both"
	case s.Right:
		return "right"
	case s.Left:
		return "left"
	}
	return "none"
}

// Resize scales src by scale with a Catmull-Rom filter. The result is at
// least 1×1 for a non-empty source.
func Resize(src image.Image, scale float64) *image.RGBA {
	b := src.Bounds()
	if b.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w == b.Dx() && h == b.Dy() {
		return toRGBA(src)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func toRGBA(src image.Image) *image.RGBA {
	if m, ok := src.(*image.RGBA); ok && m.Bounds().Min == (image.Point{}) {
		return m
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
