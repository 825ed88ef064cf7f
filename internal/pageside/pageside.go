// Package pageside estimates which edge of a scanned page is a blank gutter.
//
// A page printed as one half of a spread usually has a flat margin along the
// binding. The classifier samples a narrow strip at each vertical edge and
// reports the edges that look blank; the paging engine uses the result as
// evidence for pairing parity.
package pageside

import (
	"image"
)

// Side is the classifier output for one image.
type Side struct {
	// Right is set when the left strip is blank: the image reads as the
	// right-hand half of a spread.
	Right bool
	// Left is set when the right strip is blank.
	Left bool
}

// Disabled turns off the DarkLevel or LightLevel test when used as its value.
const Disabled = -1.0

// Options tunes the strip sampling. A zero field takes its default; a
// negative DarkLevel or LightLevel disables that tone test.
type Options struct {
	StripWidth        int
	VarianceThreshold float64
	DarkLevel         float64
	LightLevel        float64
}

// DefaultOptions returns thresholds on the 0-255 grey scale.
func DefaultOptions() Options {
	return Options{
		StripWidth:        3,
		VarianceThreshold: 500,
		DarkLevel:         8,
		LightLevel:        247,
	}
}

// Classifier applies Options to decoded images. The zero value is not usable;
// create one with New.
type Classifier struct {
	opts Options
}

// New returns a classifier, filling unset options from DefaultOptions.
func New(opts Options) *Classifier {
	def := DefaultOptions()
	if opts.StripWidth <= 0 {
		opts.StripWidth = def.StripWidth
	}
	if opts.VarianceThreshold <= 0 {
		opts.VarianceThreshold = def.VarianceThreshold
	}
	if opts.DarkLevel == 0 {
		opts.DarkLevel = def.DarkLevel
	}
	if opts.LightLevel == 0 {
		opts.LightLevel = def.LightLevel
	}
	return &Classifier{opts: opts}
}

// Options returns the effective options.
func (c *Classifier) Options() Options { return c.opts }

// Classify inspects both edge strips of img. An empty image gives no signal.
func (c *Classifier) Classify(img image.Image) Side {
	if img == nil {
		return Side{}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Side{}
	}
	w := c.opts.StripWidth
	if w > b.Dx() {
		w = b.Dx()
	}
	left := stripStats(img, b.Min.X, b.Min.X+w, b)
	right := stripStats(img, b.Max.X-w, b.Max.X, b)
	return Side{
		Right: c.blank(left),
		Left:  c.blank(right),
	}
}

func (c *Classifier) blank(s stats) bool {
	if s.variance < c.opts.VarianceThreshold {
		return true
	}
	if c.opts.DarkLevel >= 0 && s.mean <= c.opts.DarkLevel {
		return true
	}
	return c.opts.LightLevel >= 0 && s.mean >= c.opts.LightLevel
}

type stats struct {
	mean     float64
	variance float64
}

// stripStats computes grey mean and sample variance over columns [x0, x1).
func stripStats(img image.Image, x0, x1 int, b image.Rectangle) stats {
	var sum float64
	var n int
	greys := make([]float64, 0, (x1-x0)*b.Dy())
	for x := x0; x < x1; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			g := grey(img, x, y)
			greys = append(greys, g)
			sum += g
			n++
		}
	}
	if n == 0 {
		return stats{}
	}
	mean := sum / float64(n)
	var acc float64
	for _, g := range greys {
		d := g - mean
		acc += d * d
	}
	den := n - 1
	if den < 1 {
		den = 1
	}
	return stats{mean: mean, variance: acc / float64(den)}
}

func grey(img image.Image, x, y int) float64 {
	switch m := img.(type) {
	case *image.RGBA:
		i := m.PixOffset(x, y)
		return float64(int(m.Pix[i])+int(m.Pix[i+1])+int(m.Pix[i+2])) / 3
	case *image.Gray:
		return float64(m.Pix[m.PixOffset(x, y)])
	}
	r, g, bl, _ := img.At(x, y).RGBA()
	return float64((r>>8)+(g>>8)+(bl>>8)) / 3
}
