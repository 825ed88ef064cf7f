package pageside

import (
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// page builds a w×h image whose left and right strips are either a flat
// mid-grey or random noise; the interior is always noise.
func page(w, h int, flatLeft, flatRight bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			if (flatLeft && x < 5) || (flatRight && x >= w-5) {
				v = 128
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestClassify(t *testing.T) {
	c := New(Options{})
	tests := []struct {
		name string
		img  image.Image
		want Side
	}{
		{name: "flat left edge is a right page", img: page(40, 60, true, false), want: Side{Right: true}},
		{name: "flat right edge is a left page", img: page(40, 60, false, true), want: Side{Left: true}},
		{name: "both edges flat", img: page(40, 60, true, true), want: Side{Right: true, Left: true}},
		{name: "noisy edges", img: page(40, 60, false, false), want: Side{}},
		{name: "empty image", img: image.NewRGBA(image.Rect(0, 0, 0, 0)), want: Side{}},
		{name: "nil image", img: nil, want: Side{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.img); got != tt.want {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassifyExtremeTone(t *testing.T) {
	// A white strip with a few dark specks has a high variance but its mean
	// stays close to white.
	img := page(40, 400, false, false)
	for y := 0; y < 400; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	img.Set(0, 10, color.RGBA{0, 0, 0, 255})
	c := New(Options{VarianceThreshold: 1})
	if got := c.Classify(img); !got.Right {
		t.Errorf("Classify() = %+v, want Right for near-white strip", got)
	}
}

func TestClassifyGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 10))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	if got := New(DefaultOptions()).Classify(img); got != (Side{Right: true, Left: true}) {
		t.Errorf("Classify() = %+v, want both sides", got)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	got := New(Options{StripWidth: 7}).Options()
	def := DefaultOptions()
	if got.StripWidth != 7 {
		t.Errorf("StripWidth = %d, want 7", got.StripWidth)
	}
	if got.VarianceThreshold != def.VarianceThreshold || got.LightLevel != def.LightLevel {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestClassifyDisabledToneTest(t *testing.T) {
	// Near-black strip with a little texture: only the dark test marks it.
	img := page(40, 60, false, false)
	for y := 0; y < 60; y++ {
		v := uint8((y % 2) * 4)
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	tests := []struct {
		name string
		opts Options
		want bool
	}{
		{name: "default dark level", opts: Options{VarianceThreshold: 1}, want: true},
		{name: "dark test disabled", opts: Options{VarianceThreshold: 1, DarkLevel: Disabled}, want: false},
		{name: "light test disabled", opts: Options{VarianceThreshold: 1, LightLevel: Disabled}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.opts).Classify(img); got.Right != tt.want {
				t.Errorf("Classify().Right = %v, want %v", got.Right, tt.want)
			}
		})
	}
}

func TestNewKeepsDisabledLevels(t *testing.T) {
	got := New(Options{DarkLevel: Disabled, LightLevel: Disabled}).Options()
	if got.DarkLevel != Disabled || got.LightLevel != Disabled {
		t.Errorf("Options() = %+v, want both tone levels disabled", got)
	}
}
