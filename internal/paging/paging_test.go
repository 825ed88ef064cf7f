package paging

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/local/mangaview/internal/pageside"
)

func known(right, left bool) pageside.Side { return pageside.Side{Right: right, Left: left} }

// tag builds images with indices 0..n-1.
func tag(wide []bool, sides []*pageside.Side) []Image {
	out := make([]Image, len(wide))
	for i := range wide {
		out[i] = Image{Index: i, Wide: wide[i]}
		if sides != nil && sides[i] != nil {
			out[i].Side = *sides[i]
			out[i].Known = true
		}
	}
	return out
}

func ptr(s pageside.Side) *pageside.Side { return &s }

func TestRepage(t *testing.T) {
	alternating := []*pageside.Side{
		ptr(known(true, false)),
		ptr(known(false, true)),
		ptr(known(true, false)),
		ptr(known(false, true)),
		ptr(known(false, false)),
	}
	tests := []struct {
		name      string
		images    []Image
		overrides Overrides
		want      []Page
	}{
		{
			name:   "empty tag",
			images: nil,
			want:   nil,
		},
		{
			name:   "alternating evidence pairs from the start",
			images: tag(make([]bool, 5), alternating),
			want:   []Page{{0, 1}, {2, 3}, {4}},
		},
		{
			name:      "override flips the boundary",
			images:    tag(make([]bool, 5), alternating),
			overrides: Overrides{2: {}},
			want:      []Page{{0}, {1, 2}, {3, 4}},
		},
		{
			name:   "wide pages stay alone",
			images: tag([]bool{true, false, false, true, false}, nil),
			want:   []Page{{0}, {1, 2}, {3}, {4}},
		},
		{
			name:   "all wide",
			images: tag([]bool{true, true, true}, nil),
			want:   []Page{{0}, {1}, {2}},
		},
		{
			name:   "no evidence keeps the cover alone",
			images: tag(make([]bool, 4), nil),
			want:   []Page{{0}, {1, 2}, {3}},
		},
		{
			name:   "single image",
			images: tag([]bool{false}, nil),
			want:   []Page{{0}},
		},
		{
			name:   "late streak is pre-seeded toward unshifted pairing",
			images: tag([]bool{false, false, true, false, false, false, false}, nil),
			want:   []Page{{0, 1}, {2}, {3, 4}, {5, 6}},
		},
		{
			name:      "override on an image outside the tag is ignored",
			images:    tag(make([]bool, 5), alternating),
			overrides: Overrides{99: {}},
			want:      []Page{{0, 1}, {2, 3}, {4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repage(tt.images, tt.overrides)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Repage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRepageNonConsecutiveIndices(t *testing.T) {
	images := []Image{{Index: 2}, {Index: 4}, {Index: 7, Wide: true}, {Index: 10}}
	got := Repage(images, nil)
	want := []Page{{2, 4}, {7}, {10}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Repage() = %v, want %v", got, want)
	}
}

func randomTag(rng *rand.Rand, n int) ([]Image, []pageside.Side) {
	images := make([]Image, n)
	final := make([]pageside.Side, n)
	for i := range images {
		images[i] = Image{Index: i, Wide: rng.Intn(6) == 0}
		final[i] = known(rng.Intn(2) == 0, rng.Intn(3) == 0)
	}
	return images, final
}

func flatten(pages []Page) []int {
	var out []int
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}

func TestRepageProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		images, final := randomTag(rng, n)
		for i := range images {
			if rng.Intn(2) == 0 {
				images[i].Side, images[i].Known = final[i], true
			}
		}
		overrides := Overrides{}
		for i := 0; i < n; i++ {
			if rng.Intn(8) == 0 {
				overrides.Toggle(i)
			}
		}
		pages := Repage(images, overrides)

		flat := flatten(pages)
		if len(flat) != n {
			t.Fatalf("round %d: partition has %d images, want %d", round, len(flat), n)
		}
		for i, idx := range flat {
			if idx != i {
				t.Fatalf("round %d: partition order %v", round, flat)
			}
		}
		for _, p := range pages {
			if len(p) == 0 || len(p) > 2 {
				t.Fatalf("round %d: page size %d", round, len(p))
			}
			if len(p) == 2 && (images[p[0]].Wide || images[p[1]].Wide) {
				t.Fatalf("round %d: wide image paired in %v", round, p)
			}
		}
	}
}

func TestOverrideIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 100; round++ {
		images, final := randomTag(rng, 1+rng.Intn(20))
		for i := range images {
			images[i].Side, images[i].Known = final[i], true
		}
		overrides := Overrides{}
		before := Repage(images, overrides)
		target := rng.Intn(len(images))
		overrides.Toggle(target)
		overrides.Toggle(target)
		if overrides.Len() != 0 {
			t.Fatalf("override set not empty after double toggle")
		}
		after := Repage(images, overrides)
		if !reflect.DeepEqual(before, after) {
			t.Fatalf("round %d: %v != %v", round, before, after)
		}
	}
}

func TestRepageConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(25)
		base, final := randomTag(rng, n)
		overrides := Overrides{}
		if rng.Intn(2) == 0 {
			overrides.Toggle(rng.Intn(n))
		}

		complete := make([]Image, n)
		copy(complete, base)
		for i := range complete {
			complete[i].Side, complete[i].Known = final[i], true
		}
		want := Repage(complete, overrides)

		for order := 0; order < 5; order++ {
			images := make([]Image, n)
			copy(images, base)
			var last []Page
			for _, i := range rng.Perm(n) {
				images[i].Side, images[i].Known = final[i], true
				last = Repage(images, overrides)
			}
			if !reflect.DeepEqual(last, want) {
				t.Fatalf("round %d order %d: got %v, want %v", round, order, last, want)
			}
		}
	}
}

func TestSinglesAndFind(t *testing.T) {
	pages := Singles([]int{3, 5, 8})
	if want := []Page{{3}, {5}, {8}}; !reflect.DeepEqual(pages, want) {
		t.Fatalf("Singles() = %v, want %v", pages, want)
	}
	if Singles(nil) != nil {
		t.Errorf("Singles(nil) should be nil")
	}
	if got := Find([]Page{{0, 1}, {2}}, 1); got != 0 {
		t.Errorf("Find() = %d, want 0", got)
	}
	if got := Find([]Page{{0, 1}, {2}}, 9); got != -1 {
		t.Errorf("Find() = %d, want -1", got)
	}
}

func TestIsWide(t *testing.T) {
	tests := []struct {
		w, h  int
		ratio float64
		want  bool
	}{
		{w: 800, h: 1000, ratio: 0.8, want: false},
		{w: 801, h: 1000, ratio: 0.8, want: true},
		{w: 2000, h: 1000, ratio: 0, want: true},
		{w: 1000, h: 1000, ratio: 1.2, want: false},
	}
	for _, tt := range tests {
		if got := IsWide(tt.w, tt.h, tt.ratio); got != tt.want {
			t.Errorf("IsWide(%d, %d, %v) = %v, want %v", tt.w, tt.h, tt.ratio, got, tt.want)
		}
	}
}
