package navigation

import (
	"math/rand"
	"testing"

	"github.com/local/mangaview/internal/paging"
)

func pagesOf(n int) []paging.Page {
	out := make([]paging.Page, n)
	for i := range out {
		out[i] = paging.Page{i}
	}
	return out
}

// fixture: tag 1 has 3 pages, tag 3 has 1, tag 5 has 2. Inserted out of order.
func fixture() *Index {
	x := New()
	x.Set(5, pagesOf(2))
	x.Set(1, pagesOf(3))
	x.Set(3, pagesOf(1))
	return x
}

func TestAdvance(t *testing.T) {
	x := fixture()
	tests := []struct {
		name       string
		from       Cursor
		offset     int
		want       Cursor
		wantBorder bool
	}{
		{name: "within tag", from: Cursor{1, 0}, offset: 1, want: Cursor{1, 1}},
		{name: "zero offset", from: Cursor{3, 0}, offset: 0, want: Cursor{3, 0}},
		{name: "into next tag", from: Cursor{1, 2}, offset: 1, want: Cursor{3, 0}},
		{name: "across a one-page tag", from: Cursor{1, 2}, offset: 2, want: Cursor{5, 0}},
		{name: "past the last tag", from: Cursor{1, 0}, offset: 10, want: Cursor{5, 1}, wantBorder: true},
		{name: "before the first tag", from: Cursor{1, 0}, offset: -1, want: Cursor{1, 0}, wantBorder: true},
		{name: "back into previous tag lands on last page", from: Cursor{3, 0}, offset: -1, want: Cursor{1, 2}},
		{name: "back across tags", from: Cursor{5, 1}, offset: -3, want: Cursor{1, 2}},
		{name: "back to the very start", from: Cursor{5, 1}, offset: -5, want: Cursor{1, 0}},
		{name: "back past the start", from: Cursor{5, 1}, offset: -6, want: Cursor{1, 0}, wantBorder: true},
		{name: "unknown tag", from: Cursor{4, 0}, offset: 1, want: Cursor{4, 0}, wantBorder: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, border := x.Advance(tt.from, tt.offset)
			if got != tt.want || border != tt.wantBorder {
				t.Errorf("Advance(%v, %d) = %v, %v; want %v, %v", tt.from, tt.offset, got, border, tt.want, tt.wantBorder)
			}
		})
	}
}

func TestAdvanceFirstTagBorder(t *testing.T) {
	x := New()
	x.Set(3, pagesOf(4))
	x.Set(7, pagesOf(4))
	got, border := x.Advance(Cursor{Tag: 3, Page: 0}, -1)
	if got != (Cursor{Tag: 3, Page: 0}) || !border {
		t.Errorf("Advance() = %v, %v; want {3 0}, true", got, border)
	}
}

func TestAdvanceRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := New()
	for tag := 0; tag < 6; tag++ {
		x.Set(TagID(tag*2), pagesOf(1+rng.Intn(5)))
	}
	tags := x.Tags()
	for round := 0; round < 500; round++ {
		tag := tags[rng.Intn(len(tags))]
		start := Cursor{Tag: tag, Page: rng.Intn(len(x.Pages(tag)))}
		n := rng.Intn(12)
		mid, border := x.Advance(start, n)
		if border {
			continue
		}
		back, border := x.Advance(mid, -n)
		if border {
			continue
		}
		if back != start {
			t.Fatalf("round trip from %v by %d: got %v via %v", start, n, back, mid)
		}
	}
}

func TestSetRemoveOrder(t *testing.T) {
	x := fixture()
	if got := x.Tags(); len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("Tags() = %v", got)
	}
	x.Set(3, nil)
	if x.Has(3) || x.Len() != 2 {
		t.Fatalf("empty Set should remove the tag, tags = %v", x.Tags())
	}
	x.Remove(42)
	x.Remove(1)
	if first, ok := x.First(); !ok || first.Tag != 5 {
		t.Fatalf("First() = %v, %v", first, ok)
	}
	var zero Index
	zero.Set(2, pagesOf(1))
	if !zero.Has(2) {
		t.Fatalf("zero Index should accept Set")
	}
}

func TestClamp(t *testing.T) {
	x := fixture()
	tests := []struct {
		in, want Cursor
	}{
		{in: Cursor{1, 7}, want: Cursor{1, 2}},
		{in: Cursor{5, -1}, want: Cursor{5, 0}},
		{in: Cursor{2, 4}, want: Cursor{3, 0}},
		{in: Cursor{9, 4}, want: Cursor{5, 0}},
	}
	for _, tt := range tests {
		if got := x.Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := New().Clamp(Cursor{1, 1}); got != (Cursor{}) {
		t.Errorf("Clamp on empty index = %v", got)
	}
}

func TestRelativeAndNeighbor(t *testing.T) {
	x := fixture()
	if tag, off := x.Relative(1, 1); tag != 3 || off != 1 {
		t.Errorf("Relative(1, 1) = %v, %d", tag, off)
	}
	if tag, off := x.Relative(3, 5); tag != 5 || off != 1 {
		t.Errorf("Relative(3, 5) = %v, %d", tag, off)
	}
	if tag, off := x.Relative(1, -2); tag != 1 || off != 0 {
		t.Errorf("Relative(1, -2) = %v, %d", tag, off)
	}
	if tag, ok := x.Neighbor(3); !ok || tag != 5 {
		t.Errorf("Neighbor(3) = %v, %v", tag, ok)
	}
	if tag, ok := x.Neighbor(5); !ok || tag != 3 {
		t.Errorf("Neighbor(5) = %v, %v", tag, ok)
	}
	single := New()
	single.Set(1, pagesOf(1))
	if _, ok := single.Neighbor(1); ok {
		t.Errorf("Neighbor of the only tag should not exist")
	}
}

func TestPage(t *testing.T) {
	x := fixture()
	if p := x.Page(Cursor{1, 2}); len(p) != 1 || p[0] != 2 {
		t.Errorf("Page() = %v", p)
	}
	if p := x.Page(Cursor{1, 3}); p != nil {
		t.Errorf("Page() out of range = %v", p)
	}
}
