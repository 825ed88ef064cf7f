// Package paging groups the images of a tag into one- or two-image pages.
//
// Repage is a pure function of its inputs. It is re-run from scratch every
// time a classifier result lands or an override is toggled, so the final page
// list does not depend on the order in which results arrive.
package paging

import (
	"github.com/local/mangaview/internal/pageside"
)

// DefaultWideRatio marks an image wide when width > ratio * height.
const DefaultWideRatio = 0.8

// Streaks starting after this tag position get one pre-seeded vote for the
// unshifted pairing. The first one or two images of a tag are usually covers.
const seedAfter = 1

// Image is one entry of a tag, in tag order.
type Image struct {
	Index int
	Wide  bool
	// Side is only meaningful when Known is set.
	Side  pageside.Side
	Known bool
}

// Page lists one or two image indices in increasing tag order.
type Page []int

// IsWide reports whether a w×h image is rendered alone.
func IsWide(w, h int, ratio float64) bool {
	if ratio <= 0 {
		ratio = DefaultWideRatio
	}
	return float64(w) > ratio*float64(h)
}

// Repage computes the manga page list for images.
func Repage(images []Image, overrides Overrides) []Page {
	n := len(images)
	if n == 0 {
		return nil
	}

	lone := make([]bool, n)
	for i, img := range images {
		lone[i] = img.Wide
	}

	for i := 0; i < n; {
		if lone[i] {
			i++
			continue
		}
		start := i
		var votes [2]int // [even offset, odd offset]
		flip := false
		if start > seedAfter {
			votes[0]++
		}

		j := start
		for ; j < n && !lone[j]; j++ {
			img := images[j]
			if overrides.Has(img.Index) {
				flip = !flip
			}
			if !img.Known {
				continue
			}
			parity := (j - start) % 2
			if img.Side.Right {
				votes[parity]++
			}
			if img.Side.Left {
				votes[1-parity]++
			}
		}

		// A streak that runs into a wide page prefers its last image to close
		// a pair.
		if j < n {
			last := (j - 1 - start) % 2
			votes[1-last]++
		}

		shiftFirst := votes[1] >= votes[0]
		lone[start] = shiftFirst != flip
		i = j
	}

	pages := make([]Page, 0, n/2+1)
	for i := 0; i < n; i++ {
		if i+1 == n || lone[i] || lone[i+1] {
			pages = append(pages, Page{images[i].Index})
			continue
		}
		pages = append(pages, Page{images[i].Index, images[i+1].Index})
		i++
	}
	return pages
}

// Singles puts every image on its own page.
func Singles(indices []int) []Page {
	if len(indices) == 0 {
		return nil
	}
	pages := make([]Page, len(indices))
	for i, idx := range indices {
		pages[i] = Page{idx}
	}
	return pages
}

// Find returns the position of the page containing image, or -1.
func Find(pages []Page, image int) int {
	for i, p := range pages {
		for _, idx := range p {
			if idx == image {
				return i
			}
		}
	}
	return -1
}

// Equal reports whether two pages hold the same images.
func (p Page) Equal(o Page) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}
