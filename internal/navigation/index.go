// Package navigation keeps the page lists of all tags in key order and moves a
// cursor across page and tag boundaries.
package navigation

import (
	"sort"

	"github.com/local/mangaview/internal/paging"
)

// TagID identifies a tag; tags are visited in increasing TagID order.
type TagID int

// Cursor points at one page of one tag.
type Cursor struct {
	Tag  TagID
	Page int
}

// Index owns the PagingState of every tag. The zero value is empty and ready
// to use.
type Index struct {
	keys  []TagID
	pages map[TagID][]paging.Page
}

// New returns an empty index.
func New() *Index {
	return &Index{pages: map[TagID][]paging.Page{}}
}

func (x *Index) search(tag TagID) (int, bool) {
	i := sort.Search(len(x.keys), func(i int) bool { return x.keys[i] >= tag })
	return i, i < len(x.keys) && x.keys[i] == tag
}

// Set replaces the page list of tag. An empty list removes the tag.
func (x *Index) Set(tag TagID, pages []paging.Page) {
	if len(pages) == 0 {
		x.Remove(tag)
		return
	}
	if x.pages == nil {
		x.pages = map[TagID][]paging.Page{}
	}
	i, ok := x.search(tag)
	if !ok {
		x.keys = append(x.keys, 0)
		copy(x.keys[i+1:], x.keys[i:])
		x.keys[i] = tag
	}
	x.pages[tag] = pages
}

// Remove drops tag; it is a no-op for unknown tags.
func (x *Index) Remove(tag TagID) {
	i, ok := x.search(tag)
	if !ok {
		return
	}
	x.keys = append(x.keys[:i], x.keys[i+1:]...)
	delete(x.pages, tag)
}

// Has reports whether tag is present.
func (x *Index) Has(tag TagID) bool {
	_, ok := x.search(tag)
	return ok
}

// Pages returns the page list of tag, or nil.
func (x *Index) Pages(tag TagID) []paging.Page { return x.pages[tag] }

// Page returns the page under c, or nil when c is out of range.
func (x *Index) Page(c Cursor) paging.Page {
	pages := x.pages[c.Tag]
	if c.Page < 0 || c.Page >= len(pages) {
		return nil
	}
	return pages[c.Page]
}

// Tags lists tags in order. The slice must not be modified.
func (x *Index) Tags() []TagID { return x.keys }

// Len returns the number of tags.
func (x *Index) Len() int { return len(x.keys) }

// First returns the first page of the first tag.
func (x *Index) First() (Cursor, bool) {
	if len(x.keys) == 0 {
		return Cursor{}, false
	}
	return Cursor{Tag: x.keys[0]}, true
}

// Clamp pulls c.Page back into its tag's page range. A cursor on a missing
// tag moves to the nearest following tag (else the last one) at page 0.
func (x *Index) Clamp(c Cursor) Cursor {
	if len(x.keys) == 0 {
		return Cursor{}
	}
	i, ok := x.search(c.Tag)
	if !ok {
		if i >= len(x.keys) {
			i = len(x.keys) - 1
		}
		return Cursor{Tag: x.keys[i]}
	}
	c.Page = clamp(c.Page, 0, len(x.pages[c.Tag])-1)
	return c
}

// Advance moves c by offset pages. Once the current tag cannot absorb the
// remaining offset, one step moves to the adjacent tag, landing on its first
// page going forward or its last page going backward. When the walk runs off
// the first or last tag it stops on the furthest reachable page and reports
// hitBorder. hitBorder does not mean the cursor stayed in place.
//
// An unknown tag is returned unchanged with hitBorder set.
func (x *Index) Advance(c Cursor, offset int) (next Cursor, hitBorder bool) {
	k, ok := x.search(c.Tag)
	if !ok {
		return c, true
	}
	page := c.Page
	for offset != 0 {
		n := len(x.pages[x.keys[k]])
		np := clamp(page+offset, 0, n-1)
		offset -= np - page
		page = np
		if offset == 0 {
			break
		}

		step := 1
		if offset < 0 {
			step = -1
		}
		offset -= step
		if k+step < 0 || k+step >= len(x.keys) {
			return Cursor{Tag: x.keys[k], Page: page}, true
		}
		k += step
		page = 0
		if step < 0 {
			page = len(x.pages[x.keys[k]]) - 1
		}
	}
	return Cursor{Tag: x.keys[k], Page: page}, false
}

// Relative steps offset tags away from tag, clamped to the first and last
// tag. It returns the target and the offset actually applied.
func (x *Index) Relative(tag TagID, offset int) (TagID, int) {
	k, ok := x.search(tag)
	if !ok {
		return tag, 0
	}
	nk := clamp(k+offset, 0, len(x.keys)-1)
	return x.keys[nk], nk - k
}

// Neighbor returns the tag that takes over when tag is removed: the next one,
// else the previous one.
func (x *Index) Neighbor(tag TagID) (TagID, bool) {
	k, ok := x.search(tag)
	if !ok {
		return 0, false
	}
	switch {
	case k+1 < len(x.keys):
		return x.keys[k+1], true
	case k > 0:
		return x.keys[k-1], true
	}
	return 0, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
