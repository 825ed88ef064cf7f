package paging

import "sort"

// Overrides is the set of images whose pairing boundary the user flipped.
// A nil Overrides is an empty set for reads.
type Overrides map[int]struct{}

// Toggle adds image to the set or removes it, and reports whether it is now
// present.
func (o Overrides) Toggle(image int) bool {
	if _, ok := o[image]; ok {
		delete(o, image)
		return false
	}
	o[image] = struct{}{}
	return true
}

// Has reports membership.
func (o Overrides) Has(image int) bool {
	_, ok := o[image]
	return ok
}

// Len returns the number of flipped images.
func (o Overrides) Len() int { return len(o) }

// Clone returns an independent copy.
func (o Overrides) Clone() Overrides {
	c := make(Overrides, len(o))
	for k := range o {
		c[k] = struct{}{}
	}
	return c
}

// Sorted lists the members in increasing order.
func (o Overrides) Sorted() []int {
	out := make([]int, 0, len(o))
	for k := range o {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
