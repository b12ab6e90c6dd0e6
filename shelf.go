package spritebatch

// shelfAllocator packs rectangles into horizontal shelves on one page and
// supports freeing them again.
//
// Each shelf keeps a sorted list of free horizontal spans. An allocation
// takes the leftmost span wide enough for it plus the padding gutter and
// reserves both. Only a span ending at the page edge may drop the gutter. Freeing returns the reserved span
// and merges it with its neighbors. Shelves are stacked top to bottom with a
// padding gutter between them; trailing shelves that become empty are popped
// so their vertical space can be reused by shelves of any height.
//
// Within a shelf items never overlap because spans are disjoint; across
// shelves they never overlap because an item is never taller than its shelf
// and only the last shelf may grow.
type shelfAllocator struct {
	width   int
	height  int
	padding int
	shelves []shelf

	usedArea int
}

// shelf represents a horizontal strip of the page.
type shelf struct {
	y      int
	height int
	free   []span // sorted by x, non-adjacent
	items  int
}

type span struct {
	x, w int
}

// allocation identifies a reserved region so it can be freed.
type allocation struct {
	shelf    int
	x, y     int
	w, h     int
	reserved int
}

func newShelfAllocator(width, height, padding int) *shelfAllocator {
	return &shelfAllocator{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// allocate finds space for a w x h rectangle. Preference order: the existing
// shelf with the least height waste, a new shelf below the last one, then
// growing the last shelf.
func (a *shelfAllocator) allocate(w, h int) (allocation, bool) {
	if w <= 0 || h <= 0 || w > a.width || h > a.height {
		return allocation{}, false
	}

	best := -1
	bestWaste := 0
	for i := range a.shelves {
		s := &a.shelves[i]
		if h > s.height || s.findSpan(w, a.padding, a.width) < 0 {
			continue
		}
		waste := s.height - h
		if best < 0 || waste < bestWaste {
			best = i
			bestWaste = waste
		}
	}
	if best >= 0 {
		return a.take(best, w, h), true
	}

	newY := a.nextShelfY()
	if newY+h <= a.height {
		a.shelves = append(a.shelves, shelf{
			y:      newY,
			height: h,
			free:   []span{{x: 0, w: a.width}},
		})
		return a.take(len(a.shelves)-1, w, h), true
	}

	if n := len(a.shelves); n > 0 {
		last := &a.shelves[n-1]
		if last.y+h <= a.height && last.findSpan(w, a.padding, a.width) >= 0 {
			last.height = h
			return a.take(n-1, w, h), true
		}
	}
	return allocation{}, false
}

// take reserves w x h in shelf i. The caller has checked it fits.
func (a *shelfAllocator) take(i, w, h int) allocation {
	s := &a.shelves[i]
	j := s.findSpan(w, a.padding, a.width)
	sp := &s.free[j]

	reserved := min(w+a.padding, a.width-sp.x)
	al := allocation{shelf: i, x: sp.x, y: s.y, w: w, h: h, reserved: reserved}

	sp.x += reserved
	sp.w -= reserved
	if sp.w == 0 {
		s.free = append(s.free[:j], s.free[j+1:]...)
	}
	s.items++
	a.usedArea += w * h
	return al
}

// free returns an allocation's span to its shelf.
func (a *shelfAllocator) free(al allocation) {
	if al.shelf >= len(a.shelves) {
		return
	}
	s := &a.shelves[al.shelf]
	s.insertSpan(span{x: al.x, w: al.reserved})
	s.items--
	a.usedArea -= al.w * al.h

	for n := len(a.shelves); n > 0 && a.shelves[n-1].items == 0; n-- {
		a.shelves = a.shelves[:n-1]
	}
}

// findSpan returns the index of the leftmost free span that can hold w
// pixels and the gutter after them, or -1. The gutter is not needed against
// the page edge.
func (s *shelf) findSpan(w, padding, pageWidth int) int {
	for i, sp := range s.free {
		need := w + padding
		if sp.x+sp.w == pageWidth {
			need = w
		}
		if sp.w >= need {
			return i
		}
	}
	return -1
}

// insertSpan adds sp to the free list, merging with adjacent spans.
func (s *shelf) insertSpan(sp span) {
	i := 0
	for i < len(s.free) && s.free[i].x < sp.x {
		i++
	}
	s.free = append(s.free, span{})
	copy(s.free[i+1:], s.free[i:])
	s.free[i] = sp

	if i+1 < len(s.free) && s.free[i].x+s.free[i].w == s.free[i+1].x {
		s.free[i].w += s.free[i+1].w
		s.free = append(s.free[:i+1], s.free[i+2:]...)
	}
	if i > 0 && s.free[i-1].x+s.free[i-1].w == s.free[i].x {
		s.free[i-1].w += s.free[i].w
		s.free = append(s.free[:i], s.free[i+1:]...)
	}
}

func (a *shelfAllocator) nextShelfY() int {
	if len(a.shelves) == 0 {
		return 0
	}
	last := a.shelves[len(a.shelves)-1]
	return last.y + last.height + a.padding
}

// reset clears all allocations, allowing the allocator to be reused.
func (a *shelfAllocator) reset() {
	a.shelves = a.shelves[:0]
	a.usedArea = 0
}

// empty reports whether nothing is allocated.
func (a *shelfAllocator) empty() bool {
	return len(a.shelves) == 0
}

// utilization returns the fraction of page area covered by live items.
func (a *shelfAllocator) utilization() float64 {
	if a.width <= 0 || a.height <= 0 {
		return 0
	}
	return float64(a.usedArea) / float64(a.width*a.height)
}
