package spritebatch

import (
	"fmt"
	"image"
)

// Placement describes where an image lives on an atlas page.
// Value type, stored directly in the packer's map.
type Placement struct {
	ID   uint64
	Page int // atlas page index, in creation order

	// Pixel rectangle on the page (excluding the padding gutter).
	X, Y, Width, Height int

	// Normalized texture coordinates with a half-texel inset on every edge,
	// so bilinear sampling never reads the gutter or a neighbor.
	U0, V0, U1, V1 float32
}

// Rect returns the placement's pixel rectangle on its page.
func (p Placement) Rect() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
}

// page is one atlas texture and its allocator.
type page struct {
	index   int
	texture PageTexture
	alloc   *shelfAllocator
}

type packed struct {
	placement Placement
	alloc     allocation
}

// Packer assigns atlas space to images and uploads their pixels. Pages are
// created lazily and reused across frames.
//
// Packing is deterministic: the same sequence of Pack/Release calls always
// yields the same placements.
type Packer struct {
	factory  PageFactory
	width    int
	height   int
	padding  int
	maxPages int

	pages  []*page
	placed map[uint64]packed
}

// NewPacker creates a packer whose pages are width x height pixels, created
// through factory.
func NewPacker(factory PageFactory, width, height, padding int) *Packer {
	return &Packer{
		factory: factory,
		width:   width,
		height:  height,
		padding: padding,
		placed:  make(map[uint64]packed),
	}
}

// SetMaxPages limits page creation. Zero means unlimited.
func (p *Packer) SetMaxPages(n int) {
	p.maxPages = n
}

// Pack places a w x h image and writes pix (premultiplied RGBA, 4*w*h bytes)
// into the page texture. If id is already packed its existing placement is
// returned and nothing is written.
func (p *Packer) Pack(id uint64, w, h int, pix []byte) (Placement, error) {
	if pk, ok := p.placed[id]; ok {
		return pk.placement, nil
	}
	if w <= 0 || h <= 0 {
		return Placement{}, fmt.Errorf("%w: image %d has empty size %dx%d", ErrSourceUnavailable, id, w, h)
	}
	if w > p.width || h > p.height {
		return Placement{}, fmt.Errorf("%w: image %d is %dx%d, page is %dx%d",
			ErrImageTooLargeForPage, id, w, h, p.width, p.height)
	}
	if len(pix) != 4*w*h {
		return Placement{}, fmt.Errorf("%w: image %d has %d bytes, want %d",
			ErrSourceUnavailable, id, len(pix), 4*w*h)
	}

	pg, al, ok := p.allocate(w, h)
	if !ok {
		return Placement{}, fmt.Errorf("%w: %d pages in use", ErrAtlasFull, len(p.pages))
	}

	pl := Placement{
		ID:     id,
		Page:   pg.index,
		X:      al.x,
		Y:      al.y,
		Width:  w,
		Height: h,
	}
	pl.U0, pl.V0, pl.U1, pl.V1 = insetUV(al.x, al.y, w, h, p.width, p.height)

	pg.texture.WritePixels(pix, pl.Rect())
	p.placed[id] = packed{placement: pl, alloc: al}
	return pl, nil
}

// allocate scans pages in creation order and takes the first that fits,
// creating a new page when none does.
func (p *Packer) allocate(w, h int) (*page, allocation, bool) {
	for _, pg := range p.pages {
		if al, ok := pg.alloc.allocate(w, h); ok {
			return pg, al, true
		}
	}
	if p.maxPages > 0 && len(p.pages) >= p.maxPages {
		return nil, allocation{}, false
	}
	pg := &page{
		index:   len(p.pages),
		texture: p.factory.NewPage(p.width, p.height),
		alloc:   newShelfAllocator(p.width, p.height, p.padding),
	}
	p.pages = append(p.pages, pg)
	al, ok := pg.alloc.allocate(w, h)
	return pg, al, ok
}

// insetUV normalizes a pixel rectangle with a half-texel inset. The inset
// epsilon is 0.5/pageW horizontally and 0.5/pageH vertically.
func insetUV(x, y, w, h, pageW, pageH int) (u0, v0, u1, v1 float32) {
	fw := float32(pageW)
	fh := float32(pageH)
	u0 = (float32(x) + 0.5) / fw
	v0 = (float32(y) + 0.5) / fh
	u1 = (float32(x+w) - 0.5) / fw
	v1 = (float32(y+h) - 0.5) / fh
	return
}

// Release frees the region held by id. Pixels are left in place until the
// region is reused. Returns false if id was not packed.
func (p *Packer) Release(id uint64) bool {
	pk, ok := p.placed[id]
	if !ok {
		return false
	}
	delete(p.placed, id)
	p.pages[pk.placement.Page].alloc.free(pk.alloc)
	return true
}

// ReleaseAll drops every placement but keeps the page textures.
func (p *Packer) ReleaseAll() {
	clear(p.placed)
	for _, pg := range p.pages {
		pg.alloc.reset()
	}
}

// Lookup returns the placement for id.
func (p *Packer) Lookup(id uint64) (Placement, bool) {
	pk, ok := p.placed[id]
	return pk.placement, ok
}

// Len returns the number of live placements.
func (p *Packer) Len() int {
	return len(p.placed)
}

// PageCount returns the number of pages created.
func (p *Packer) PageCount() int {
	return len(p.pages)
}

// PageSize returns the page dimensions.
func (p *Packer) PageSize() (w, h int) {
	return p.width, p.height
}

// Texture returns the texture of page i.
func (p *Packer) Texture(i int) PageTexture {
	if i < 0 || i >= len(p.pages) {
		return nil
	}
	return p.pages[i].texture
}

// Utilization returns the fraction of total page area covered by live
// placements (0.0 to 1.0).
func (p *Packer) Utilization() float64 {
	if len(p.pages) == 0 {
		return 0
	}
	var sum float64
	for _, pg := range p.pages {
		sum += pg.alloc.utilization()
	}
	return sum / float64(len(p.pages))
}

// trimPages disposes trailing pages that hold no placements.
func (p *Packer) trimPages() int {
	trimmed := 0
	for n := len(p.pages); n > 0 && p.pages[n-1].alloc.empty(); n-- {
		p.pages[n-1].texture.Dispose()
		p.pages[n-1] = nil
		p.pages = p.pages[:n-1]
		trimmed++
	}
	return trimmed
}

// Dispose releases every page texture.
func (p *Packer) Dispose() {
	for _, pg := range p.pages {
		pg.texture.Dispose()
	}
	p.pages = nil
	clear(p.placed)
}
