package spritebatch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"slices"
	"testing"
)

const epsilon = 1e-9

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

// --- Fake GPU ---

// fakePage stores written pixels in memory and checks every upload against
// the page bounds.
type fakePage struct {
	w, h     int
	pix      []byte
	writes   []image.Rectangle
	disposed bool
	t        *testing.T
}

func (p *fakePage) WritePixels(pix []byte, region image.Rectangle) {
	if p.disposed {
		p.t.Errorf("WritePixels on disposed page")
		return
	}
	if !region.In(image.Rect(0, 0, p.w, p.h)) {
		p.t.Errorf("WritePixels region %v outside page %dx%d", region, p.w, p.h)
		return
	}
	if len(pix) != 4*region.Dx()*region.Dy() {
		p.t.Errorf("WritePixels got %d bytes for %v", len(pix), region)
		return
	}
	p.writes = append(p.writes, region)
	rw := 4 * region.Dx()
	for y := 0; y < region.Dy(); y++ {
		off := 4 * ((region.Min.Y+y)*p.w + region.Min.X)
		copy(p.pix[off:off+rw], pix[y*rw:(y+1)*rw])
	}
}

func (p *fakePage) ReadPixels(dst []byte) {
	copy(dst, p.pix)
}

func (p *fakePage) Dispose() {
	p.disposed = true
}

// at returns the RGBA bytes of the page pixel at (x, y).
func (p *fakePage) at(x, y int) [4]byte {
	off := 4 * (y*p.w + x)
	return [4]byte(p.pix[off : off+4])
}

// recordedCall is a deep copy of a submitted DrawCall.
type recordedCall struct {
	DrawCall
	ids []uint64 // placement IDs recovered from the quad order
}

type fakeRenderer struct {
	t         *testing.T
	pages     []*fakePage
	calls     []recordedCall
	submitErr error
}

func newFakeRenderer(t *testing.T) *fakeRenderer {
	return &fakeRenderer{t: t}
}

func (r *fakeRenderer) NewPage(w, h int) PageTexture {
	p := &fakePage{w: w, h: h, pix: make([]byte, 4*w*h), t: r.t}
	r.pages = append(r.pages, p)
	return p
}

func (r *fakeRenderer) Submit(dc *DrawCall) error {
	if dc.Texture == nil {
		r.t.Errorf("draw call for page %d has no texture", dc.Page)
	} else if dc.Texture.(*fakePage).disposed {
		r.t.Errorf("draw call for page %d samples a disposed texture", dc.Page)
	}
	cp := *dc
	cp.Vertices = slices.Clone(dc.Vertices)
	cp.Indices = slices.Clone(dc.Indices)
	r.calls = append(r.calls, recordedCall{DrawCall: cp})
	return r.submitErr
}

// quads returns the total quad count across recorded calls.
func (r *fakeRenderer) quads() int {
	n := 0
	for _, c := range r.calls {
		n += c.QuadCount()
	}
	return n
}

func (r *fakeRenderer) reset() {
	r.calls = r.calls[:0]
}

// --- Fake pixel source ---

var errNotFound = errors.New("not found")

// mapSource serves solid-color images and counts fetches per id.
type mapSource struct {
	images  map[uint64]*Pixels
	fetches map[uint64]int
	onFetch func(id uint64)
}

func newMapSource() *mapSource {
	return &mapSource{
		images:  make(map[uint64]*Pixels),
		fetches: make(map[uint64]int),
	}
}

// add registers a w x h image filled with byte value v.
func (s *mapSource) add(id uint64, w, h int, v byte) {
	s.images[id] = solidPixels(w, h, v)
}

func (s *mapSource) FetchPixels(id uint64) (*Pixels, error) {
	s.fetches[id]++
	if s.onFetch != nil {
		s.onFetch(id)
	}
	px, ok := s.images[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d: %w", ErrSourceUnavailable, id, errNotFound)
	}
	// Fresh copy per fetch, like a decoder would produce.
	return &Pixels{Width: px.Width, Height: px.Height, Pix: slices.Clone(px.Pix)}, nil
}

func solidPixels(w, h int, v byte) *Pixels {
	pix := make([]byte, 4*w*h)
	for i := range pix {
		pix[i] = v
	}
	return &Pixels{Width: w, Height: h, Pix: pix}
}

// --- Batch setup ---

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PageWidth = 128
	cfg.PageHeight = 128
	return cfg
}

func newTestBatch(t *testing.T, cfg Config) (*Batch, *fakeRenderer) {
	t.Helper()
	r := newFakeRenderer(t)
	b, err := New(r, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, r
}

// newSourceBatch returns an LRU-mode batch over src serving ids [0, n).
func newSourceBatch(t *testing.T, cfg Config, src PixelSource, n, capacity int) (*Batch, *fakeRenderer) {
	t.Helper()
	b, r := newTestBatch(t, cfg)
	if err := b.EnableSourceCache(src, n, capacity); err != nil {
		t.Fatalf("EnableSourceCache: %v", err)
	}
	return b, r
}

func sprite(id uint64, x, y float64) Sprite {
	return Sprite{ID: id, Transform: Transform{X: x, Y: y}, ScaleX: 1, ScaleY: 1}
}

func mustPush(t *testing.T, b *Batch, sprites ...Sprite) {
	t.Helper()
	for _, s := range sprites {
		if err := b.Push(s); err != nil {
			t.Fatalf("Push(%d): %v", s.ID, err)
		}
	}
}

func mustFlush(t *testing.T, b *Batch) {
	t.Helper()
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// assertNoOverlap fails if any two live placements on the same page overlap
// or sit closer than the padding gutter.
func assertNoOverlap(t *testing.T, p *Packer) {
	t.Helper()
	var all []Placement
	for _, pk := range p.placed {
		all = append(all, pk.placement)
	}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.Page == b.Page && a.Rect().Inset(-p.padding).Overlaps(b.Rect()) {
				t.Fatalf("placements %d %v and %d %v closer than padding %d on page %d",
					a.ID, a.Rect(), b.ID, b.Rect(), p.padding, a.Page)
			}
		}
	}
}

// pngBytes encodes a w x h PNG filled with c.
func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// quadCenter returns the center of quad i in a recorded call.
func quadCenter(c recordedCall, i int) (float32, float32) {
	v0, v3 := c.Vertices[4*i], c.Vertices[4*i+3]
	return (v0.X + v3.X) / 2, (v0.Y + v3.Y) / 2
}
