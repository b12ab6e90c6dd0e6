package spritebatch

import (
	"errors"
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

var errNoTarget = errors.New("spritebatch: ebiten renderer has no target image")

// EbitenRenderer draws batches onto an *ebiten.Image, usually the screen
// passed to Game.Draw. Atlas pages are unmanaged ebiten images recycled
// through a pool.
type EbitenRenderer struct {
	// Target receives draw calls. Set it at the start of every Draw.
	Target *ebiten.Image
	// Filter is used by ShaderDefault. The half-texel UV inset makes
	// FilterLinear safe on packed pages.
	Filter ebiten.Filter

	pool  pagePool
	verts []ebiten.Vertex
}

// NewEbitenRenderer creates a renderer drawing onto target.
func NewEbitenRenderer(target *ebiten.Image) *EbitenRenderer {
	return &EbitenRenderer{
		Target: target,
		Filter: ebiten.FilterLinear,
		verts:  make([]ebiten.Vertex, 0, 4*defaultSpriteCap),
	}
}

// NewPage returns a cleared page texture.
func (r *EbitenRenderer) NewPage(width, height int) PageTexture {
	return &EbitenPage{image: r.pool.acquire(width, height), pool: &r.pool}
}

// Submit draws dc onto Target.
func (r *EbitenRenderer) Submit(dc *DrawCall) error {
	if r.Target == nil {
		return errNoTarget
	}
	pg, ok := dc.Texture.(*EbitenPage)
	if !ok || pg.image == nil {
		return fmt.Errorf("spritebatch: page %d is not a live ebiten page", dc.Page)
	}
	if len(dc.Indices) == 0 {
		return nil
	}

	dst := r.Target
	if dc.HasScissor {
		clip := dc.Scissor.Intersect(dst.Bounds())
		if clip.Empty() {
			return nil
		}
		dst = dst.SubImage(clip).(*ebiten.Image)
	}

	b := pg.image.Bounds()
	r.verts = ebitenVertices(r.verts[:0], dc, float32(b.Dx()), float32(b.Dy()))

	switch dc.Shader {
	case ShaderOutline:
		var op ebiten.DrawTrianglesShaderOptions
		op.Images[0] = pg.image
		useBorder := float32(0)
		if dc.OutlineBorder {
			useBorder = 1
		}
		op.Uniforms = map[string]any{
			"OutlineColor": dc.OutlineColor.premultiplied(),
			"UseBorder":    useBorder,
		}
		dst.DrawTrianglesShader32(r.verts, dc.Indices, ensureOutlineShader(), &op)
	case ShaderTint:
		var op ebiten.DrawTrianglesShaderOptions
		op.Images[0] = pg.image
		op.Uniforms = map[string]any{
			"Tint": dc.Tint.premultiplied(),
		}
		dst.DrawTrianglesShader32(r.verts, dc.Indices, ensureTintShader(), &op)
	default:
		var op ebiten.DrawTrianglesOptions
		op.Filter = r.Filter
		op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
		dst.DrawTriangles32(r.verts, dc.Indices, pg.image, &op)
	}
	return nil
}

// ebitenVertices converts batch vertices to ebiten vertices: positions go
// through the draw call's matrix, UVs and bounds become page texels.
func ebitenVertices(dst []ebiten.Vertex, dc *DrawCall, pageW, pageH float32) []ebiten.Vertex {
	m := dc.Matrix
	for i := range dc.Vertices {
		v := &dc.Vertices[i]
		x, y := transformPoint(m, float64(v.X), float64(v.Y))
		dst = append(dst, ebiten.Vertex{
			DstX:    float32(x),
			DstY:    float32(y),
			SrcX:    v.U * pageW,
			SrcY:    v.V * pageH,
			ColorR:  1,
			ColorG:  1,
			ColorB:  1,
			ColorA:  1,
			Custom0: v.Bounds[0] * pageW,
			Custom1: v.Bounds[1] * pageH,
			Custom2: v.Bounds[2] * pageW,
			Custom3: v.Bounds[3] * pageH,
		})
	}
	return dst
}

// EbitenPage is an atlas page backed by an ebiten image.
type EbitenPage struct {
	image *ebiten.Image
	pool  *pagePool
}

// Image returns the page image, or nil once disposed.
func (p *EbitenPage) Image() *ebiten.Image {
	return p.image
}

// WritePixels uploads pix into region of the page.
func (p *EbitenPage) WritePixels(pix []byte, region image.Rectangle) {
	p.image.SubImage(region).(*ebiten.Image).WritePixels(pix)
}

// ReadPixels copies the whole page into pix (4*w*h bytes). Only valid while
// the game loop is running.
func (p *EbitenPage) ReadPixels(pix []byte) {
	p.image.ReadPixels(pix)
}

// Dispose returns the page image to the renderer's pool.
func (p *EbitenPage) Dispose() {
	if p.image == nil {
		return
	}
	p.pool.release(p.image)
	p.image = nil
}

// --- Page pool ---

// pagePool recycles page images keyed by exact dimensions. Pages are all
// the same size for a given batch, so after warmup Defrag and Dispose never
// hit the GPU allocator.
type pagePool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// acquire returns a cleared image of exactly w x h pixels.
func (p *pagePool) acquire(w, h int) *ebiten.Image {
	key := poolKey(w, h)
	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			img.Clear()
			return img
		}
	}
	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, w, h),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// release returns an image to the pool. It is cleared on the next acquire.
func (p *pagePool) release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// pooled returns the number of idle images.
func (p *pagePool) pooled() int {
	n := 0
	for _, stack := range p.buckets {
		n += len(stack)
	}
	return n
}

// Drain deallocates every idle pooled page.
func (r *EbitenRenderer) Drain() {
	for key, stack := range r.pool.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(r.pool.buckets, key)
	}
}
