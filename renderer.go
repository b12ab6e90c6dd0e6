package spritebatch

import "image"

// PageTexture is a GPU texture backing one atlas page.
type PageTexture interface {
	// WritePixels uploads premultiplied RGBA pixels into region. len(pix)
	// is 4 * region.Dx() * region.Dy().
	WritePixels(pix []byte, region image.Rectangle)
	// Dispose releases the texture. It is not used afterwards.
	Dispose()
}

// PageFactory creates atlas page textures.
type PageFactory interface {
	NewPage(width, height int) PageTexture
}

// Renderer is the GPU abstraction a Batch draws through.
type Renderer interface {
	PageFactory
	// Submit draws one batch of quads sampled from a single page.
	Submit(dc *DrawCall) error
}

// Vertex is one corner of a sprite quad. Position is in world space; the
// draw call's Matrix maps it to the target.
type Vertex struct {
	X, Y float32
	// U, V are normalized page coordinates.
	U, V float32
	// Bounds is the owning placement's inset UV rectangle (u0, v0, u1, v1).
	// The outline shader uses it to keep neighbor sampling inside the image.
	Bounds [4]float32
}

// DrawCall holds every quad of one flush that samples the same page.
// Vertices and Indices are reused by the batch after Submit returns.
type DrawCall struct {
	Page     int
	Texture  PageTexture
	Vertices []Vertex
	Indices  []uint32
	Matrix   [6]float64

	Shader        ShaderType
	Tint          Color
	OutlineColor  Color
	OutlineBorder bool

	// Scissor clips output to a target-space rectangle when HasScissor is set.
	Scissor    image.Rectangle
	HasScissor bool
}

// QuadCount returns the number of sprites in the draw call.
func (dc *DrawCall) QuadCount() int {
	return len(dc.Vertices) / 4
}
