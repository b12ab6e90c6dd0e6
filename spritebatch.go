package spritebatch

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs when the color is handed to a shader.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default outline color.
var ColorWhite = Color{1, 1, 1, 1}

// ParseHexColor parses "#rrggbb" or "#rgb" into an opaque Color.
func ParseHexColor(s string) (Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("spritebatch: parse color %q: %w", s, err)
	}
	return Color{R: c.R, G: c.G, B: c.B, A: 1}, nil
}

// Lerp blends c toward other by t in CIE-L*a*b* space, which keeps
// intermediate tints perceptually even. Alpha is interpolated linearly.
func (c Color) Lerp(other Color, t float64) Color {
	a := colorful.Color{R: c.R, G: c.G, B: c.B}
	b := colorful.Color{R: other.R, G: other.G, B: other.B}
	m := a.BlendLab(b, t).Clamped()
	return Color{R: m.R, G: m.G, B: m.B, A: c.A + (other.A-c.A)*t}
}

// premultiplied returns the color as premultiplied float32 components, the
// layout Kage uniforms expect.
func (c Color) premultiplied() []float32 {
	a := float32(c.A)
	return []float32{float32(c.R) * a, float32(c.G) * a, float32(c.B) * a, a}
}

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// ShaderType selects the fragment program used for a batch's draw calls.
type ShaderType uint8

const (
	ShaderDefault ShaderType = iota // plain textured quads
	ShaderOutline                   // 1-pixel outline around opaque texels
	ShaderTint                      // mix texels toward the batch tint color
)

func (s ShaderType) String() string {
	switch s {
	case ShaderDefault:
		return "default"
	case ShaderOutline:
		return "outline"
	case ShaderTint:
		return "tint"
	default:
		return fmt.Sprintf("ShaderType(%d)", uint8(s))
	}
}

// Transform is a sprite's position and rotation (radians, clockwise with Y
// pointing down).
type Transform struct {
	X, Y     float64
	Rotation float64
}

// Sprite is a single image rendered as a quad centered on its transform.
//
// ID is the index into the image paths when the batch uses the LRU cache, or
// an opaque key handed to the PixelLoader in custom mode.
type Sprite struct {
	ID        uint64
	Transform Transform
	ScaleX    float64
	ScaleY    float64
}
