package spritebatch

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Kage shader sources ---
// All shaders use //kage:unit pixels. Ebitengine uses premultiplied alpha.
// The custom vertex attribute carries the sprite's texel rectangle on the
// page (x0, y0, x1, y1) so neighbor lookups never leave the sprite.

const outlineShaderSrc = `//kage:unit pixels
package main

var OutlineColor vec4
var UseBorder float

func alphaAt(p vec2, bounds vec4) float {
	if p.x < bounds.x || p.y < bounds.y || p.x > bounds.z || p.y > bounds.w {
		return 0
	}
	return imageSrc0At(p).a
}

func Fragment(dst vec4, src vec2, color vec4, custom vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		// Opaque texels on the image's own edge become outline when the
		// border option is on.
		if UseBorder > 0 &&
			(src.x-1 < custom.x || src.y-1 < custom.y ||
				src.x+1 > custom.z || src.y+1 > custom.w) {
			return OutlineColor
		}
		return c
	}
	if alphaAt(src+vec2(1, 0), custom) > 0 ||
		alphaAt(src+vec2(-1, 0), custom) > 0 ||
		alphaAt(src+vec2(0, 1), custom) > 0 ||
		alphaAt(src+vec2(0, -1), custom) > 0 {
		return OutlineColor
	}
	return vec4(0)
}
`

const tintShaderSrc = `//kage:unit pixels
package main

var Tint vec4

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	// Tint is premultiplied; scale it by the texel alpha so the mix stays
	// premultiplied too.
	t := Tint.rgb / max(Tint.a, 0.0001) * c.a
	return vec4(mix(c.rgb, t, Tint.a), c.a) * color
}
`

// --- Lazy shader compilation ---

// compileShader is replaced in tests.
var compileShader = ebiten.NewShader

// lazyShader compiles its source on first use. Batches on different
// goroutines may share it.
type lazyShader struct {
	name   string
	src    string
	once   sync.Once
	shader *ebiten.Shader
}

func (l *lazyShader) get() *ebiten.Shader {
	l.once.Do(func() {
		s, err := compileShader([]byte(l.src))
		if err != nil {
			panic("spritebatch: failed to compile " + l.name + " shader: " + err.Error())
		}
		l.shader = s
	})
	return l.shader
}

var (
	outlineShader = &lazyShader{name: "outline", src: outlineShaderSrc}
	tintShader    = &lazyShader{name: "tint", src: tintShaderSrc}
)

func ensureOutlineShader() *ebiten.Shader { return outlineShader.get() }

func ensureTintShader() *ebiten.Shader { return tintShader.get() }
