package spritebatch

import "math"

// IdentityMatrix is the identity affine matrix.
var IdentityMatrix = [6]float64{1, 0, 0, 1, 0, 0}

// spriteTransform computes the affine matrix that maps the unit quad
// centered on the origin to a sprite of w x h pixels. Returns
// [a, b, c, d, tx, ty].
//
// Composition order:
//
//	Scale(w*ScaleX, h*ScaleY) -> Rotate -> Translate(X, Y)
func spriteTransform(s *Sprite, w, h int) [6]float64 {
	sx := float64(w) * s.ScaleX
	sy := float64(h) * s.ScaleY
	sin, cos := math.Sincos(s.Transform.Rotation)
	return [6]float64{
		cos * sx,
		sin * sx,
		-sin * sy,
		cos * sy,
		s.Transform.X,
		s.Transform.Y,
	}
}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular.
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return IdentityMatrix
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// quadCorners are the local positions of a centered unit quad: TL, TR, BL, BR.
var (
	quadCornersX = [4]float64{-0.5, 0.5, -0.5, 0.5}
	quadCornersY = [4]float64{-0.5, -0.5, 0.5, 0.5}
)

// appendQuad appends 4 vertices and 6 indices for one sprite.
func appendQuad(verts []Vertex, inds []uint32, s *Sprite, pl *Placement) ([]Vertex, []uint32) {
	m := spriteTransform(s, pl.Width, pl.Height)
	bounds := [4]float32{pl.U0, pl.V0, pl.U1, pl.V1}
	us := [4]float32{pl.U0, pl.U1, pl.U0, pl.U1}
	vs := [4]float32{pl.V0, pl.V0, pl.V1, pl.V1}

	base := uint32(len(verts))
	for i := 0; i < 4; i++ {
		x, y := transformPoint(m, quadCornersX[i], quadCornersY[i])
		verts = append(verts, Vertex{
			X:      float32(x),
			Y:      float32(y),
			U:      us[i],
			V:      vs[i],
			Bounds: bounds,
		})
	}

	// Two triangles: TL-TR-BL, TR-BR-BL
	inds = append(inds,
		base+0, base+1, base+2,
		base+1, base+3, base+2,
	)
	return verts, inds
}
