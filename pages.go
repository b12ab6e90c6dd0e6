package spritebatch

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// pixelReader is implemented by page textures that can be read back, such as
// EbitenPage.
type pixelReader interface {
	ReadPixels(pix []byte)
}

// SavePages writes every atlas page to dir as a timestamped PNG, for
// inspecting packing. It returns the written paths. Pages whose texture
// cannot be read back are skipped. With ebiten pages this must be called
// while the game loop is running, typically from Draw.
func (b *Batch) SavePages(dir string) ([]string, error) {
	if err := b.checkUsable(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spritebatch: save pages: %w", err)
	}

	w, h := b.packer.PageSize()
	pixels := make([]byte, 4*w*h)
	stamp := time.Now().Format("20060102_150405")

	var paths []string
	for i := 0; i < b.packer.PageCount(); i++ {
		rd, ok := b.packer.Texture(i).(pixelReader)
		if !ok {
			if b.debug {
				_, _ = fmt.Fprintf(os.Stderr, "[spritebatch] save pages: page %d cannot be read back\n", i)
			}
			continue
		}
		rd.ReadPixels(pixels)
		path := filepath.Join(dir, fmt.Sprintf("%s_page%02d.png", stamp, i))
		if err := writePNG(path, unpremultiply(pixels, w, h)); err != nil {
			return paths, fmt.Errorf("spritebatch: save pages: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// unpremultiply converts premultiplied RGBA to straight-alpha NRGBA.
func unpremultiply(pixels []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(pixels); i += 4 {
		r, g, b, a := pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

// writePNG encodes an image to a PNG file at the given path.
func writePNG(path string, img *image.NRGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
