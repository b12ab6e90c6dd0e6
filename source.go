package spritebatch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"io/fs"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Pixels is a decoded image in premultiplied RGBA, 4 bytes per pixel, rows
// tightly packed (stride = 4*Width). This is the layout ebiten.Image
// WritePixels expects.
type Pixels struct {
	Width  int
	Height int
	Pix    []byte
}

// ByteSize returns the number of bytes the pixel buffer occupies.
func (p *Pixels) ByteSize() int {
	return len(p.Pix)
}

// PixelSource supplies pixels for an image identifier. FetchPixels is called
// synchronously on a cache miss. Errors that do not already wrap
// ErrSourceUnavailable are wrapped by the cache.
type PixelSource interface {
	FetchPixels(id uint64) (*Pixels, error)
}

// FileSource reads images from a virtual filesystem. The identifier is an
// index into Paths.
type FileSource struct {
	FS    fs.FS
	Paths []string
	// MaxBytes rejects images whose decoded size would exceed it, before
	// decoding. Zero means unlimited.
	MaxBytes int
}

// NewFileSource creates a FileSource. The paths slice is copied.
func NewFileSource(fsys fs.FS, paths []string) *FileSource {
	return &FileSource{FS: fsys, Paths: append([]string(nil), paths...)}
}

// FetchPixels opens the file for id, reads exactly the number of bytes stat
// reports, and decodes it. Any failure wraps ErrSourceUnavailable.
func (s *FileSource) FetchPixels(id uint64) (*Pixels, error) {
	if id >= uint64(len(s.Paths)) {
		return nil, fmt.Errorf("%w: id %d has no path", ErrSourceUnavailable, id)
	}
	path := s.Paths[id]
	data, err := readFile(s.FS, path)
	if err != nil {
		return nil, err
	}
	px, err := DecodePixelsLimit(data, s.MaxBytes)
	if errors.Is(err, ErrEntryTooLarge) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	return px, nil
}

// readFile performs open, stat, read-exactly-size, close.
func readFile(fsys fs.FS, path string) ([]byte, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrSourceUnavailable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, path)
	}
	size := info.Size()
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrSourceUnavailable, path)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrSourceUnavailable, path, err)
	}
	return data, nil
}

// DecodePixels decodes any registered image format (PNG, JPEG, GIF, BMP,
// TIFF, WebP) into premultiplied RGBA.
func DecodePixels(data []byte) (*Pixels, error) {
	return DecodePixelsLimit(data, 0)
}

// DecodePixelsLimit is DecodePixels that reads the image header first and
// returns ErrEntryTooLarge without decoding when the pixels would need more
// than maxBytes. Zero means unlimited.
func DecodePixelsLimit(data []byte, maxBytes int) (*Pixels, error) {
	if maxBytes > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if cfg.Width > 0 && cfg.Height > 0 && cfg.Width > maxBytes/4/cfg.Height {
			return nil, fmt.Errorf("%w: %dx%d image exceeds %d bytes",
				ErrEntryTooLarge, cfg.Width, cfg.Height, maxBytes)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return PixelsFromImage(img), nil
}

// PixelsFromImage converts img to premultiplied RGBA with its top-left corner
// at the origin.
func PixelsFromImage(img image.Image) *Pixels {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*w {
		start := rgba.PixOffset(b.Min.X, b.Min.Y)
		pix := make([]byte, 4*w*h)
		copy(pix, rgba.Pix[start:start+len(pix)])
		return &Pixels{Width: w, Height: h, Pix: pix}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Pixels{Width: w, Height: h, Pix: dst.Pix}
}

// PixelLoader fills pixels for custom-mode batches.
//
// ImageSize declares the dimensions of id so the batch can size the buffer
// (4*w*h bytes). FillPixels must fill all of dst before returning; a non-nil
// error skips the sprite for this flush.
//
// Neither method may call back into the batch that invoked it.
type PixelLoader interface {
	ImageSize(id uint64) (w, h int, ok bool)
	FillPixels(id uint64, dst []byte) error
}

// LoaderFuncs adapts a pair of closures to PixelLoader. Any context the
// loader needs is captured by the closures.
type LoaderFuncs struct {
	Size func(id uint64) (w, h int, ok bool)
	Fill func(id uint64, dst []byte) error
}

func (l LoaderFuncs) ImageSize(id uint64) (int, int, bool) { return l.Size(id) }

func (l LoaderFuncs) FillPixels(id uint64, dst []byte) error { return l.Fill(id, dst) }
