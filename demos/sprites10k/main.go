// sprites10k scatters 10,000 sprites over a large world and scrolls a camera
// across it. 512 distinct images share a deliberately small cache, so images
// are evicted and refetched as the camera moves. Press O to toggle the
// outline shader and D to defragment the atlas.
package main

import (
	"fmt"
	"image/color"
	"log"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/phanxgames/spritebatch"
	"github.com/tanema/gween/ease"
)

const (
	screenW    = 1280
	screenH    = 720
	worldSize  = 6000
	count      = 10_000
	imageCount = 512
	cacheBytes = 1 << 20
)

// discSource generates anti-aliased discs, one hue per id.
type discSource struct{}

func (discSource) FetchPixels(id uint64) (*spritebatch.Pixels, error) {
	size := 8 + int(id%12)*2
	c := colorful.Hsv(float64(id)*360/imageCount, 0.65, 1)
	pix := make([]byte, 4*size*size)
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-r, float64(y)+0.5-r
			cov := min(max(r-(dx*dx+dy*dy)/r, 0), 1)
			i := 4 * (y*size + x)
			pix[i] = uint8(c.R * cov * 255)
			pix[i+1] = uint8(c.G * cov * 255)
			pix[i+2] = uint8(c.B * cov * 255)
			pix[i+3] = uint8(cov * 255)
		}
	}
	return &spritebatch.Pixels{Width: size, Height: size, Pix: pix}, nil
}

type game struct {
	renderer *spritebatch.EbitenRenderer
	batch    *spritebatch.Batch
	camera   *spritebatch.Camera
	sprites  []spritebatch.Sprite
	spin     []float64
	outline  bool
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyO) {
		g.outline = !g.outline
		if g.outline {
			g.batch.SetShader(spritebatch.ShaderOutline)
		} else {
			g.batch.SetShader(spritebatch.ShaderDefault)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyD) {
		if err := g.batch.Defrag(); err != nil {
			log.Printf("defrag: %v", err)
		}
	}

	if !g.camera.Scrolling() {
		g.camera.ScrollTo(rand.Float64()*worldSize, rand.Float64()*worldSize, 3, ease.InOutQuad)
	}
	g.camera.Update(1.0 / 60)

	for i := range g.sprites {
		g.sprites[i].Transform.Rotation += g.spin[i]
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 15, G: 15, B: 23, A: 255})
	g.renderer.Target = screen
	g.batch.SetViewProjection(g.camera.ViewMatrix())

	visible := g.camera.VisibleBounds()
	pushed := 0
	for i := range g.sprites {
		s := &g.sprites[i]
		// Discs are at most 30px across and scale at most 3x.
		if !visible.Intersects(spritebatch.Rect{X: s.Transform.X - 45, Y: s.Transform.Y - 45, Width: 90, Height: 90}) {
			continue
		}
		if err := g.batch.Push(*s); err == nil {
			pushed++
		}
	}
	if err := g.batch.Flush(); err != nil {
		log.Printf("flush: %v", err)
	}

	st := g.batch.Stats()
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"FPS: %.0f  pushed: %d  draw calls: %d  pages: %d  packed: %d\ncache: %d/%d  hit rate: %.2f  evictions: %d  outline: %v",
		ebiten.ActualFPS(), pushed, st.LastFlush.DrawCalls, st.Pages, st.LastFlush.Packed,
		st.Cache.Bytes, st.Cache.Capacity, st.Cache.HitRate(), st.Cache.Evictions, g.outline))
}

func (g *game) Layout(w, h int) (int, int) {
	return screenW, screenH
}

func main() {
	renderer := spritebatch.NewEbitenRenderer(nil)
	cfg := spritebatch.DefaultConfig()
	cfg.PageWidth, cfg.PageHeight = 512, 512
	cfg.DecayFlushes = 600
	batch, err := spritebatch.New(renderer, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer batch.Dispose()
	if err := batch.EnableSourceCache(discSource{}, imageCount, cacheBytes); err != nil {
		log.Fatal(err)
	}

	cam := spritebatch.NewCamera(spritebatch.Rect{Width: screenW, Height: screenH})
	cam.X, cam.Y = worldSize/2, worldSize/2
	cam.Zoom = 1.5
	cam.SetBounds(spritebatch.Rect{Width: worldSize, Height: worldSize})

	g := &game{renderer: renderer, batch: batch, camera: cam}
	g.sprites = make([]spritebatch.Sprite, count)
	g.spin = make([]float64, count)
	for i := range g.sprites {
		sc := 1 + rand.Float64()*2
		g.sprites[i] = spritebatch.Sprite{
			ID: uint64(rand.IntN(imageCount)),
			Transform: spritebatch.Transform{
				X: rand.Float64() * worldSize,
				Y: rand.Float64() * worldSize,
			},
			ScaleX: sc,
			ScaleY: sc,
		}
		g.spin[i] = (rand.Float64() - 0.5) * 0.05
	}

	ebiten.SetWindowTitle("spritebatch - 10k Sprites")
	ebiten.SetWindowSize(screenW, screenH)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
