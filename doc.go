// Package spritebatch draws large numbers of sprites from individual image
// files with one draw call per atlas page, building the atlases on demand.
//
// Images are never packed ahead of time. Each frame the game pushes sprites
// that reference images by ID and calls [Batch.Flush]. The batch fetches
// pixels for images it has not seen, packs them into atlas pages, groups
// sprites by page and submits the draw calls through a [Renderer].
//
// # Quick start
//
// With [Ebitengine], use [EbitenRenderer] and the LRU cache over any [fs.FS]:
//
//	r := spritebatch.NewEbitenRenderer(nil)
//	batch, err := spritebatch.New(r, spritebatch.DefaultConfig())
//	// ...
//	err = batch.EnableLRUCache(os.DirFS("assets"), paths, 250<<20)
//
//	func (g *Game) Draw(screen *ebiten.Image) {
//		r.Target = screen
//		for _, s := range g.sprites {
//			g.batch.Push(s)
//		}
//		if err := g.batch.Flush(); err != nil {
//			// *PartialFailureError: the other sprites were drawn
//		}
//	}
//
// # Pixel sources
//
// A batch gets its pixels from exactly one of:
//
//   - [Batch.EnableLRUCache]: image files read through an [fs.FS] and kept
//     decoded in a byte-bounded [PixelCache]. The sprite ID indexes the path
//     list. [Batch.EnableSourceCache] does the same for any [PixelSource].
//   - [Batch.EnableCustomLoader]: a [PixelLoader] that declares image sizes
//     and fills pixels on request, for procedural or streamed images.
//
// Evicting an image from the cache also frees its atlas region, so the
// pages only hold what the cache holds. Placements not drawn for
// [Config.DecayFlushes] flushes are released too, and [Batch.Defrag]
// repacks the survivors into as few pages as possible.
//
// # Errors
//
// Setup errors match [ErrConfiguration]. A sprite whose pixels cannot be
// fetched or packed is skipped for the frame and reported in a
// [*PartialFailureError]; the rest of the frame is still drawn.
//
// # Drawing
//
// [Batch.SetViewProjection] takes an affine matrix, usually from
// [Camera.ViewMatrix]. [Batch.SetShader] selects the default, outline or
// tint program, and [Batch.SetScissor] clips to a rectangle.
//
// An ECS adapter for [Donburi] lives in spritebatch/ecs.
//
// [Ebitengine]: https://ebitengine.org
// [Donburi]: https://github.com/yohamta/donburi
package spritebatch
