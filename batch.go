package spritebatch

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"slices"
	"time"
)

// sourceMode is the pixel source a batch was configured with.
type sourceMode uint8

const (
	modeNone   sourceMode = iota // no source yet; Push and Flush are rejected
	modeLRU                      // PixelCache over a PixelSource
	modeCustom                   // PixelLoader callbacks
)

const defaultSpriteCap = 1024

// quad is a resolved sprite waiting to be grouped by page.
type quad struct {
	sprite    int // index into Batch.sprites
	placement Placement
}

// Batch buffers sprites for a frame and turns them into one draw call per
// atlas page, building the atlases on demand.
//
// A Batch is not safe for concurrent use. Separate batches may be used from
// separate goroutines as long as each has its own pixel source.
type Batch struct {
	renderer Renderer
	cfg      Config
	packer   *Packer

	mode       sourceMode
	imageCount int
	cache      *PixelCache
	loader     PixelLoader

	// Per-frame buffers, reused across flushes.
	sprites []Sprite
	quads   []quad
	verts   []Vertex
	inds    []uint32
	scratch []byte
	dc      DrawCall

	// Draw settings copied into every draw call.
	shader        ShaderType
	matrix        [6]float64
	scissor       image.Rectangle
	hasScissor    bool
	outlineBorder bool
	tint          Color
	outlineColor  Color

	flushing bool
	inSource bool // inside a PixelSource or PixelLoader call
	disposed bool
	debug    bool

	// frame counts flushes; lastUsed maps every packed id to the frame it
	// was last drawn in.
	frame          uint64
	lastUsed       map[uint64]uint64
	pendingRelease []uint64

	packedThisFlush int
	lastFlush       FlushStats
}

// FlushStats describes the most recent Flush.
type FlushStats struct {
	Sprites   int // sprites pushed
	Drawn     int // sprites submitted
	Failed    int // sprites skipped
	Packed    int // images newly written to an atlas page
	DrawCalls int
	Decayed   int // placements released by decay

	ResolveTime time.Duration
	BuildTime   time.Duration
	SubmitTime  time.Duration
}

// Stats aggregates cache, atlas and flush counters.
type Stats struct {
	Cache       CacheStats // zero in custom mode
	Pages       int
	Placements  int
	Utilization float64
	Flushes     uint64
	LastFlush   FlushStats
}

// New creates a batch that draws through r. A pixel source must be enabled
// with EnableLRUCache, EnableSourceCache or EnableCustomLoader before the
// first Push.
func New(r Renderer, cfg Config) (*Batch, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil renderer", ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	packer := NewPacker(r, cfg.PageWidth, cfg.PageHeight, cfg.Padding)
	packer.SetMaxPages(cfg.MaxPages)
	return &Batch{
		renderer:     r,
		cfg:          cfg,
		packer:       packer,
		sprites:      make([]Sprite, 0, defaultSpriteCap),
		quads:        make([]quad, 0, defaultSpriteCap),
		matrix:       IdentityMatrix,
		tint:         ColorWhite,
		outlineColor: ColorWhite,
		lastUsed:     make(map[uint64]uint64),
		debug:        cfg.Debug,
	}, nil
}

// Dispose releases the atlas pages and cached pixels. Every later call
// returns ErrInvalidState.
func (b *Batch) Dispose() {
	if b.disposed {
		return
	}
	b.packer.Dispose()
	if b.cache != nil {
		b.cache.Clear()
	}
	b.sprites = nil
	b.quads = nil
	b.verts = nil
	b.inds = nil
	b.scratch = nil
	clear(b.lastUsed)
	b.disposed = true
}

// checkUsable rejects calls on a disposed batch or from inside a pixel
// source callback.
func (b *Batch) checkUsable() error {
	switch {
	case b.disposed:
		return fmt.Errorf("%w: batch is disposed", ErrInvalidState)
	case b.inSource:
		return fmt.Errorf("%w: called from inside a pixel source", ErrInvalidState)
	case b.flushing:
		return fmt.Errorf("%w: flush in progress", ErrInvalidState)
	}
	return nil
}

// --- Configuration ---

// EnableLRUCache reads images from fsys on demand. The sprite ID is the
// index into paths. capacity bounds the decoded pixels kept in RAM, in bytes;
// 250 MiB is a reasonable starting point for desktop games.
func (b *Batch) EnableLRUCache(fsys fs.FS, paths []string, capacity int) error {
	if err := b.checkCacheSetup(); err != nil {
		return err
	}
	if fsys == nil {
		return fmt.Errorf("%w: nil filesystem", ErrConfiguration)
	}
	src := NewFileSource(fsys, paths)
	src.MaxBytes = capacity
	return b.EnableSourceCache(src, len(paths), capacity)
}

// EnableSourceCache is EnableLRUCache with a caller-supplied PixelSource
// serving IDs in [0, imageCount).
func (b *Batch) EnableSourceCache(src PixelSource, imageCount, capacity int) error {
	if err := b.checkCacheSetup(); err != nil {
		return err
	}
	if imageCount < 0 {
		return fmt.Errorf("%w: negative image count", ErrConfiguration)
	}
	cache, err := NewPixelCache(capacity, src)
	if err != nil {
		return err
	}
	cache.SetEvictHook(b.onEvict)
	b.cache = cache
	b.imageCount = imageCount
	b.mode = modeLRU
	return nil
}

// checkCacheSetup reports whether LRU mode may be enabled.
func (b *Batch) checkCacheSetup() error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	switch b.mode {
	case modeLRU:
		return ErrAlreadyConfigured
	case modeCustom:
		return ErrInvalidMode
	}
	return nil
}

// EnableCustomLoader hands pixel loading to l. Pixels are requested only
// when an image is not currently packed.
func (b *Batch) EnableCustomLoader(l PixelLoader) error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	switch b.mode {
	case modeCustom:
		return ErrAlreadyConfigured
	case modeLRU:
		return ErrInvalidMode
	}
	if l == nil {
		return fmt.Errorf("%w: nil pixel loader", ErrConfiguration)
	}
	b.loader = l
	b.mode = modeCustom
	return nil
}

// --- Draw settings ---

// SetShader selects the fragment program for subsequent flushes.
func (b *Batch) SetShader(s ShaderType) {
	b.shader = s
}

// SetViewProjection sets the matrix applied to sprite positions.
func (b *Batch) SetViewProjection(m [6]float64) {
	b.matrix = m
}

// SetScissor clips output to r, in target pixels.
func (b *Batch) SetScissor(r image.Rectangle) {
	b.scissor = r.Canon()
	b.hasScissor = true
}

// ClearScissor disables clipping.
func (b *Batch) ClearScissor() {
	b.scissor = image.Rectangle{}
	b.hasScissor = false
}

// SetOutlineBorder makes the outline shader also paint opaque texels on the
// image's own edge, for images that touch their borders.
func (b *Batch) SetOutlineBorder(on bool) {
	b.outlineBorder = on
}

// SetTint sets the color ShaderTint mixes toward. Alpha is the mix amount.
func (b *Batch) SetTint(c Color) {
	b.tint = c
}

// SetOutlineColor sets the color ShaderOutline draws with.
func (b *Batch) SetOutlineColor(c Color) {
	b.outlineColor = c
}

// SetDebug enables per-flush stats and failure warnings on stderr.
func (b *Batch) SetDebug(on bool) {
	b.debug = on
}

// --- Cache control ---

// Prefetch loads id into the LRU cache ahead of the frame that needs it,
// evicting least recently used images to make room.
func (b *Batch) Prefetch(id uint64) error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	if b.mode != modeLRU {
		return fmt.Errorf("%w: prefetch requires the LRU cache", ErrInvalidMode)
	}
	if id >= uint64(b.imageCount) {
		return fmt.Errorf("%w: %d (have %d images)", ErrUnknownImage, id, b.imageCount)
	}
	_, err := b.cacheGet(id)
	return err
}

// ClearCache drops every cached image and invalidates every placement.
// Page textures are kept for reuse.
func (b *Batch) ClearCache() error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	if b.mode != modeLRU {
		return fmt.Errorf("%w: clear requires the LRU cache", ErrInvalidMode)
	}
	b.cache.Clear()
	b.packer.ReleaseAll()
	clear(b.lastUsed)
	return nil
}

// onEvict invalidates the placement of an evicted cache entry. A placement
// already referenced by a quad in the current flush keeps its region until
// the draw calls are submitted.
func (b *Batch) onEvict(id uint64) {
	if _, ok := b.packer.Lookup(id); !ok {
		return
	}
	if b.flushing && b.lastUsed[id] == b.frame {
		b.pendingRelease = append(b.pendingRelease, id)
		return
	}
	b.packer.Release(id)
	delete(b.lastUsed, id)
}

// releasePending frees placements evicted mid-flush unless the image was
// fetched back into the cache later in the same flush.
func (b *Batch) releasePending() {
	for _, id := range b.pendingRelease {
		if b.cache != nil && b.cache.Contains(id) {
			continue
		}
		b.packer.Release(id)
		delete(b.lastUsed, id)
	}
	b.pendingRelease = b.pendingRelease[:0]
}

// --- Frame ---

// Push appends s to the frame buffer. It does no other work.
func (b *Batch) Push(s Sprite) error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	if b.mode == modeNone {
		return fmt.Errorf("%w: no pixel source configured", ErrInvalidState)
	}
	if b.mode == modeLRU && s.ID >= uint64(b.imageCount) {
		return fmt.Errorf("%w: %d (have %d images)", ErrUnknownImage, s.ID, b.imageCount)
	}
	b.sprites = append(b.sprites, s)
	return nil
}

// Pending returns the number of sprites pushed since the last flush.
func (b *Batch) Pending() int {
	return len(b.sprites)
}

// Flush resolves every pushed sprite to an atlas placement, fetching and
// packing pixels as needed, and submits one draw call per page in page
// order. Sprites that fail are skipped; the rest are still drawn and a
// *PartialFailureError lists the failures. The frame buffer is always
// cleared.
func (b *Batch) Flush() error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	if b.mode == modeNone {
		return fmt.Errorf("%w: no pixel source configured", ErrInvalidState)
	}

	b.flushing = true
	b.frame++
	b.packedThisFlush = 0
	stats := FlushStats{Sprites: len(b.sprites)}

	t0 := time.Now()
	var failures []*SpriteError
	b.quads = b.quads[:0]
	for i := range b.sprites {
		s := &b.sprites[i]
		pl, err := b.resolve(s.ID)
		if err != nil {
			failures = append(failures, &SpriteError{ID: s.ID, Err: err})
			continue
		}
		b.lastUsed[s.ID] = b.frame
		b.quads = append(b.quads, quad{sprite: i, placement: pl})
	}
	stats.ResolveTime = time.Since(t0)

	// Stable: sprites keep push order within a page.
	slices.SortStableFunc(b.quads, func(a, c quad) int {
		return cmp.Compare(a.placement.Page, c.placement.Page)
	})

	var submitErrs []error
	for start := 0; start < len(b.quads); {
		t1 := time.Now()
		pg := b.quads[start].placement.Page
		end := b.buildDrawCall(start)
		stats.BuildTime += time.Since(t1)

		t2 := time.Now()
		if err := b.renderer.Submit(&b.dc); err != nil {
			submitErrs = append(submitErrs, fmt.Errorf("spritebatch: submit page %d: %w", pg, err))
		}
		stats.SubmitTime += time.Since(t2)
		stats.DrawCalls++
		start = end
	}

	b.releasePending()
	stats.Decayed = b.decay()
	stats.Drawn = len(b.quads)
	stats.Failed = len(failures)
	stats.Packed = b.packedThisFlush
	b.lastFlush = stats

	b.sprites = b.sprites[:0]
	b.flushing = false
	b.debugLog(stats, failures)

	var err error
	if len(failures) > 0 {
		err = &PartialFailureError{Failures: failures}
	}
	if len(submitErrs) > 0 {
		if err != nil {
			submitErrs = append([]error{err}, submitErrs...)
		}
		err = errors.Join(submitErrs...)
	}
	return err
}

// buildDrawCall fills b.dc with the quads sharing the page of
// b.quads[start] and returns the index of the first quad on the next page.
func (b *Batch) buildDrawCall(start int) int {
	pg := b.quads[start].placement.Page
	b.verts = b.verts[:0]
	b.inds = b.inds[:0]
	end := start
	for end < len(b.quads) && b.quads[end].placement.Page == pg {
		q := &b.quads[end]
		b.verts, b.inds = appendQuad(b.verts, b.inds, &b.sprites[q.sprite], &q.placement)
		end++
	}

	b.dc = DrawCall{
		Page:          pg,
		Texture:       b.packer.Texture(pg),
		Vertices:      b.verts,
		Indices:       b.inds,
		Matrix:        b.matrix,
		Shader:        b.shader,
		Tint:          b.tint,
		OutlineColor:  b.outlineColor,
		OutlineBorder: b.outlineBorder,
		Scissor:       b.scissor,
		HasScissor:    b.hasScissor,
	}
	return end
}

// resolve returns the placement for id, fetching and packing its pixels if
// it is not currently on a page.
func (b *Batch) resolve(id uint64) (Placement, error) {
	switch b.mode {
	case modeLRU:
		// Always go through the cache so the entry is promoted; a live
		// placement implies a resident entry, so this is a hit.
		px, err := b.cacheGet(id)
		if err != nil {
			return Placement{}, err
		}
		if pl, ok := b.packer.Lookup(id); ok {
			return pl, nil
		}
		return b.pack(id, px.Width, px.Height, px.Pix)

	case modeCustom:
		if pl, ok := b.packer.Lookup(id); ok {
			return pl, nil
		}
		w, h, pix, err := b.loadCustom(id)
		if err != nil {
			return Placement{}, err
		}
		return b.pack(id, w, h, pix)
	}
	return Placement{}, fmt.Errorf("%w: no pixel source configured", ErrInvalidState)
}

// pack places pixels, releasing placements not drawn this flush and
// retrying once if the page limit is reached.
func (b *Batch) pack(id uint64, w, h int, pix []byte) (Placement, error) {
	pl, err := b.packer.Pack(id, w, h, pix)
	if errors.Is(err, ErrAtlasFull) && b.releaseStale() > 0 {
		pl, err = b.packer.Pack(id, w, h, pix)
	}
	if err == nil {
		b.packedThisFlush++
	}
	return pl, err
}

// releaseStale releases every placement not drawn in the current frame.
func (b *Batch) releaseStale() int {
	n := 0
	for id, last := range b.lastUsed {
		if last != b.frame {
			b.packer.Release(id)
			delete(b.lastUsed, id)
			n++
		}
	}
	return n
}

// decay releases placements that have not been drawn for DecayFlushes
// flushes.
func (b *Batch) decay() int {
	if b.cfg.DecayFlushes <= 0 {
		return 0
	}
	limit := uint64(b.cfg.DecayFlushes)
	n := 0
	for id, last := range b.lastUsed {
		if b.frame-last >= limit {
			b.packer.Release(id)
			delete(b.lastUsed, id)
			n++
		}
	}
	return n
}

// cacheGet calls into the cache with the reentrancy guard held.
func (b *Batch) cacheGet(id uint64) (*Pixels, error) {
	b.inSource = true
	defer func() { b.inSource = false }()
	return b.cache.Get(id)
}

// loadCustom asks the loader for id's pixels. The returned slice is the
// batch's scratch buffer and is only valid until the next call.
func (b *Batch) loadCustom(id uint64) (w, h int, pix []byte, err error) {
	b.inSource = true
	defer func() { b.inSource = false }()

	w, h, ok := b.loader.ImageSize(id)
	if !ok {
		return 0, 0, nil, fmt.Errorf("%w: loader has no image %d", ErrSourceUnavailable, id)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, nil, fmt.Errorf("%w: image %d has empty size %dx%d", ErrSourceUnavailable, id, w, h)
	}
	if w > b.cfg.PageWidth || h > b.cfg.PageHeight {
		return 0, 0, nil, fmt.Errorf("%w: image %d is %dx%d, page is %dx%d",
			ErrImageTooLargeForPage, id, w, h, b.cfg.PageWidth, b.cfg.PageHeight)
	}

	n := 4 * w * h
	if cap(b.scratch) < n {
		b.scratch = make([]byte, n)
	}
	pix = b.scratch[:n]
	clear(pix)
	if err := b.loader.FillPixels(id, pix); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: image %d: %w", ErrSourceUnavailable, id, err)
	}
	return w, h, pix, nil
}

// Defrag repacks every live placement, tallest first, into as few pages as
// possible and disposes trailing pages left empty. Pixels come from the
// cache (LRU mode) or the loader (custom mode). Images whose pixels cannot be
// obtained lose their placement and are reported in a *PartialFailureError;
// they are repacked by the next flush that draws them.
func (b *Batch) Defrag() error {
	if err := b.checkUsable(); err != nil {
		return err
	}
	if b.mode == modeNone {
		return fmt.Errorf("%w: no pixel source configured", ErrInvalidState)
	}

	live := make([]Placement, 0, b.packer.Len())
	for id := range b.lastUsed {
		if pl, ok := b.packer.Lookup(id); ok {
			live = append(live, pl)
		}
	}
	slices.SortFunc(live, func(a, c Placement) int {
		if n := cmp.Compare(c.Height, a.Height); n != 0 {
			return n
		}
		if n := cmp.Compare(c.Width, a.Width); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, c.ID)
	})

	b.packer.ReleaseAll()
	var failures []*SpriteError
	for _, old := range live {
		var err error
		switch b.mode {
		case modeLRU:
			px, ok := b.cache.Peek(old.ID)
			if !ok {
				err = fmt.Errorf("%w: image %d is no longer cached", ErrSourceUnavailable, old.ID)
				break
			}
			_, err = b.packer.Pack(old.ID, px.Width, px.Height, px.Pix)
		case modeCustom:
			var w, h int
			var pix []byte
			w, h, pix, err = b.loadCustom(old.ID)
			if err == nil {
				_, err = b.packer.Pack(old.ID, w, h, pix)
			}
		}
		if err != nil {
			delete(b.lastUsed, old.ID)
			failures = append(failures, &SpriteError{ID: old.ID, Err: err})
		}
	}
	trimmed := b.packer.trimPages()
	if b.debug {
		log.Printf("spritebatch: defrag repacked %d images, disposed %d pages", len(live)-len(failures), trimmed)
	}
	if len(failures) > 0 {
		return &PartialFailureError{Failures: failures}
	}
	return nil
}

// Stats returns cache, atlas and flush counters.
func (b *Batch) Stats() Stats {
	s := Stats{
		Pages:       b.packer.PageCount(),
		Placements:  b.packer.Len(),
		Utilization: b.packer.Utilization(),
		Flushes:     b.frame,
		LastFlush:   b.lastFlush,
	}
	if b.cache != nil {
		s.Cache = b.cache.Stats()
	}
	return s
}
