package spritebatch

import (
	"fmt"
	"log"
	"os"
)

// debugLog prints flush timings and counters to stderr, and one warning per
// skipped sprite. Only active when debug mode is on.
func (b *Batch) debugLog(stats FlushStats, failures []*SpriteError) {
	if !b.debug {
		return
	}
	total := stats.ResolveTime + stats.BuildTime + stats.SubmitTime
	_, _ = fmt.Fprintf(os.Stderr,
		"[spritebatch] resolve: %v | build: %v | submit: %v | total: %v\n",
		stats.ResolveTime, stats.BuildTime, stats.SubmitTime, total)
	_, _ = fmt.Fprintf(os.Stderr,
		"[spritebatch] sprites: %d | drawn: %d | packed: %d | draw calls: %d | pages: %d\n",
		stats.Sprites, stats.Drawn, stats.Packed, stats.DrawCalls, b.packer.PageCount())
	if b.cache != nil {
		cs := b.cache.Stats()
		_, _ = fmt.Fprintf(os.Stderr,
			"[spritebatch] cache: %d/%d bytes | entries: %d | hit rate: %.2f | evictions: %d\n",
			cs.Bytes, cs.Capacity, cs.Entries, cs.HitRate(), cs.Evictions)
	}
	for _, f := range failures {
		log.Printf("spritebatch: sprite %d skipped: %v", f.ID, f.Err)
	}
}
