package spritebatch

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

// entryBytes is the size of a w x h image.
func entryBytes(w, h int) int { return 4 * w * h }

// checkInvariant verifies Size equals the sum of resident entries and never
// exceeds capacity.
func checkInvariant(t *testing.T, c *PixelCache) {
	t.Helper()
	sum := 0
	for _, e := range c.entries {
		sum += e.size
	}
	if sum != c.Size() {
		t.Fatalf("Size() = %d, sum of entries = %d", c.Size(), sum)
	}
	if c.Size() > c.Capacity() {
		t.Fatalf("Size() = %d exceeds capacity %d", c.Size(), c.Capacity())
	}
	if c.order.len != len(c.entries) {
		t.Fatalf("list len %d != map len %d", c.order.len, len(c.entries))
	}
}

func TestNewPixelCache_Invalid(t *testing.T) {
	src := newMapSource()
	tests := []struct {
		name     string
		capacity int
		src      PixelSource
		want     error
	}{
		{"zero capacity", 0, src, ErrInvalidCapacity},
		{"negative capacity", -5, src, ErrInvalidCapacity},
		{"nil source", 100, nil, ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewPixelCache(tt.capacity, tt.src)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if c != nil {
				t.Error("expected nil cache")
			}
		})
	}
	if !errors.Is(ErrInvalidCapacity, ErrConfiguration) {
		t.Error("ErrInvalidCapacity should match ErrConfiguration")
	}
}

func TestPixelCache_GetIsIdempotent(t *testing.T) {
	src := newMapSource()
	src.add(7, 4, 4, 0xAA)
	c, _ := NewPixelCache(1024, src)

	first, err := c.Get(7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get(7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("second Get should return the resident view")
	}
	if src.fetches[7] != 1 {
		t.Errorf("fetches = %d, want 1", src.fetches[7])
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1 and 1", st.Hits, st.Misses)
	}
	if st.HitRate() != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", st.HitRate())
	}
	checkInvariant(t, c)
}

func TestPixelCache_EvictsLeastRecentlyUsed(t *testing.T) {
	src := newMapSource()
	for id := uint64(0); id < 4; id++ {
		src.add(id, 4, 4, byte(id))
	}
	// Room for exactly three 4x4 images.
	c, _ := NewPixelCache(3*entryBytes(4, 4), src)
	var evicted []uint64
	c.SetEvictHook(func(id uint64) { evicted = append(evicted, id) })

	for _, id := range []uint64{0, 1, 2} {
		if _, err := c.Get(id); err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
	}
	// Promote 0 so 1 is the oldest.
	if _, err := c.Get(0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(3); err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(evicted, []uint64{1}) {
		t.Errorf("evicted = %v, want [1]", evicted)
	}
	if got := c.residentIDs(); !slices.Equal(got, []uint64{3, 0, 2}) {
		t.Errorf("resident = %v, want [3 0 2]", got)
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
	checkInvariant(t, c)
}

func TestPixelCache_EvictsSeveralForLargeEntry(t *testing.T) {
	src := newMapSource()
	src.add(0, 2, 2, 1)
	src.add(1, 2, 2, 1)
	src.add(2, 2, 2, 1)
	src.add(9, 4, 2, 1) // two small entries' worth
	c, _ := NewPixelCache(3*entryBytes(2, 2), src)

	for _, id := range []uint64{0, 1, 2, 9} {
		if _, err := c.Get(id); err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		checkInvariant(t, c)
	}
	if c.Contains(0) || c.Contains(1) {
		t.Error("0 and 1 should be evicted")
	}
	if !c.Contains(2) || !c.Contains(9) {
		t.Error("2 and 9 should be resident")
	}
}

func TestPixelCache_CapacityBoundaryRefetch(t *testing.T) {
	src := newMapSource()
	src.add(0, 4, 4, 1)
	src.add(1, 4, 4, 2)
	// Exactly one entry fits.
	c, _ := NewPixelCache(entryBytes(4, 4), src)

	for _, id := range []uint64{0, 1, 0} {
		if _, err := c.Get(id); err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		checkInvariant(t, c)
	}
	if src.fetches[0] != 2 {
		t.Errorf("fetches[0] = %d, want 2", src.fetches[0])
	}
	if c.Len() != 1 || !c.Contains(0) {
		t.Errorf("resident = %v, want [0]", c.residentIDs())
	}
	if c.Size() != c.Capacity() {
		t.Errorf("Size = %d, want %d", c.Size(), c.Capacity())
	}
}

func TestPixelCache_EntryTooLarge(t *testing.T) {
	src := newMapSource()
	src.add(0, 2, 2, 1)
	src.add(1, 16, 16, 1)
	c, _ := NewPixelCache(entryBytes(8, 8), src)
	evictions := 0
	c.SetEvictHook(func(uint64) { evictions++ })

	if _, err := c.Get(0); err != nil {
		t.Fatal(err)
	}
	_, err := c.Get(1)
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("err = %v, want ErrEntryTooLarge", err)
	}
	// Nothing was evicted to make room for an entry that can never fit.
	if evictions != 0 || !c.Contains(0) || c.Contains(1) {
		t.Errorf("cache changed: evictions=%d resident=%v", evictions, c.residentIDs())
	}
	checkInvariant(t, c)
}

func TestPixelCache_EntryTooLargeOnEmptyCache(t *testing.T) {
	src := newMapSource()
	src.add(1, 16, 16, 1)
	c, _ := NewPixelCache(entryBytes(8, 8), src)

	if _, err := c.Get(1); !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("err = %v, want ErrEntryTooLarge", err)
	}
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("cache should stay empty, got %d entries, %d bytes", c.Len(), c.Size())
	}
}

func TestPixelCache_FetchFailureLeavesCacheUnchanged(t *testing.T) {
	src := newMapSource()
	src.add(0, 4, 4, 1)
	c, _ := NewPixelCache(entryBytes(4, 4), src)
	if _, err := c.Get(0); err != nil {
		t.Fatal(err)
	}

	_, err := c.Get(5)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if !errors.Is(err, errNotFound) {
		t.Errorf("err = %v, should wrap the source error", err)
	}
	if !c.Contains(0) || c.Len() != 1 {
		t.Errorf("resident = %v, want [0]", c.residentIDs())
	}
	if c.Stats().Evictions != 0 {
		t.Error("failed fetch must not evict")
	}
}

type failingSource struct{ err error }

func (s failingSource) FetchPixels(uint64) (*Pixels, error) { return nil, s.err }

func TestPixelCache_WrapsPlainSourceErrors(t *testing.T) {
	diskGone := errors.New("disk gone")
	c, err := NewPixelCache(1024, failingSource{err: diskGone})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Get(1)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
	if !errors.Is(err, diskGone) {
		t.Errorf("err = %v, should wrap the source error", err)
	}
	if err := c.Prefetch(1); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("Prefetch err = %v, want ErrSourceUnavailable", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestPixelCache_SourceTooLargeIsNotWrapped(t *testing.T) {
	c, _ := NewPixelCache(1024, failingSource{err: fmt.Errorf("%w: 64x64", ErrEntryTooLarge)})
	_, err := c.Get(0)
	if !errors.Is(err, ErrEntryTooLarge) || errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want only ErrEntryTooLarge", err)
	}
}

type badSource struct{ px *Pixels }

func (s badSource) FetchPixels(uint64) (*Pixels, error) { return s.px, nil }

func TestPixelCache_MalformedBuffer(t *testing.T) {
	tests := []struct {
		name string
		px   *Pixels
	}{
		{"nil", nil},
		{"short", &Pixels{Width: 2, Height: 2, Pix: make([]byte, 15)}},
		{"zero width", &Pixels{Width: 0, Height: 2, Pix: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := NewPixelCache(1024, badSource{tt.px})
			if _, err := c.Get(0); !errors.Is(err, ErrSourceUnavailable) {
				t.Errorf("err = %v, want ErrSourceUnavailable", err)
			}
			if c.Len() != 0 {
				t.Error("malformed buffer should not be cached")
			}
		})
	}
}

func TestPixelCache_PeekDoesNotPromote(t *testing.T) {
	src := newMapSource()
	src.add(0, 2, 2, 1)
	src.add(1, 2, 2, 1)
	src.add(2, 2, 2, 1)
	c, _ := NewPixelCache(2*entryBytes(2, 2), src)
	_, _ = c.Get(0)
	_, _ = c.Get(1)

	if _, ok := c.Peek(0); !ok {
		t.Fatal("Peek(0) should hit")
	}
	if _, ok := c.Peek(2); ok {
		t.Fatal("Peek must not fetch")
	}
	_, _ = c.Get(2)
	if c.Contains(0) {
		t.Error("0 was peeked, not used, and should have been evicted")
	}
	if src.fetches[2] != 1 {
		t.Errorf("fetches[2] = %d, want 1", src.fetches[2])
	}
}

func TestPixelCache_ClearSkipsHook(t *testing.T) {
	src := newMapSource()
	src.add(0, 2, 2, 1)
	c, _ := NewPixelCache(1024, src)
	called := false
	c.SetEvictHook(func(uint64) { called = true })
	_ = c.Prefetch(0)

	c.Clear()
	if called {
		t.Error("Clear must not call the evict hook")
	}
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("after Clear: %d entries, %d bytes", c.Len(), c.Size())
	}
	if c.Stats().PeakBytes != entryBytes(2, 2) {
		t.Errorf("PeakBytes = %d, want %d", c.Stats().PeakBytes, entryBytes(2, 2))
	}
	checkInvariant(t, c)
}

func TestPixelCache_InvariantUnderChurn(t *testing.T) {
	src := newMapSource()
	for id := uint64(0); id < 32; id++ {
		src.add(id, 1+int(id%5), 1+int(id%3), 1)
	}
	c, _ := NewPixelCache(200, src)
	for i := 0; i < 500; i++ {
		id := uint64((i * 7) % 32)
		if _, err := c.Get(id); err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		checkInvariant(t, c)
		if c.residentIDs()[0] != id {
			t.Fatalf("most recent = %d, want %d", c.residentIDs()[0], id)
		}
	}
}

// residentIDs returns ids from most to least recently used.
func (c *PixelCache) residentIDs() []uint64 {
	ids := make([]uint64, 0, len(c.entries))
	for e := c.order.head; e != nil; e = e.next {
		ids = append(ids, e.id)
	}
	return ids
}
