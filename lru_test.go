package spritebatch

import (
	"slices"
	"testing"
)

func listIDs(l *lruList) []uint64 {
	var ids []uint64
	for e := l.head; e != nil; e = e.next {
		ids = append(ids, e.id)
	}
	return ids
}

func TestLRUList_PushFrontOrder(t *testing.T) {
	var l lruList
	for id := uint64(1); id <= 3; id++ {
		l.pushFront(&cacheEntry{id: id})
	}
	if got := listIDs(&l); !slices.Equal(got, []uint64{3, 2, 1}) {
		t.Errorf("order = %v, want [3 2 1]", got)
	}
	if l.back().id != 1 {
		t.Errorf("back = %d, want 1", l.back().id)
	}
	if l.len != 3 {
		t.Errorf("len = %d, want 3", l.len)
	}
}

func TestLRUList_MoveToFront(t *testing.T) {
	var l lruList
	entries := make([]*cacheEntry, 4)
	for i := range entries {
		entries[i] = &cacheEntry{id: uint64(i)}
		l.pushFront(entries[i])
	}
	// [3 2 1 0]
	l.moveToFront(entries[0]) // tail
	l.moveToFront(entries[2]) // middle
	l.moveToFront(entries[2]) // already head

	if got := listIDs(&l); !slices.Equal(got, []uint64{2, 0, 3, 1}) {
		t.Errorf("order = %v, want [2 0 3 1]", got)
	}
	if l.back().id != 1 || l.tail.next != nil || l.head.prev != nil {
		t.Errorf("broken ends: head=%d tail=%d", l.head.id, l.tail.id)
	}
}

func TestLRUList_UnlinkAll(t *testing.T) {
	var l lruList
	a, b := &cacheEntry{id: 1}, &cacheEntry{id: 2}
	l.pushFront(a)
	l.pushFront(b)

	l.unlink(a)
	if l.back() != b || l.head != b {
		t.Fatal("single entry should be head and tail")
	}
	l.unlink(b)
	if l.head != nil || l.tail != nil || l.len != 0 {
		t.Errorf("list not empty: head=%v tail=%v len=%d", l.head, l.tail, l.len)
	}
	if l.back() != nil {
		t.Error("back of empty list should be nil")
	}
}
