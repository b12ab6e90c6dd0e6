package spritebatch

// cacheEntry is a resident image and its node in the recency list.
type cacheEntry struct {
	id     uint64
	pixels *Pixels
	size   int
	prev   *cacheEntry
	next   *cacheEntry
}

// lruList is a doubly-linked recency list. The head is the most recently
// used entry, the tail the least recently used.
type lruList struct {
	head *cacheEntry
	tail *cacheEntry
	len  int
}

// pushFront inserts a detached entry as most recently used.
func (l *lruList) pushFront(e *cacheEntry) {
	e.prev = nil
	e.next = l.head
	if l.head != nil {
		l.head.prev = e
	}
	l.head = e
	if l.tail == nil {
		l.tail = e
	}
	l.len++
}

// moveToFront promotes an entry already in the list.
func (l *lruList) moveToFront(e *cacheEntry) {
	if e == l.head {
		return
	}
	l.unlink(e)
	l.pushFront(e)
}

// back returns the least recently used entry, or nil.
func (l *lruList) back() *cacheEntry {
	return l.tail
}

// unlink removes an entry from the list.
func (l *lruList) unlink(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nil
	e.next = nil
	l.len--
}

func (l *lruList) clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}
