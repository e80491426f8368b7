package storage

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// lpIndexEntry is one (value, vertex, timestamp) triple in a per-key
// skiplist. Ordering is by value under CompareValues, then gid, then
// timestamp, so equal values cluster and entries of one vertex stay grouped.
type lpIndexEntry struct {
	value  PropertyValue
	vertex *Vertex
	ts     uint64
}

func compareLPIndexEntries(a, b lpIndexEntry) int {
	if c := CompareValues(a.value, b.value); c != 0 {
		return c
	}
	// Seek probes carry only a value; a nil vertex sorts before every real
	// entry with the same value.
	if a.vertex == nil || b.vertex == nil {
		switch {
		case a.vertex == b.vertex:
			return 0
		case a.vertex == nil:
			return -1
		}
		return 1
	}
	if a.vertex.gid != b.vertex.gid {
		if a.vertex.gid < b.vertex.gid {
			return -1
		}
		return 1
	}
	switch {
	case a.ts < b.ts:
		return -1
	case a.ts > b.ts:
		return 1
	}
	return 0
}

// LabelPropertyIndex maps registered (label, property) pairs to the values
// vertices held for them. Index creation registers the key first and then
// backfills from existing data, so concurrent writers double-insert at worst.
type LabelPropertyIndex struct {
	mu    sync.RWMutex
	lists map[IndexKey]*SkipList[lpIndexEntry]
}

// NewLabelPropertyIndex initializes an empty label+property index.
func NewLabelPropertyIndex() *LabelPropertyIndex {
	logrus.WithField("component", "LabelPropertyIndex").Info("Initializing LabelPropertyIndex")
	return &LabelPropertyIndex{lists: make(map[IndexKey]*SkipList[lpIndexEntry])}
}

func (lpi *LabelPropertyIndex) list(key IndexKey) *SkipList[lpIndexEntry] {
	lpi.mu.RLock()
	defer lpi.mu.RUnlock()
	return lpi.lists[key]
}

// register creates the empty list for key. It fails when the key already
// exists.
func (lpi *LabelPropertyIndex) register(key IndexKey) (*SkipList[lpIndexEntry], error) {
	lpi.mu.Lock()
	defer lpi.mu.Unlock()
	if _, ok := lpi.lists[key]; ok {
		return nil, fmt.Errorf("index on (%d, %d): %w", key.Label, key.Property, ErrIndexExists)
	}
	sl := NewSkipList(compareLPIndexEntries, int64(key.Label)<<32|int64(key.Property))
	lpi.lists[key] = sl
	return sl, nil
}

// drop removes the list for key. It fails when the key is not registered.
func (lpi *LabelPropertyIndex) drop(key IndexKey) error {
	lpi.mu.Lock()
	defer lpi.mu.Unlock()
	if _, ok := lpi.lists[key]; !ok {
		return fmt.Errorf("index on (%d, %d): %w", key.Label, key.Property, ErrIndexDoesNotExist)
	}
	delete(lpi.lists, key)
	return nil
}

// has reports whether key is registered.
func (lpi *LabelPropertyIndex) has(key IndexKey) bool {
	lpi.mu.RLock()
	defer lpi.mu.RUnlock()
	_, ok := lpi.lists[key]
	return ok
}

// keys returns the registered index keys.
func (lpi *LabelPropertyIndex) keys() []IndexKey {
	lpi.mu.RLock()
	defer lpi.mu.RUnlock()
	out := make([]IndexKey, 0, len(lpi.lists))
	for key := range lpi.lists {
		out = append(out, key)
	}
	return out
}

// add records that vertex held value for key as of transaction ts. Writes to
// unregistered keys are dropped.
func (lpi *LabelPropertyIndex) add(key IndexKey, value PropertyValue, vertex *Vertex, ts uint64) {
	if sl := lpi.list(key); sl != nil {
		sl.Insert(lpIndexEntry{value: value, vertex: vertex, ts: ts})
	}
}

// entryAlive reports whether the vertex currently matches the entry in the
// transaction's view: it carries the label and holds a value comparing equal
// to the entry's.
func entryAlive(tx *Transaction, key IndexKey, entry lpIndexEntry, view View) (*VertexAccessor, bool) {
	va := &VertexAccessor{vertex: entry.vertex, tx: tx, storage: tx.storage()}
	has, err := va.HasLabel(key.Label, view)
	if err != nil || !has {
		return nil, false
	}
	cur, err := va.GetProperty(key.Property, view)
	if err != nil || cur.IsNull() {
		return nil, false
	}
	if CompareValues(cur, entry.value) != 0 {
		return nil, false
	}
	return va, true
}

// ScanEqual returns accessors for the vertices whose indexed value compares
// equal to value, ordered by value then gid.
func (lpi *LabelPropertyIndex) ScanEqual(tx *Transaction, key IndexKey, value PropertyValue, view View) ([]*VertexAccessor, error) {
	b := InclusiveBound(value)
	return lpi.ScanRange(tx, key, b, b, view)
}

// ScanRange returns accessors for the vertices whose indexed value falls in
// the given bounds, ordered by value then gid. A nil bound leaves that side
// open within the type class of the other bound; with both bounds absent the
// whole index is scanned. Bounds in different type classes never match
// anything.
func (lpi *LabelPropertyIndex) ScanRange(tx *Transaction, key IndexKey, lower, upper *Bound, view View) ([]*VertexAccessor, error) {
	sl := lpi.list(key)
	if sl == nil {
		return nil, fmt.Errorf("index on (%d, %d): %w", key.Label, key.Property, ErrIndexDoesNotExist)
	}

	classBound := false
	var class int
	switch {
	case lower != nil && upper != nil:
		if lower.Value.Type().typeClass() != upper.Value.Type().typeClass() {
			return nil, nil
		}
		class = lower.Value.Type().typeClass()
		classBound = true
	case lower != nil:
		class = lower.Value.Type().typeClass()
		classBound = true
	case upper != nil:
		class = upper.Value.Type().typeClass()
		classBound = true
	}

	var it *SkipIterator[lpIndexEntry]
	switch {
	case lower != nil:
		it = sl.Seek(lpIndexEntry{value: lower.Value})
	case upper != nil:
		it = sl.Seek(lpIndexEntry{value: lowestOfClass(upper.Value.Type())})
	default:
		it = sl.SeekFirst()
	}

	var out []*VertexAccessor
	var lastEmitted *Vertex
	for ; it.Valid(); it.Next() {
		entry := it.Value()
		if classBound && entry.value.Type().typeClass() != class {
			break
		}
		if lower != nil && !lower.Inclusive && CompareValues(entry.value, lower.Value) == 0 {
			continue
		}
		if upper != nil {
			c := CompareValues(entry.value, upper.Value)
			if c > 0 || (c == 0 && !upper.Inclusive) {
				break
			}
		}
		if entry.vertex == lastEmitted {
			continue
		}
		if va, ok := entryAlive(tx, key, entry, view); ok {
			lastEmitted = entry.vertex
			out = append(out, va)
		}
	}
	return out, nil
}

// ApproximateVertexCount returns the entry count for key, duplicates and
// dead entries included.
func (lpi *LabelPropertyIndex) ApproximateVertexCount(key IndexKey) int {
	sl := lpi.list(key)
	if sl == nil {
		return 0
	}
	return sl.Len()
}

// collect removes entries no active transaction can still see: the entry's
// timestamp committed below oldest and the vertex no longer matches the
// entry at oldest.
func (lpi *LabelPropertyIndex) collect(key IndexKey, oldest uint64, clog *commitLog) int {
	sl := lpi.list(key)
	if sl == nil {
		return 0
	}

	var dead []lpIndexEntry
	for it := sl.SeekFirst(); it.Valid(); it.Next() {
		entry := it.Value()
		if !(clog.isCommitted(entry.ts) && entry.ts < oldest) {
			continue
		}
		keep := false
		if v, ok := entry.vertex.chain.visibleAt(oldest, clog); ok {
			if slices.Contains(v.data.labels, key.Label) {
				if cur, has := v.data.properties[key.Property]; has {
					keep = CompareValues(cur, entry.value) == 0
				}
			}
		}
		if !keep {
			dead = append(dead, entry)
		}
	}
	for _, entry := range dead {
		sl.Remove(entry, func(e lpIndexEntry) bool {
			return e.vertex == entry.vertex && e.ts == entry.ts && e.value.Equal(entry.value)
		})
	}
	return len(dead)
}
