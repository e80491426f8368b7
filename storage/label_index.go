package storage

import (
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// labelIndexEntry is one (vertex, timestamp) pair in a per-label skiplist.
// The timestamp is the writing transaction's id, which keeps entries of the
// same vertex grouped and ordered by write time.
type labelIndexEntry struct {
	vertex *Vertex
	ts     uint64
}

func compareLabelIndexEntries(a, b labelIndexEntry) int {
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

// LabelIndex maps every label to the vertices that carried it at some point.
// Entries are written eagerly on label addition and never at scan time;
// stale entries are filtered by visibility checks and reclaimed by the
// garbage collector.
type LabelIndex struct {
	mu    sync.RWMutex
	lists map[LabelId]*SkipList[labelIndexEntry]
}

// NewLabelIndex initializes an empty label index.
func NewLabelIndex() *LabelIndex {
	logrus.WithField("component", "LabelIndex").Info("Initializing LabelIndex")
	return &LabelIndex{lists: make(map[LabelId]*SkipList[labelIndexEntry])}
}

func (li *LabelIndex) list(label LabelId, grow bool) *SkipList[labelIndexEntry] {
	li.mu.RLock()
	sl, ok := li.lists[label]
	li.mu.RUnlock()
	if ok || !grow {
		return sl
	}

	li.mu.Lock()
	defer li.mu.Unlock()
	if sl, ok := li.lists[label]; ok {
		return sl
	}
	sl = NewSkipList(compareLabelIndexEntries, int64(label))
	li.lists[label] = sl
	return sl
}

// has reports whether a list exists for label.
func (li *LabelIndex) has(label LabelId) bool {
	return li.list(label, false) != nil
}

// add records that vertex carried label as of transaction ts.
func (li *LabelIndex) add(label LabelId, vertex *Vertex, ts uint64) {
	li.list(label, true).Insert(labelIndexEntry{vertex: vertex, ts: ts})
}

// Scan returns accessors for the vertices that carry label in the
// transaction's view, ordered by gid. Multiple entries for one vertex
// collapse to a single result.
func (li *LabelIndex) Scan(tx *Transaction, label LabelId, view View) []*VertexAccessor {
	sl := li.list(label, false)
	if sl == nil {
		return nil
	}

	var out []*VertexAccessor
	var lastEmitted *Vertex
	for it := sl.SeekFirst(); it.Valid(); it.Next() {
		entry := it.Value()
		if entry.vertex == lastEmitted {
			continue
		}
		va := &VertexAccessor{vertex: entry.vertex, tx: tx, storage: tx.storage()}
		has, err := va.HasLabel(label, view)
		if err != nil || !has {
			continue
		}
		lastEmitted = entry.vertex
		out = append(out, va)
	}
	return out
}

// ApproximateVertexCount returns the entry count for label, duplicates and
// dead entries included.
func (li *LabelIndex) ApproximateVertexCount(label LabelId) int {
	sl := li.list(label, false)
	if sl == nil {
		return 0
	}
	return sl.Len()
}

// collect removes entries no active transaction can still see: the entry's
// timestamp committed below oldest and the vertex no longer carries the
// label at oldest, or the vertex is gone entirely.
func (li *LabelIndex) collect(label LabelId, oldest uint64, clog *commitLog) int {
	sl := li.list(label, false)
	if sl == nil {
		return 0
	}

	var dead []labelIndexEntry
	var lastChecked *Vertex
	keepVertex := false
	for it := sl.SeekFirst(); it.Valid(); it.Next() {
		entry := it.Value()
		if !(clog.isCommitted(entry.ts) && entry.ts < oldest) {
			continue
		}
		if entry.vertex != lastChecked {
			lastChecked = entry.vertex
			keepVertex = false
			if v, ok := entry.vertex.chain.visibleAt(oldest, clog); ok {
				keepVertex = slices.Contains(v.data.labels, label)
			}
		}
		if !keepVertex {
			dead = append(dead, entry)
		}
	}
	for _, entry := range dead {
		sl.Remove(entry, func(e labelIndexEntry) bool {
			return e.vertex == entry.vertex && e.ts == entry.ts
		})
	}
	return len(dead)
}

// labels returns the labels that have a list, for the garbage collector.
func (li *LabelIndex) labels() []LabelId {
	li.mu.RLock()
	defer li.mu.RUnlock()
	out := make([]LabelId, 0, len(li.lists))
	for label := range li.lists {
		out = append(out, label)
	}
	return out
}
