package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func intCompare(a, b int) int { return a - b }

func collect(it *SkipIterator[int]) []int {
	var out []int
	for ; it.Valid(); it.Next() {
		out = append(out, it.Value())
	}
	return out
}

func TestSkipListOrderedInsert(t *testing.T) {
	sl := NewSkipList(intCompare, 1)
	for _, v := range []int{5, 1, 9, 3, 7} {
		sl.Insert(v)
	}
	require.Equal(t, 5, sl.Len())
	require.Equal(t, []int{1, 3, 5, 7, 9}, collect(sl.SeekFirst()))
}

func TestSkipListDuplicatesKeepInsertionOrder(t *testing.T) {
	type pair struct{ key, seq int }
	sl := NewSkipList(func(a, b pair) int { return a.key - b.key }, 1)
	sl.Insert(pair{1, 0})
	sl.Insert(pair{2, 1})
	sl.Insert(pair{1, 2})
	sl.Insert(pair{1, 3})

	var got []pair
	for it := sl.SeekFirst(); it.Valid(); it.Next() {
		got = append(got, it.Value())
	}
	require.Equal(t, []pair{{1, 0}, {1, 2}, {1, 3}, {2, 1}}, got)
}

func TestSkipListSeek(t *testing.T) {
	sl := NewSkipList(intCompare, 1)
	for _, v := range []int{10, 20, 30} {
		sl.Insert(v)
	}
	require.Equal(t, []int{20, 30}, collect(sl.Seek(15)))
	require.Equal(t, []int{20, 30}, collect(sl.Seek(20)))
	require.Empty(t, collect(sl.Seek(31)))
}

func TestSkipListRemove(t *testing.T) {
	sl := NewSkipList(intCompare, 1)
	for v := 1; v <= 5; v++ {
		sl.Insert(v)
	}
	require.True(t, sl.Remove(3, func(int) bool { return true }))
	require.False(t, sl.Remove(3, func(int) bool { return true }))
	require.Equal(t, []int{1, 2, 4, 5}, collect(sl.SeekFirst()))
	require.Equal(t, 4, sl.Len())
}

func TestSkipListRemoveMatchesAmongDuplicates(t *testing.T) {
	type pair struct{ key, seq int }
	sl := NewSkipList(func(a, b pair) int { return a.key - b.key }, 1)
	sl.Insert(pair{1, 0})
	sl.Insert(pair{1, 1})
	sl.Insert(pair{1, 2})

	require.True(t, sl.Remove(pair{key: 1}, func(p pair) bool { return p.seq == 1 }))

	var got []int
	for it := sl.SeekFirst(); it.Valid(); it.Next() {
		got = append(got, it.Value().seq)
	}
	require.Equal(t, []int{0, 2}, got)
}

func TestSkipListIteratorSurvivesRemoval(t *testing.T) {
	sl := NewSkipList(intCompare, 1)
	for v := 1; v <= 5; v++ {
		sl.Insert(v)
	}

	it := sl.Seek(2)
	require.Equal(t, 2, it.Value())

	// Remove the node the iterator stands on; its forward links survive.
	require.True(t, sl.Remove(2, func(int) bool { return true }))
	it.Next()
	require.Equal(t, []int{3, 4, 5}, collect(it))
}

func TestSkipListConcurrentReadersAndWriters(t *testing.T) {
	sl := NewSkipList(intCompare, 1)
	const writers = 4
	const perWriter = 250

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				sl.Insert(w*perWriter + i)
			}
		}(w)
	}
	// Readers walk concurrently and only check ordering.
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pass := 0; pass < 50; pass++ {
				prev := -1
				for it := sl.SeekFirst(); it.Valid(); it.Next() {
					v := it.Value()
					if prev >= 0 && v < prev {
						t.Error("out of order traversal")
						return
					}
					prev = v
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, writers*perWriter, sl.Len())
	require.Len(t, collect(sl.SeekFirst()), writers*perWriter)
}
