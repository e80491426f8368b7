package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitLogSetGet(t *testing.T) {
	cl := newCommitLog()

	cl.set(1, StatusActive)
	require.Equal(t, StatusActive, cl.get(1))

	cl.set(1, StatusCommitted)
	require.Equal(t, StatusCommitted, cl.get(1))
	require.True(t, cl.isCommitted(1))

	cl.set(2, StatusAborted)
	require.Equal(t, StatusAborted, cl.get(2))
	require.False(t, cl.isCommitted(2))
}

func TestCommitLogUnrecordedReadsActive(t *testing.T) {
	cl := newCommitLog()
	require.Equal(t, StatusActive, cl.get(12345))
	require.False(t, cl.isCommitted(12345))
}

func TestCommitLogSegmentGrowth(t *testing.T) {
	cl := newCommitLog()

	// Ids far apart land in different segments.
	ids := []uint64{0, clogTxPerSegment - 1, clogTxPerSegment, 5 * clogTxPerSegment}
	for _, id := range ids {
		cl.set(id, StatusCommitted)
	}
	for _, id := range ids {
		require.True(t, cl.isCommitted(id), "id %d", id)
	}
	require.Equal(t, StatusActive, cl.get(clogTxPerSegment+1))
}

func TestCommitLogNeighborsUnaffected(t *testing.T) {
	cl := newCommitLog()
	cl.set(10, StatusCommitted)
	cl.set(11, StatusAborted)
	cl.set(12, StatusCommitted)

	require.Equal(t, StatusCommitted, cl.get(10))
	require.Equal(t, StatusAborted, cl.get(11))
	require.Equal(t, StatusCommitted, cl.get(12))
	require.Equal(t, StatusActive, cl.get(9))
	require.Equal(t, StatusActive, cl.get(13))
}

func TestCommitLogConcurrentWriters(t *testing.T) {
	cl := newCommitLog()
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				cl.set(uint64(w*perWorker+i), StatusCommitted)
			}
		}(w)
	}
	wg.Wait()

	for id := uint64(0); id < workers*perWorker; id++ {
		require.True(t, cl.isCommitted(id), "id %d", id)
	}
}

func TestTransactionStatusString(t *testing.T) {
	require.Equal(t, "active", StatusActive.String())
	require.Equal(t, "committed", StatusCommitted.String())
	require.Equal(t, "aborted", StatusAborted.String())
}
