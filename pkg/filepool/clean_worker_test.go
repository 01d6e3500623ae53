package filepool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/curvebs/chunkfilepool/pkg/filepool"
	"github.com/curvebs/chunkfilepool/pkg/filesystem/filesystemtest"
)

// With NeedClean configured, a recycled (dirty) file is asynchronously
// zero-filled and promoted into cleanChunks by the background clean
// worker, without any caller driving it directly.
func TestCleanWorkerPromotesRecycledFiles(t *testing.T) {
	fs := filesystemtest.New()
	opts := testOptions("/pool")
	opts.NeedClean = true
	pool := filepool.New(fs, opts)
	require.NoError(t, pool.Initialize())
	defer pool.Stop()

	metapage := make([]byte, testMetaPageSize)
	require.NoError(t, pool.GetFile(context.Background(), "/out/a", metapage, false))
	require.NoError(t, pool.RecycleFile("/out/a"))

	require.Eventually(t, func() bool {
		return pool.GetState().DirtyChunksLeft == 0 && pool.GetState().CleanChunksLeft > 0
	}, 2*time.Second, time.Millisecond, "clean worker never promoted the recycled file")
}

// StopCleaning halts the background worker and can be followed by a fresh
// StartCleaning, since a new Sleeper is installed on every start.
func TestStopAndRestartCleaning(t *testing.T) {
	fs := filesystemtest.New()
	opts := testOptions("/pool")
	opts.NeedClean = true
	pool := filepool.New(fs, opts)
	require.NoError(t, pool.Initialize())
	defer pool.Stop()

	pool.StopCleaning()

	metapage := make([]byte, testMetaPageSize)
	require.NoError(t, pool.GetFile(context.Background(), "/out/a", metapage, false))
	require.NoError(t, pool.RecycleFile("/out/a"))

	// Cleaning is stopped: the recycled file stays dirty.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, uint64(1), pool.GetState().DirtyChunksLeft)

	pool.StartCleaning()
	require.Eventually(t, func() bool {
		return pool.GetState().DirtyChunksLeft == 0
	}, 2*time.Second, time.Millisecond, "restarted clean worker never promoted the recycled file")
}
