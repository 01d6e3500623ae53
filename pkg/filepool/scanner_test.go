package filepool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curvebs/chunkfilepool/pkg/filepool"
	"github.com/curvebs/chunkfilepool/pkg/filesystem/filesystemtest"
)

// chunkNum accounts for files already claimed by the data store (under
// CopysetDir) and files awaiting trash collection (under RecycleDir), not
// just what is still sitting in the pool directory, which narrows how
// many additional files FormatWorker needs to produce.
func TestScanCountsAllocatedChunksUnderCopysetAndRecycleDirs(t *testing.T) {
	fs := filesystemtest.New()
	require.NoError(t, fs.Mkdir("/copyset"))
	require.NoError(t, fs.Mkdir("/copyset/cs1"))
	require.NoError(t, fs.Mkdir("/recycle"))

	fs.Put("/copyset/cs1/1001", []byte("x"))
	fs.Put("/copyset/cs1/1002.snapshot", []byte("x"))
	fs.Put("/copyset/cs1/metadata", []byte("x")) // not purely numeric: not counted
	fs.Put("/recycle/1003", []byte("x"))

	opts := testOptions("/pool")
	opts.CopysetDir = "/copyset"
	opts.RecycleDir = "/recycle"
	opts.IsAllocated = filepool.IsAllocatedPredicate{Kind: filepool.ChunkOrSnapshot}
	// The 4 MiB default pool target is already satisfied by the 3
	// allocated files the test seeds plus the eventual 1 formatted file,
	// so only 1 file needs creating.
	opts.FilePoolSize = 4 * 1048576

	pool := filepool.New(fs, opts)
	require.NoError(t, pool.Initialize())

	require.Equal(t, uint64(1), pool.Size())
	require.Equal(t, uint64(4), pool.GetState().ChunkNum)
}

// The ChunkOrSnapshotOrWal predicate additionally counts wal_-prefixed
// names.
func TestScanCountsWalPrefixedEntriesWhenConfigured(t *testing.T) {
	fs := filesystemtest.New()
	require.NoError(t, fs.Mkdir("/copyset"))
	fs.Put("/copyset/wal_1", []byte("x"))

	opts := testOptions("/pool")
	opts.CopysetDir = "/copyset"
	opts.IsAllocated = filepool.IsAllocatedPredicate{Kind: filepool.ChunkOrSnapshotOrWal}
	opts.FilePoolSize = 4 * 1048576

	pool := filepool.New(fs, opts)
	require.NoError(t, pool.Initialize())

	// 1 allocated wal_ file already counted against the 4 MiB target
	// leaves room for 3 more formatted files.
	require.Equal(t, uint64(3), pool.Size())
	require.Equal(t, uint64(4), pool.GetState().ChunkNum)
}
