package filepool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curvebs/chunkfilepool/pkg/filepool"
	"github.com/curvebs/chunkfilepool/pkg/filesystem/filesystemtest"
)

// Initialize fails outright when the filesystem does not have enough
// available space to satisfy the configured pool size.
func TestInitializeFailsWhenDiskFull(t *testing.T) {
	fs := filesystemtest.New()
	fs.Available = 1024 // far less than the 4 MiB pool this requests

	pool := filepool.New(fs, testOptions("/pool"))
	err := pool.Initialize()
	require.Error(t, err)
	require.False(t, filepool.IsManifestCorrupt(err))
	require.False(t, filepool.IsTargetExists(err))
}

// AllocatedByPercent sizes the pool off of total disk capacity rather than
// a fixed byte target.
func TestInitializeAllocatedByPercent(t *testing.T) {
	fs := filesystemtest.New()
	fs.Total = 8 * 1048576
	fs.Available = 8 * 1048576

	opts := testOptions("/pool")
	opts.FilePoolSize = 0
	opts.AllocatedByPercent = true
	opts.AllocatedPercent = 50 // 4 MiB of an 8 MiB disk

	pool := filepool.New(fs, opts)
	require.NoError(t, pool.Initialize())
	require.Equal(t, uint64(4), pool.Size())
}

// An already-adequately-provisioned pool does no formatting work on a
// second Initialize over the same directory.
func TestInitializeIsNoOpWhenAlreadyProvisioned(t *testing.T) {
	fs := filesystemtest.New()
	opts := testOptions("/pool")

	first := filepool.New(fs, opts)
	require.NoError(t, first.Initialize())
	require.Equal(t, uint64(4), first.Size())

	second := filepool.New(fs, opts)
	require.NoError(t, second.Initialize())
	require.Equal(t, uint64(4), second.Size())
	require.Zero(t, second.FormatStat().PreAllocateNum)
}

// A malformed pool-directory entry (a non-numeric name) fails the startup
// scan.
func TestInitializeFailsOnMalformedEntry(t *testing.T) {
	fs := filesystemtest.New()
	require.NoError(t, fs.Mkdir("/pool"))
	fs.Put("/pool/not-a-number", make([]byte, testFileSize+testMetaPageSize))

	pool := filepool.New(fs, testOptions("/pool"))
	err := pool.Initialize()
	require.Error(t, err)
}

// A pool-directory entry of the wrong size fails the startup scan.
func TestInitializeFailsOnWrongSizedEntry(t *testing.T) {
	fs := filesystemtest.New()
	require.NoError(t, fs.Mkdir("/pool"))
	fs.Put("/pool/7", make([]byte, testFileSize))

	pool := filepool.New(fs, testOptions("/pool"))
	err := pool.Initialize()
	require.Error(t, err)
}
