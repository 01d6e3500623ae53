package filepool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curvebs/chunkfilepool/pkg/filepool"
	"github.com/curvebs/chunkfilepool/pkg/filesystem/filesystemtest"
)

func TestManifestRoundTrip(t *testing.T) {
	fs := filesystemtest.New()

	t.Run("WithBlockSize", func(t *testing.T) {
		meta := filepool.FilePoolMeta{
			ChunkSize:    16 * 1024 * 1024,
			MetaPageSize: 4096,
			BlockSize:    4096,
			HasBlockSize: true,
			FilePoolPath: "/data/chunkfilepool",
		}
		require.NoError(t, filepool.EncodeManifest(fs, "/data/pool.meta", meta))

		got, err := filepool.DecodeManifest(fs, "/data/pool.meta")
		require.NoError(t, err)
		require.Equal(t, meta, got)
	})

	t.Run("MissingBlockSizeUsesDefault", func(t *testing.T) {
		meta := filepool.FilePoolMeta{
			ChunkSize:    16 * 1024 * 1024,
			MetaPageSize: 4096,
			HasBlockSize: false,
			FilePoolPath: "/data/chunkfilepool",
		}
		require.NoError(t, filepool.EncodeManifest(fs, "/data/legacy.meta", meta))

		got, err := filepool.DecodeManifest(fs, "/data/legacy.meta")
		require.NoError(t, err)
		require.False(t, got.HasBlockSize)
		require.Equal(t, uint32(4096), got.BlockSize)
	})
}

func TestManifestCRCMismatchIsRejected(t *testing.T) {
	fs := filesystemtest.New()
	meta := filepool.FilePoolMeta{
		ChunkSize:    16 * 1024 * 1024,
		MetaPageSize: 4096,
		BlockSize:    4096,
		HasBlockSize: true,
		FilePoolPath: "/data/chunkfilepool",
	}
	require.NoError(t, filepool.EncodeManifest(fs, "/data/pool.meta", meta))

	// Flip a single bit in the persisted manifest body.
	f, err := fs.Open("/data/pool.meta", false)
	require.NoError(t, err)
	var b [1]byte
	_, err = f.ReadAt(b[:], 0)
	require.NoError(t, err)
	b[0] ^= 0x01
	_, err = f.WriteAt(b[:], 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = filepool.DecodeManifest(fs, "/data/pool.meta")
	require.Error(t, err)
	require.True(t, filepool.IsManifestCorrupt(err))
}

func TestManifestMissingIsCorrupt(t *testing.T) {
	fs := filesystemtest.New()
	_, err := filepool.DecodeManifest(fs, "/data/does-not-exist.meta")
	require.Error(t, err)
	require.True(t, filepool.IsManifestCorrupt(err))
}
