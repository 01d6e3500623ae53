package filepool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curvebs/chunkfilepool/pkg/filepool"
)

func TestFilePoolOptionsValidateBytesPerWrite(t *testing.T) {
	base := filepool.FilePoolOptions{}

	// Only aligned, in-range values are accepted.
	for _, bad := range []uint64{0, 4095, 1048577} {
		o := base
		o.BytesPerWrite = bad
		require.Error(t, o.Validate(), "bytesPerWrite=%d should be rejected", bad)
	}

	for _, good := range []uint64{4096, 8192, 1048576} {
		o := base
		o.BytesPerWrite = good
		require.NoError(t, o.Validate(), "bytesPerWrite=%d should be accepted", good)
	}
}

func TestIsAllocatedPredicate(t *testing.T) {
	t.Run("ChunkOrSnapshot", func(t *testing.T) {
		p := filepool.IsAllocatedPredicate{Kind: filepool.ChunkOrSnapshot}
		require.True(t, p.Evaluate("12345"))
		require.True(t, p.Evaluate("12345.snapshot"))
		require.False(t, p.Evaluate("wal_1"))
		require.False(t, p.Evaluate("not-a-number"))
	})

	t.Run("ChunkOrSnapshotOrWal", func(t *testing.T) {
		p := filepool.IsAllocatedPredicate{Kind: filepool.ChunkOrSnapshotOrWal}
		require.True(t, p.Evaluate("12345"))
		require.True(t, p.Evaluate("wal_7"))
		require.False(t, p.Evaluate("not-a-number"))
	})

	t.Run("Custom", func(t *testing.T) {
		p := filepool.IsAllocatedPredicate{
			Kind:   filepool.Custom,
			Custom: func(name string) bool { return name == "marker" },
		}
		require.True(t, p.Evaluate("marker"))
		require.False(t, p.Evaluate("other"))
	})

	t.Run("CustomWithoutFuncIsFalse", func(t *testing.T) {
		p := filepool.IsAllocatedPredicate{Kind: filepool.Custom}
		require.False(t, p.Evaluate("anything"))
	})
}
