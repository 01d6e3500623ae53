//go:build !linux

package filesystem

import (
	"os"
	"syscall"
)

// Fallocate on non-Linux platforms falls back to Truncate, which reserves
// space for the growing case but cannot honor FallocateZeroRange's "punch
// a hole" semantics; it zero-fills instead, which satisfies the pool's
// correctness requirement (CleanChunk's fast path just ends up doing real
// I/O here rather than a metadata-only operation).
func (f *localFile) Fallocate(mode FallocateMode, offset, length int64) error {
	if end := offset + length; end > 0 {
		if info, err := f.f.Stat(); err == nil && info.Size() < end {
			if err := f.f.Truncate(end); err != nil {
				return err
			}
		}
	}
	if mode == FallocateZeroRange {
		zero := make([]byte, 32*1024)
		remaining := length
		at := offset
		for remaining > 0 {
			n := int64(len(zero))
			if remaining < n {
				n = remaining
			}
			if _, err := f.f.WriteAt(zero[:n], at); err != nil {
				return err
			}
			at += n
			remaining -= n
		}
	}
	return nil
}

func statfs(dir string) (SpaceInfo, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return SpaceInfo{}, err
	}
	blockSize := uint64(st.Bsize)
	return SpaceInfo{
		TotalBytes:     st.Blocks * blockSize,
		AvailableBytes: st.Bavail * blockSize,
	}, nil
}

// renameNoReplace has no portable atomic no-clobber primitive outside of
// Linux's renameat2(RENAME_NOREPLACE). It approximates it with an
// existence check immediately before the rename; this narrows, but does
// not eliminate, the race the real syscall closes. Production deployments
// of this pool run on Linux, where local_linux.go's renameat2 path is
// exact.
func renameNoReplace(oldpath, newpath string) error {
	if err := ensureParent(newpath); err != nil {
		return err
	}
	if _, err := os.Stat(newpath); err == nil {
		return os.ErrExist
	}
	return os.Rename(oldpath, newpath)
}
