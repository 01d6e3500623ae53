//go:build linux

package filesystem

import (
	"golang.org/x/sys/unix"
)

func (f *localFile) Fallocate(mode FallocateMode, offset, length int64) error {
	var flags int
	switch mode {
	case FallocateZeroRange:
		flags = unix.FALLOC_FL_ZERO_RANGE
	default:
		flags = 0
	}
	return unix.Fallocate(int(f.f.Fd()), uint32(flags), offset, length)
}

func statfs(dir string) (SpaceInfo, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return SpaceInfo{}, err
	}
	blockSize := uint64(st.Bsize)
	return SpaceInfo{
		TotalBytes:     st.Blocks * blockSize,
		AvailableBytes: st.Bavail * blockSize,
	}, nil
}

func renameNoReplace(oldpath, newpath string) error {
	if err := ensureParent(newpath); err != nil {
		return err
	}
	return unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
}
