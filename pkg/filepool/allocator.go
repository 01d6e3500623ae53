package filepool

import (
	"context"
	"fmt"
	"path"

	"github.com/curvebs/chunkfilepool/pkg/filesystem"
)

func dirtyName(id uint64) string {
	return fmt.Sprintf("%d", id)
}

func cleanName(id uint64) string {
	return fmt.Sprintf("%d.clean", id)
}

func (p *FilePool) dirtyPath(id uint64) string {
	return path.Join(p.opts.FilePoolDir, dirtyName(id))
}

func (p *FilePool) cleanPath(id uint64) string {
	return path.Join(p.opts.FilePoolDir, cleanName(id))
}

// allocateChunk creates, fallocates, zero-fills, and fsyncs a brand new
// pool file at dst. The file is fileBodySize() bytes: metaPageSize header
// region followed by fileSize payload region.
func (p *FilePool) allocateChunk(dst string) error {
	f, err := p.fs.Open(dst, true)
	if err != nil {
		return errIO("allocate %s: open: %v", dst, err)
	}
	defer f.Close()

	size := int64(p.opts.fileBodySize())
	if err := f.Fallocate(filesystem.FallocateReserve, 0, size); err != nil {
		return errIO("allocate %s: fallocate: %v", dst, err)
	}

	zero := make([]byte, size)
	n, err := f.WriteAt(zero, 0)
	if err != nil {
		return errIO("allocate %s: zero-fill: %v", dst, err)
	}
	if int64(n) != size {
		return errIO("allocate %s: short zero-fill: wrote %d of %d bytes", dst, n, size)
	}

	if err := f.Fsync(); err != nil {
		return errIO("allocate %s: fsync: %v", dst, err)
	}
	return nil
}

// writeMetaPage writes page at offset 0 of path, which must already exist.
// A page shorter than metaPageSize is zero-padded; one longer is rejected.
func (p *FilePool) writeMetaPage(target string, page []byte) error {
	metaPageSize := int(p.opts.MetaPageSize)
	if len(page) > metaPageSize {
		return errValidation("meta page of %d bytes exceeds metaPageSize %d", len(page), metaPageSize)
	}

	f, err := p.fs.Open(target, false)
	if err != nil {
		return errIO("write meta page %s: open: %v", target, err)
	}
	defer f.Close()

	buf := page
	if len(buf) < metaPageSize {
		buf = make([]byte, metaPageSize)
		copy(buf, page)
	}

	n, err := f.WriteAt(buf, 0)
	if err != nil {
		return errIO("write meta page %s: %v", target, err)
	}
	if n != len(buf) {
		return errIO("write meta page %s: short write: wrote %d of %d bytes", target, n, len(buf))
	}
	if err := f.Fsync(); err != nil {
		return errIO("write meta page %s: fsync: %v", target, err)
	}
	return nil
}

// cleanChunk converts the dirty file numbered id into a clean one. With
// onlyMarked it issues a single zero-range
// fallocate over the whole body and renames — the fast path GetFile takes
// when it must hand back a clean file but only a dirty one is available.
// Without onlyMarked it repeatedly writes real zero bytes in BytesPerWrite
// chunks, fsyncing and charging the IOPS throttle after each one — the slow
// path the CleanWorker loop runs continuously.
func (p *FilePool) cleanChunk(ctx context.Context, id uint64, onlyMarked bool) error {
	src := p.dirtyPath(id)
	dst := p.cleanPath(id)

	f, err := p.fs.Open(src, false)
	if err != nil {
		return errIO("clean chunk %d: open: %v", id, err)
	}

	size := int64(p.opts.fileBodySize())

	if onlyMarked {
		err = f.Fallocate(filesystem.FallocateZeroRange, 0, size)
		f.Close()
		if err != nil {
			return errIO("clean chunk %d: zero-range fallocate: %v", id, err)
		}
	} else {
		chunk := int64(p.opts.BytesPerWrite)
		if chunk <= 0 {
			chunk = size
		}
		zero := make([]byte, chunk)
		var off int64
		for off < size {
			n := chunk
			if size-off < n {
				n = size - off
			}
			if _, werr := f.WriteAt(zero[:n], off); werr != nil {
				f.Close()
				return errIO("clean chunk %d: zero-fill at offset %d: %v", id, off, werr)
			}
			if serr := f.Fsync(); serr != nil {
				f.Close()
				return errIO("clean chunk %d: fsync at offset %d: %v", id, off, serr)
			}
			if p.throttle != nil {
				if terr := p.throttle.Wait(ctx); terr != nil {
					f.Close()
					return errIO("clean chunk %d: throttle wait: %v", id, terr)
				}
			}
			off += n
		}
		f.Close()
	}

	if err := p.fs.Rename(src, dst, filesystem.RenameReplace); err != nil {
		// Rename failure leaves the file in place, uncleaned.
		return errIO("clean chunk %d: rename to clean: %v", id, err)
	}
	return nil
}
