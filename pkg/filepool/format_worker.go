package filepool

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// prepareFormat queries available space, resolves AllocatedByPercent into
// an absolute FilePoolSize, and decides how many files still need to be
// pre-created. It must run after scanInternal has populated p.chunkNum.
func (p *FilePool) prepareFormat() error {
	info, err := p.fs.Statfs(p.opts.FilePoolDir)
	if err != nil {
		return errIO("statfs %s: %v", p.opts.FilePoolDir, err)
	}

	filePoolSize := p.opts.FilePoolSize
	if p.opts.AllocatedByPercent {
		filePoolSize = info.TotalBytes * p.opts.AllocatedPercent / 100
	}

	bytesPerPage := p.opts.bytesPerPage()
	if bytesPerPage == 0 {
		return errValidation("fileSize+metaFileSize must be non-zero")
	}

	if filePoolSize/bytesPerPage <= p.chunkNum {
		p.formatStat.PreAllocateNum = 0
		return nil
	}

	needSpace := filePoolSize - p.chunkNum*bytesPerPage
	if info.AvailableBytes < needSpace {
		return errDiskFull("need %d bytes, only %d available", needSpace, info.AvailableBytes)
	}

	p.formatStat.PreAllocateNum = needSpace / bytesPerPage
	return nil
}

// startFormatting launches formatThreadNum peer workers, via an
// errgroup.Group, that race to pre-create formatStat.PreAllocateNum clean
// files. It does not block; callers observe completion either by waiting on
// the group returned through p.formatGroup or via GetFile's
// condition-variable wait.
//
// The first worker to hit an allocation error cancels the group's shared
// context, which stops every peer at its next loop check instead of letting
// them run out the full PreAllocateNum.
func (p *FilePool) startFormatting() {
	n := p.formatStat.PreAllocateNum
	if n == 0 {
		return
	}

	threads := p.opts.FormatThreadNum
	if threads <= 0 {
		threads = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	p.mu.Lock()
	p.formatGroup = group
	p.formatCancel = cancel
	p.mu.Unlock()

	offset := p.currentMaxFileNum.Add(n) - n
	var index atomic.Uint64
	for i := 0; i < threads; i++ {
		group.Go(func() error {
			return p.formatTask(groupCtx, offset, n, &index)
		})
	}
}

func (p *FilePool) formatTask(ctx context.Context, offset, preAllocateNum uint64, index *atomic.Uint64) error {
	interval := time.Duration(p.opts.FormatIntervalMsec) * time.Millisecond

	for {
		if ctx.Err() != nil {
			return nil
		}

		idx := index.Add(1) - 1
		if idx >= preAllocateNum {
			return nil
		}

		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil
			}
		}

		path := p.cleanPath(offset + idx)
		if err := p.allocateChunk(path); err != nil {
			p.formatStat.setWrong()
			return err
		}

		p.mu.Lock()
		p.cleanChunks = append(p.cleanChunks, offset+idx)
		p.chunkNum++
		p.mu.Unlock()
		p.formatStat.incAllocated()
		p.cond.Broadcast()
	}
}
