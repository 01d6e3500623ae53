package filepool

import (
	"context"
	"time"

	"github.com/curvebs/chunkfilepool/pkg/sleeper"
)

// startCleaning launches the single clean worker goroutine, if NeedClean is
// configured. Idempotent: a second call while already running is a no-op.
// A fresh Sleeper is installed on every start, since Stop permanently
// retires the previous one (sleeper.Sleeper has no reset).
func (p *FilePool) startCleaning() {
	if !p.opts.NeedClean {
		return
	}
	if !p.cleanAlive.CompareAndSwap(false, true) {
		return
	}
	p.sleeperClean = sleeper.New()
	p.wgClean.Add(1)
	go p.runCleanWorker()
}

func (p *FilePool) runCleanWorker() {
	defer p.wgClean.Done()

	interval := time.Duration(kSuccessSleepMsec) * time.Millisecond
	for p.sleeperClean.Sleep(interval) {
		if p.cleaningChunk(context.Background()) {
			interval = time.Duration(kSuccessSleepMsec) * time.Millisecond
		} else {
			interval = time.Duration(kFailSleepMsec) * time.Millisecond
		}
	}
}

// cleaningChunk pops one dirty file, zero-fills it under the IOPS throttle,
// and promotes it to cleanChunks. It reports whether a file was
// successfully cleaned, which governs the worker's next sleep interval.
func (p *FilePool) cleaningChunk(ctx context.Context) bool {
	p.mu.Lock()
	n := len(p.dirtyChunks)
	if n == 0 {
		p.mu.Unlock()
		return false
	}
	id := p.dirtyChunks[n-1]
	p.dirtyChunks = p.dirtyChunks[:n-1]
	p.mu.Unlock()

	if err := p.cleanChunk(ctx, id, false); err != nil {
		p.mu.Lock()
		p.dirtyChunks = append(p.dirtyChunks, id)
		p.mu.Unlock()
		p.cond.Broadcast()
		return false
	}

	p.mu.Lock()
	p.cleanChunks = append(p.cleanChunks, id)
	p.mu.Unlock()
	p.cond.Broadcast()
	return true
}
