package filepool

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/curvebs/chunkfilepool/pkg/filesystem"
	"github.com/curvebs/chunkfilepool/pkg/sleeper"
	"github.com/curvebs/chunkfilepool/pkg/throttle"
)

// FilePool is the pool's public surface: GetFile, RecycleFile, Size,
// EnoughChunk, GetState, and lifecycle start/stop. It owns the mutex, the
// two free lists, and the monotonically increasing file-number counter.
//
// A FilePool is constructed with New and brought up with Initialize; it
// must not be used before Initialize returns successfully, and must not be
// reused after Stop.
type FilePool struct {
	id uuid.UUID

	fs       filesystem.FileSystem
	throttle throttle.Throttle

	sleeperClean sleeper.Sleeper

	opts FilePoolOptions

	// mu guards dirtyChunks, cleanChunks, chunkNum, and the format
	// worker pool's group/cancel handle. cond wakes GetFile waiters
	// whenever either list gains an entry, or the format worker pool
	// finishes.
	mu   sync.Mutex
	cond *sync.Cond

	dirtyChunks []uint64
	cleanChunks []uint64
	chunkNum    uint64

	// formatGroup/formatCancel are the errgroup.Group running the
	// format worker pool and the context.CancelFunc that stops it;
	// both are set once by startFormatting and read by Initialize and
	// StopFormatting, guarded by mu rather than left to run bare since
	// a caller may call StopFormatting concurrently with an in-flight
	// initial format pass.
	formatGroup  *errgroup.Group
	formatCancel context.CancelFunc

	// currentMaxFileNum, formatStat's progress and failure flags, and
	// cleanAlive are atomics: read and written from caller goroutines and
	// both worker pools without holding mu. formatStat.PreAllocateNum is
	// a plain field, set by prepareFormat before any worker starts.
	currentMaxFileNum atomic.Uint64

	formatStat ChunkFormatStat
	cleanAlive atomic.Bool

	wgClean sync.WaitGroup

	initialized atomic.Bool
	failed      atomic.Bool
	stopped     atomic.Bool
}

// New constructs a FilePool over fs with opts. It does not touch the disk;
// call Initialize to perform manifest reconciliation and the directory
// scan.
//
// Every FilePool is tagged with a random instance ID (google/uuid) for log
// labeling; see the %s verb in this package's log and error messages.
// Metrics labels its series by the name passed to NewMetrics, not by this
// ID.
func New(fs filesystem.FileSystem, opts FilePoolOptions) *FilePool {
	if opts.BlockSize == 0 {
		opts.BlockSize = kDefaultBlockSize
	}
	p := &FilePool{
		id:           uuid.New(),
		fs:           fs,
		opts:         opts,
		throttle:     throttle.NewIOPSThrottle(opts.IOPS4Clean),
		sleeperClean: sleeper.New(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// ID returns the pool's random instance tag.
func (p *FilePool) ID() uuid.UUID {
	return p.id
}

// Initialize performs manifest reconciliation, the directory scan, and (if
// the pool is under-provisioned) starts the format worker pool; it also
// starts the clean worker if NeedClean is configured (lifecycle:
// Uninitialized -> Initializing -> (Ready | Failed) -> Formatting -> Ready).
//
// Initialize fails fast (ManifestMissingOrCorrupt, ScanError, DiskFull,
// Validation) rather than leaving the pool half-usable; a failed pool must
// be discarded.
func (p *FilePool) Initialize() error {
	if err := p.opts.Validate(); err != nil {
		p.failed.Store(true)
		return err
	}

	if !p.opts.GetFileFromPool {
		p.initialized.Store(true)
		return nil
	}

	if err := p.reconcileManifest(); err != nil {
		p.failed.Store(true)
		return err
	}

	p.mu.Lock()
	err := p.scanInternal()
	p.mu.Unlock()
	if err != nil {
		p.failed.Store(true)
		return err
	}

	if err := p.prepareFormat(); err != nil {
		p.failed.Store(true)
		return err
	}

	// Initialize blocks until the initial formatting pass finishes: by
	// the time it returns, the directory holds every file the pool was
	// asked to pre-create. The Formatting -> Ready transition happens
	// here, synchronously, for the startup case.
	p.startFormatting()
	p.mu.Lock()
	group := p.formatGroup
	p.mu.Unlock()
	if group != nil {
		// The error itself is already reflected in formatStat via
		// setWrong; group.Wait's return value only tells us whether
		// to stop waiting, not what went wrong.
		_ = group.Wait()
	}
	if p.formatStat.IsWrong() {
		p.failed.Store(true)
		return errFormatFailed("pool %s: format worker pool failed during initial formatting", p.id)
	}

	if p.opts.NeedClean {
		p.startCleaning()
	}

	p.initialized.Store(true)
	return nil
}

// reconcileManifest reads the pool's manifest, creating one from the
// current options if none exists yet, and resets (ChunkSize, MetaPageSize,
// BlockSize) to the manifest's values on mismatch, logging the reset. A
// pool configured without MetaPath skips the manifest entirely.
func (p *FilePool) reconcileManifest() error {
	path := p.opts.MetaPath
	if path == "" {
		return nil
	}

	if !p.fs.FileExists(path) {
		meta := FilePoolMeta{
			ChunkSize:    uint32(p.opts.FileSize),
			MetaPageSize: uint32(p.opts.MetaPageSize),
			BlockSize:    uint32(p.opts.BlockSize),
			HasBlockSize: true,
			FilePoolPath: p.opts.FilePoolDir,
		}
		return EncodeManifest(p.fs, path, meta)
	}

	meta, err := DecodeManifest(p.fs, path)
	if err != nil {
		return err
	}

	if uint64(meta.ChunkSize) != p.opts.FileSize ||
		uint64(meta.MetaPageSize) != p.opts.MetaPageSize ||
		(meta.HasBlockSize && uint64(meta.BlockSize) != p.opts.BlockSize) {
		log.Printf("chunkfilepool %s: manifest %s disagrees with configured options (chunkSize=%d/%d metaPageSize=%d/%d blockSize=%d/%d); resetting runtime options to the manifest's values",
			p.id, path, meta.ChunkSize, p.opts.FileSize, meta.MetaPageSize, p.opts.MetaPageSize, meta.BlockSize, p.opts.BlockSize)
		p.opts.FileSize = uint64(meta.ChunkSize)
		p.opts.MetaPageSize = uint64(meta.MetaPageSize)
		if meta.HasBlockSize {
			p.opts.BlockSize = uint64(meta.BlockSize)
		}
	}
	return nil
}

// GetFilePoolOpt returns the pool's reconciled runtime options, i.e. the
// values Initialize settled on after manifest reconciliation rather than
// whatever was originally passed to New. The chunkserver bootstrap uses
// this to discover the effective fileSize/blockSize after a manifest
// mismatch.
func (p *FilePool) GetFilePoolOpt() FilePoolOptions {
	return p.opts
}

// FormatStat exposes the format worker pool's progress and failure flag.
// It is primarily meant for Metrics and the WaitForFormatDone test hook; most
// callers should use GetState or wait on GetFile instead.
func (p *FilePool) FormatStat() *ChunkFormatStat {
	return &p.formatStat
}

// claim removes one file from the pool (or creates one on demand, when the
// pool is disabled) and returns its path, numeric id, whether it is tracked
// by the pool's free lists, and whether it currently carries the .clean
// suffix on disk.
func (p *FilePool) claim(ctx context.Context, needClean bool) (path string, id uint64, tracked, isClean bool, err error) {
	if !p.opts.GetFileFromPool {
		id = p.currentMaxFileNum.Add(1) - 1
		path = p.dirtyPath(id)
		if err := p.allocateChunk(path); err != nil {
			return "", 0, false, false, err
		}
		return path, id, false, false, nil
	}

	p.mu.Lock()
	for len(p.dirtyChunks) == 0 && len(p.cleanChunks) == 0 && !p.formatStat.done() {
		p.cond.Wait()
	}

	var fromClean bool
	switch {
	case !needClean && len(p.dirtyChunks) > 0:
		id = popTail(&p.dirtyChunks)
	case !needClean && len(p.cleanChunks) > 0:
		id = popTail(&p.cleanChunks)
		fromClean = true
	case needClean && len(p.cleanChunks) > 0:
		id = popTail(&p.cleanChunks)
		fromClean = true
	case needClean && len(p.dirtyChunks) > 0:
		id = popTail(&p.dirtyChunks)
	default:
		p.mu.Unlock()
		return "", 0, true, false, errExhausted("pool %s: both free lists empty and formatting complete", p.id)
	}
	p.mu.Unlock()

	if fromClean {
		return p.cleanPath(id), id, true, true, nil
	}

	if needClean {
		// The only file available was dirty but the caller needs
		// clean: promote it via the fast zero-range path.
		if err := p.cleanChunk(ctx, id, true); err != nil {
			p.mu.Lock()
			p.dirtyChunks = append(p.dirtyChunks, id)
			p.mu.Unlock()
			p.cond.Broadcast()
			return "", 0, true, false, err
		}
		return p.cleanPath(id), id, true, true, nil
	}
	return p.dirtyPath(id), id, true, false, nil
}

func popTail(list *[]uint64) uint64 {
	n := len(*list)
	id := (*list)[n-1]
	*list = (*list)[:n-1]
	return id
}

// reinsertOrphan pushes id back into the appropriate free list after a
// claimed-but-unused file is abandoned mid-GetFile. isClean must match the
// file's current on-disk name. Untracked files (pool disabled) have no
// list to rejoin.
//
// Without this, a rename that loses a race to a concurrent GetFile call
// targeting the same path would abandon the prepared file under its
// orphaned number forever, instead of returning it to the free lists.
func (p *FilePool) reinsertOrphan(tracked, isClean bool, id uint64) {
	if !tracked {
		return
	}
	p.mu.Lock()
	if isClean {
		p.cleanChunks = append(p.cleanChunks, id)
	} else {
		p.dirtyChunks = append(p.dirtyChunks, id)
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// GetFile claims a file from the pool (or creates one on demand when the
// pool is disabled), stamps it with metapage, and renames it into place at
// target using no-replace semantics.
//
// A rename that observes the target already present returns TargetExists
// immediately, without retrying; every other failure is retried up to
// RetryTimes.
func (p *FilePool) GetFile(ctx context.Context, target string, metapage []byte, needClean bool) error {
	retries := p.opts.RetryTimes
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		srcpath, id, tracked, isClean, err := p.claim(ctx, needClean)
		if err != nil {
			lastErr = err
			continue
		}

		if err := p.writeMetaPage(srcpath, metapage); err != nil {
			p.reinsertOrphan(tracked, isClean, id)
			lastErr = err
			continue
		}

		err = p.fs.Rename(srcpath, target, filesystem.RenameNoReplace)
		if err == nil {
			return nil
		}
		if filesystem.IsExist(err) {
			p.reinsertOrphan(tracked, isClean, id)
			return errTargetExists("getfile: target %s already exists", target)
		}
		p.reinsertOrphan(tracked, isClean, id)
		lastErr = errIO("getfile: rename %s -> %s: %v", srcpath, target, err)
	}
	if lastErr == nil {
		lastErr = errExhausted("getfile: exhausted retries")
	}
	return lastErr
}

// RecycleFile returns a retired chunk/segment file to the pool. When the
// pool is disabled it simply deletes chunkpath. When enabled it validates
// the file's size, renames it into the pool directory under a fresh file
// number, and reinserts it into dirtyChunks.
func (p *FilePool) RecycleFile(chunkpath string) error {
	if !p.opts.GetFileFromPool {
		return p.fs.Delete(chunkpath)
	}

	f, err := p.fs.Open(chunkpath, false)
	if err != nil {
		return p.fs.Delete(chunkpath)
	}
	info, statErr := f.Stat()
	f.Close()
	if statErr != nil || info.SizeBytes != p.opts.fileBodySize() {
		return p.fs.Delete(chunkpath)
	}

	newNum := p.currentMaxFileNum.Add(1)
	target := p.dirtyPath(newNum)
	if err := p.fs.Rename(chunkpath, target, filesystem.RenameReplace); err != nil {
		return errIO("recycle %s: rename to %s: %v", chunkpath, target, err)
	}

	p.mu.Lock()
	p.dirtyChunks = append(p.dirtyChunks, newNum)
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}

// Size returns the number of files currently free in the pool (dirty +
// clean).
func (p *FilePool) Size() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(len(p.dirtyChunks) + len(p.cleanChunks))
}

// EnoughChunk reports whether Size is at or above the configured
// ChunkReserved low watermark.
func (p *FilePool) EnoughChunk() bool {
	return p.Size() >= p.opts.ChunkReserved
}

// GetState returns a snapshot of the pool's free-list accounting.
func (p *FilePool) GetState() FilePoolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	dirty := uint64(len(p.dirtyChunks))
	clean := uint64(len(p.cleanChunks))
	return FilePoolState{
		ChunkSize:              p.opts.FileSize,
		MetaPageSize:           p.opts.MetaPageSize,
		BlockSize:              p.opts.BlockSize,
		ChunkNum:               p.chunkNum,
		DirtyChunksLeft:        dirty,
		CleanChunksLeft:        clean,
		PreallocatedChunksLeft: dirty + clean,
	}
}

// Lifecycle reports the pool's coarse state. It is derived from the pool's
// atomic flags and format progress rather than stored explicitly, so it
// can never drift out of sync with them.
func (p *FilePool) Lifecycle() Lifecycle {
	if p.failed.Load() {
		return Failed
	}
	if p.stopped.Load() {
		return Stopped
	}
	if !p.initialized.Load() {
		return Uninitialized
	}
	if p.formatStat.PreAllocateNum > 0 && !p.formatStat.done() {
		return Formatting
	}
	return Ready
}

// StartCleaning idempotently (re)starts the clean worker, if NeedClean is
// configured.
func (p *FilePool) StartCleaning() {
	p.startCleaning()
}

// StopCleaning idempotently stops the clean worker and waits for it to
// drain: interrupts the sleeper, then joins.
func (p *FilePool) StopCleaning() {
	if !p.cleanAlive.CompareAndSwap(true, false) {
		return
	}
	p.sleeperClean.Stop()
	p.wgClean.Wait()
}

// StopFormatting stops the format worker pool, if one is running, and waits
// for every peer to drain. Cancelling the group's shared context wakes any
// worker currently sleeping between allocations; a syscall already in
// flight is allowed to finish. Safe to call even if formatting already
// finished on its own, or was never started.
func (p *FilePool) StopFormatting() {
	p.mu.Lock()
	cancel := p.formatCancel
	group := p.formatGroup
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if group != nil {
		_ = group.Wait()
	}
}

// Stop halts both background workers, drains them, and clears the free
// lists. A stopped FilePool must not be reused.
func (p *FilePool) Stop() {
	p.StopFormatting()
	p.StopCleaning()
	p.mu.Lock()
	p.dirtyChunks = nil
	p.cleanChunks = nil
	p.mu.Unlock()
	p.stopped.Store(true)
}
