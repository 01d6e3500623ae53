package filepool

// AllocatedKind selects one of the built-in IsAllocatedPredicate
// classifiers, or Custom to supply one at runtime. Modeled as a tagged
// variant rather than a bare function type so that configuration loaded
// from JSON (pkg/config) stays data-describable.
type AllocatedKind int

const (
	// ChunkOrSnapshot treats any purely-numeric name as an allocated
	// chunk or snapshot file.
	ChunkOrSnapshot AllocatedKind = iota
	// ChunkOrSnapshotOrWal additionally treats names carrying a
	// "wal_" prefix as allocated.
	ChunkOrSnapshotOrWal
	// Custom defers to IsAllocatedPredicate.Custom.
	Custom
)

// IsAllocatedPredicate classifies a directory entry name as "counts toward
// chunkNum" during CountAllocatedNum's recursive walk of copysetDir and
// recycleDir.
type IsAllocatedPredicate struct {
	Kind   AllocatedKind
	Custom func(name string) bool
}

// Evaluate applies the predicate to name.
func (p IsAllocatedPredicate) Evaluate(name string) bool {
	switch p.Kind {
	case ChunkOrSnapshot:
		return isAllDigits(trimSnapshotSuffix(name))
	case ChunkOrSnapshotOrWal:
		if hasWalPrefix(name) {
			return true
		}
		return isAllDigits(trimSnapshotSuffix(name))
	case Custom:
		if p.Custom == nil {
			return false
		}
		return p.Custom(name)
	default:
		return false
	}
}

func trimSnapshotSuffix(name string) string {
	const suffix = ".snapshot"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}

func hasWalPrefix(name string) bool {
	const prefix = "wal_"
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// kDefaultBlockSize is substituted for legacy manifests that omit
// blockSize.
const kDefaultBlockSize = 4096

// Default pacing constants for the clean worker.
const (
	kSuccessSleepMsec = 10
	kFailSleepMsec    = 500
)

// FilePoolOptions is the runtime configuration of a FilePool. None of it is
// persisted; the subset that must agree with the manifest (ChunkSize,
// MetaPageSize, BlockSize) is reconciled against it during Initialize.
type FilePoolOptions struct {
	// GetFileFromPool selects pool-backed allocation (true) versus
	// create-on-demand (false).
	GetFileFromPool bool

	// FilePoolDir is the flat directory holding pre-allocated files.
	FilePoolDir string
	// MetaPath is the path of the persisted 4096-byte manifest.
	MetaPath string

	// FileSize is the payload-region size of every pool file, in bytes.
	FileSize uint64
	// MetaPageSize is the header-region size of every pool file.
	MetaPageSize uint64
	// BlockSize is the alignment unit recorded in the manifest. Zero
	// means "use kDefaultBlockSize".
	BlockSize uint64
	// MetaFileSize is the manifest region size; always 4096 in
	// practice, but kept configurable.
	MetaFileSize uint64

	// FilePoolSize is the target pool size in bytes, used directly
	// unless AllocatedByPercent is set.
	FilePoolSize uint64
	// AllocatedByPercent switches FormatWorker's sizing to
	// total*AllocatedPercent/100 instead of FilePoolSize.
	AllocatedByPercent bool
	// AllocatedPercent is the percentage of disk capacity to target
	// when AllocatedByPercent is true.
	AllocatedPercent uint64

	// FormatThreadNum is the number of parallel FormatWorker peers.
	FormatThreadNum int
	// FormatIntervalMsec paces each format worker between file
	// creations.
	FormatIntervalMsec int

	// ChunkReserved is the low watermark EnoughChunk compares Size()
	// against.
	ChunkReserved uint64

	// NeedClean enables the CleanWorker and the GetFile clean-promotion
	// path.
	NeedClean bool
	// BytesPerWrite is the chunk size CleanChunk's slow zero-fill path
	// writes and fsyncs at a time; must be in [1, 1048576] and a
	// multiple of 4096.
	BytesPerWrite uint64
	// IOPS4Clean is the throttle budget (events/sec) CleanChunk charges
	// against during the slow zero-fill path. Zero means unthrottled.
	IOPS4Clean int

	// RetryTimes bounds GetFile's retry loop.
	RetryTimes int

	// CopysetDir and RecycleDir are walked by CountAllocatedNum during
	// the startup scan to account for chunks already claimed by the
	// data store or awaiting trash collection.
	CopysetDir string
	RecycleDir string

	// IsAllocated classifies entries under CopysetDir/RecycleDir as
	// counting toward chunkNum.
	IsAllocated IsAllocatedPredicate
}

// Validate checks the subset of options that are fatal to leave
// unchecked at startup.
func (o FilePoolOptions) Validate() error {
	if o.BytesPerWrite < 1 || o.BytesPerWrite > 1048576 {
		return errValidation("bytesPerWrite %d out of range [1, 1048576]", o.BytesPerWrite)
	}
	if o.BytesPerWrite%4096 != 0 {
		return errValidation("bytesPerWrite %d is not a multiple of 4096", o.BytesPerWrite)
	}
	return nil
}

func (o FilePoolOptions) bytesPerPage() uint64 {
	return o.FileSize + o.MetaFileSize
}

func (o FilePoolOptions) fileBodySize() uint64 {
	return o.FileSize + o.MetaPageSize
}
