// Package config loads the chunkfilepoold bootstrap's JSON configuration
// file into filepool.FilePoolOptions using plain Go structs decoded with
// encoding/json.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/curvebs/chunkfilepool/pkg/filepool"
)

// PoolConfig is the on-disk description of a single named file pool.
type PoolConfig struct {
	GetFileFromPool bool   `json:"getFileFromPool"`
	FilePoolDir     string `json:"filePoolDir"`
	MetaPath        string `json:"metaPath"`

	FileSize     uint64 `json:"fileSize"`
	MetaPageSize uint64 `json:"metaPageSize"`
	BlockSize    uint64 `json:"blockSize"`
	MetaFileSize uint64 `json:"metaFileSize"`

	FilePoolSize       uint64 `json:"filePoolSize"`
	AllocatedByPercent bool   `json:"allocatedByPercent"`
	AllocatedPercent   uint64 `json:"allocatedPercent"`

	FormatThreadNum    int `json:"formatThreadNum"`
	FormatIntervalMsec int `json:"formatIntervalMsec"`

	ChunkReserved uint64 `json:"chunkReserved"`

	NeedClean     bool   `json:"needClean"`
	BytesPerWrite uint64 `json:"bytesPerWrite"`
	IOPS4Clean    int    `json:"iops4Clean"`

	RetryTimes int `json:"retryTimes"`

	CopysetDir string `json:"copysetDir"`
	RecycleDir string `json:"recycleDir"`

	// IsAllocated selects one of filepool's built-in AllocatedKind
	// classifiers by name: "chunk_or_snapshot" (default) or
	// "chunk_or_snapshot_or_wal".
	IsAllocated string `json:"isAllocated"`
}

// ApplicationConfiguration is chunkfilepoold's top-level configuration
// document. Wal is optional; when absent the WAL pool aliases the chunk
// pool, matching a useChunkFilePoolAsWalPool=true default.
type ApplicationConfiguration struct {
	Chunk PoolConfig  `json:"chunk"`
	Wal   *PoolConfig `json:"wal,omitempty"`

	// MetricsListenAddress is the address chunkfilepoold serves
	// Prometheus /metrics on. Empty disables the metrics server.
	MetricsListenAddress string `json:"metricsListenAddress"`
}

// LoadFromFile reads and parses path as an ApplicationConfiguration.
func LoadFromFile(path string) (ApplicationConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration %s: %w", path, err)
	}
	var cfg ApplicationConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ApplicationConfiguration{}, fmt.Errorf("parse configuration %s: %w", path, err)
	}
	return cfg, nil
}

// ToOptions converts c into filepool.FilePoolOptions. MetaFileSize
// defaults to 4096 when left unset.
func (c PoolConfig) ToOptions() filepool.FilePoolOptions {
	metaFileSize := c.MetaFileSize
	if metaFileSize == 0 {
		metaFileSize = 4096
	}
	return filepool.FilePoolOptions{
		GetFileFromPool:    c.GetFileFromPool,
		FilePoolDir:        c.FilePoolDir,
		MetaPath:           c.MetaPath,
		FileSize:           c.FileSize,
		MetaPageSize:       c.MetaPageSize,
		BlockSize:          c.BlockSize,
		MetaFileSize:       metaFileSize,
		FilePoolSize:       c.FilePoolSize,
		AllocatedByPercent: c.AllocatedByPercent,
		AllocatedPercent:   c.AllocatedPercent,
		FormatThreadNum:    c.FormatThreadNum,
		FormatIntervalMsec: c.FormatIntervalMsec,
		ChunkReserved:      c.ChunkReserved,
		NeedClean:          c.NeedClean,
		BytesPerWrite:      c.BytesPerWrite,
		IOPS4Clean:         c.IOPS4Clean,
		RetryTimes:         c.RetryTimes,
		CopysetDir:         c.CopysetDir,
		RecycleDir:         c.RecycleDir,
		IsAllocated:        resolvePredicate(c.IsAllocated),
	}
}

func resolvePredicate(name string) filepool.IsAllocatedPredicate {
	if name == "chunk_or_snapshot_or_wal" {
		return filepool.IsAllocatedPredicate{Kind: filepool.ChunkOrSnapshotOrWal}
	}
	return filepool.IsAllocatedPredicate{Kind: filepool.ChunkOrSnapshot}
}

// ResolveWal returns the WAL pool's options. aliasesChunk reports whether
// the caller should reuse the already-constructed chunk *filepool.FilePool
// instead of constructing a second one.
func (c ApplicationConfiguration) ResolveWal() (opts filepool.FilePoolOptions, aliasesChunk bool) {
	if c.Wal == nil {
		return c.Chunk.ToOptions(), true
	}
	return c.Wal.ToOptions(), false
}
