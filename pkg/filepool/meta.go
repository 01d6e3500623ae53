package filepool

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"hash/crc32"

	"github.com/curvebs/chunkfilepool/pkg/filesystem"
)

// metaFileSize is the persisted manifest's fixed on-disk size.
// FilePoolOptions.MetaFileSize is expected to equal this in practice; the
// constant exists so Encode/Decode don't depend on the runtime options
// matching before they've even been reconciled.
const metaFileSize = 4096

// poolMagic is mixed into the manifest's CRC so that a file that happens to
// parse as valid JSON but was never written by this pool is still rejected.
var poolMagic = []byte("CURVE_CHUNKFILEPOOL")

// FilePoolMeta is the pool's persisted on-disk descriptor.
type FilePoolMeta struct {
	ChunkSize    uint32
	MetaPageSize uint32
	// BlockSize is only meaningful when HasBlockSize is true; legacy
	// manifests omit it entirely.
	BlockSize    uint32
	HasBlockSize bool
	FilePoolPath string
}

type manifestJSON struct {
	ChunkSize    uint32  `json:"chunkSize"`
	MetaPageSize uint32  `json:"metaPageSize"`
	BlockSize    *uint32 `json:"blockSize,omitempty"`
	FilePoolPath string  `json:"chunkfilepool_path"`
	CRC          uint32  `json:"crc"`
}

func (m FilePoolMeta) crc() uint32 {
	var buf bytes.Buffer
	buf.Write(poolMagic)
	binary.Write(&buf, binary.LittleEndian, m.ChunkSize)
	binary.Write(&buf, binary.LittleEndian, m.MetaPageSize)
	if m.HasBlockSize {
		binary.Write(&buf, binary.LittleEndian, m.BlockSize)
	}
	buf.WriteString(m.FilePoolPath)
	return crc32.ChecksumIEEE(buf.Bytes())
}

// EncodeManifest writes meta to path as a pretty-printed JSON document
// NUL-padded to exactly metaFileSize bytes. The destination is opened
// create+read-write and every write is followed by Fsync so the manifest
// is durable by the time Encode returns.
func EncodeManifest(fs filesystem.FileSystem, path string, meta FilePoolMeta) error {
	doc := manifestJSON{
		ChunkSize:    meta.ChunkSize,
		MetaPageSize: meta.MetaPageSize,
		FilePoolPath: meta.FilePoolPath,
		CRC:          meta.crc(),
	}
	if meta.HasBlockSize {
		bs := meta.BlockSize
		doc.BlockSize = &bs
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errManifestCorrupt("encode manifest: %v", err)
	}
	if len(body) > metaFileSize {
		return errManifestCorrupt("encoded manifest (%d bytes) exceeds metaFileSize", len(body))
	}

	buf := make([]byte, metaFileSize)
	copy(buf, body)

	f, err := fs.Open(path, true)
	if err != nil {
		return errIO("open manifest %s: %v", path, err)
	}
	defer f.Close()

	n, err := f.WriteAt(buf, 0)
	if err != nil {
		return errIO("write manifest %s: %v", path, err)
	}
	if n != len(buf) {
		return errIO("short write on manifest %s: wrote %d of %d bytes", path, n, len(buf))
	}
	if err := f.Fsync(); err != nil {
		return errIO("fsync manifest %s: %v", path, err)
	}
	return nil
}

// DecodeManifest reads exactly metaFileSize bytes from path, parses the
// JSON object stopping at the first NUL byte, and validates its CRC. A
// missing blockSize key decodes with HasBlockSize=false and BlockSize
// substituted with kDefaultBlockSize; the substituted value is excluded
// from CRC recomputation so it matches what the encoder produced for a
// legacy manifest.
func DecodeManifest(fs filesystem.FileSystem, path string) (FilePoolMeta, error) {
	f, err := fs.Open(path, false)
	if err != nil {
		return FilePoolMeta{}, errManifestCorrupt("open manifest %s: %v", path, err)
	}
	defer f.Close()

	buf := make([]byte, metaFileSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return FilePoolMeta{}, errManifestCorrupt("read manifest %s: %v", path, err)
	}

	if nul := bytes.IndexByte(buf, 0); nul >= 0 {
		buf = buf[:nul]
	}

	var doc manifestJSON
	if err := json.Unmarshal(buf, &doc); err != nil {
		return FilePoolMeta{}, errManifestCorrupt("parse manifest %s: %v", path, err)
	}

	meta := FilePoolMeta{
		ChunkSize:    doc.ChunkSize,
		MetaPageSize: doc.MetaPageSize,
		FilePoolPath: doc.FilePoolPath,
	}
	if doc.BlockSize != nil {
		meta.HasBlockSize = true
		meta.BlockSize = *doc.BlockSize
	} else {
		meta.HasBlockSize = false
		meta.BlockSize = kDefaultBlockSize
	}

	if got := meta.crc(); got != doc.CRC {
		return FilePoolMeta{}, errManifestCorrupt("manifest %s: crc mismatch (stored %#x, computed %#x)", path, doc.CRC, got)
	}
	return meta, nil
}
