package archive

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"io/fs"

	"github.com/klauspost/compress/flate"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

const (
	zipEOCDSignature    = 0x06054b50
	zipCentralSignature = 0x02014b50
	zipLocalSignature   = 0x04034b50

	zipEOCDSize       = 22
	zipCentralSize    = 46
	zipLocalSize      = 30
	zipMaxCommentSize = 0xFFFF

	// ZIP64 sentinels.
	zip32Max = 0xFFFFFFFF
	zip16Max = 0xFFFF

	zipFlagEncrypted = 0x1
	zipDOSDirectory  = 0x10

	// Compression methods.
	ZipStore   = 0
	ZipDeflate = 8

	unixTypeMask    = 0o170000
	unixTypeDir     = 0o040000
	unixTypeSymlink = 0o120000
)

// ZipEntry is one central-directory record. Its fields come straight from
// the archive and are not trusted for destination paths.
type ZipEntry struct {
	Name               string
	Method             uint16
	Flags              uint16
	CRC32              uint32
	CompressedSize     uint32
	UncompressedSize   uint32
	ExternalAttributes uint32
	LocalHeaderOffset  uint32
	IsDirectory        bool
}

// unixMode returns the Unix mode stored in the high 16 bits of the
// external attributes.
func (e ZipEntry) unixMode() uint32 { return e.ExternalAttributes >> 16 }

// Encrypted reports whether general-purpose bit 0 is set.
func (e ZipEntry) Encrypted() bool { return e.Flags&zipFlagEncrypted != 0 }

// Symlink reports whether the Unix file-type bits mark a symbolic link.
func (e ZipEntry) Symlink() bool { return e.unixMode()&unixTypeMask == unixTypeSymlink }

// Mode returns the permission bits stored in the entry, or 0 if none.
func (e ZipEntry) Mode() fs.FileMode { return fs.FileMode(e.unixMode() & 0o777) }

// Check rejects entries this reader refuses to materialize: encrypted,
// symlinked, or compressed with anything but store or deflate.
func (e ZipEntry) Check() error {
	switch {
	case e.Encrypted():
		return errors.New(errors.ErrCodeUnsupportedEntry, "zip entry %q is encrypted", e.Name)
	case e.Symlink():
		return errors.New(errors.ErrCodeUnsupportedEntry, "zip entry %q is a symbolic link", e.Name)
	case e.Method != ZipStore && e.Method != ZipDeflate:
		return errors.New(errors.ErrCodeUnsupportedEntry, "zip entry %q uses unsupported compression method %d", e.Name, e.Method)
	}
	return nil
}

// isZipDirectory applies the three directory tests: trailing slash, Unix
// directory bit, DOS directory attribute.
func isZipDirectory(name string, external uint32) bool {
	if len(name) > 0 && (name[len(name)-1] == '/' || name[len(name)-1] == '\\') {
		return true
	}
	if (external>>16)&unixTypeMask == unixTypeDir {
		return true
	}
	return external&zipDOSDirectory != 0
}

// findEOCD scans backward for the end-of-central-directory signature.
// The window covers the largest possible archive comment.
func findEOCD(data []byte) (int, error) {
	if len(data) < zipEOCDSize {
		return 0, errors.New(errors.ErrCodeCorruptArchive, "zip: file too small (%d bytes)", len(data))
	}
	stop := max(len(data)-zipEOCDSize-zipMaxCommentSize, 0)
	for i := len(data) - zipEOCDSize; i >= stop; i-- {
		if binary.LittleEndian.Uint32(data[i:]) == zipEOCDSignature {
			return i, nil
		}
	}
	return 0, errors.New(errors.ErrCodeCorruptArchive, "zip: end of central directory not found")
}

// ParseZip reads the central directory of an in-memory ZIP archive.
// Entries are returned in central-directory order. No entry is validated;
// call [ZipEntry.Check] and [CheckName] before materializing.
func ParseZip(data []byte) ([]ZipEntry, error) {
	eocd, err := findEOCD(data)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	total := le.Uint16(data[eocd+10:])
	cdSize := le.Uint32(data[eocd+12:])
	cdOffset := le.Uint32(data[eocd+16:])
	if total == zip16Max || cdSize == zip32Max || cdOffset == zip32Max {
		return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: ZIP64 archives are not supported")
	}
	if int64(cdOffset)+int64(cdSize) > int64(eocd) {
		return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: central directory out of bounds")
	}

	entries := make([]ZipEntry, 0, total)
	off := int(cdOffset)
	for i := 0; i < int(total); i++ {
		if off+zipCentralSize > eocd {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: central directory entry %d truncated", i)
		}
		h := data[off:]
		if le.Uint32(h) != zipCentralSignature {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: bad central directory signature at offset %d", off)
		}
		nameLen := int(le.Uint16(h[28:]))
		extraLen := int(le.Uint16(h[30:]))
		commentLen := int(le.Uint16(h[32:]))
		end := off + zipCentralSize + nameLen + extraLen + commentLen
		if end > eocd {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: central directory entry %d overruns directory", i)
		}
		name := string(h[zipCentralSize : zipCentralSize+nameLen])
		e := ZipEntry{
			Name:               name,
			Flags:              le.Uint16(h[8:]),
			Method:             le.Uint16(h[10:]),
			CRC32:              le.Uint32(h[16:]),
			CompressedSize:     le.Uint32(h[20:]),
			UncompressedSize:   le.Uint32(h[24:]),
			ExternalAttributes: le.Uint32(h[38:]),
			LocalHeaderOffset:  le.Uint32(h[42:]),
		}
		if e.CompressedSize == zip32Max || e.UncompressedSize == zip32Max || e.LocalHeaderOffset == zip32Max {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: entry %q requires ZIP64, which is not supported", name)
		}
		e.IsDirectory = isZipDirectory(name, e.ExternalAttributes)
		entries = append(entries, e)
		off = end
	}
	return entries, nil
}

// ReadZipEntry returns the uncompressed contents of e. The local header is
// re-read to locate the data, and the result is checked against the
// declared size and CRC-32.
func ReadZipEntry(data []byte, e ZipEntry) ([]byte, error) {
	if err := e.Check(); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	off := int64(e.LocalHeaderOffset)
	if off+zipLocalSize > int64(len(data)) {
		return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: local header of %q out of bounds", e.Name)
	}
	h := data[off:]
	if le.Uint32(h) != zipLocalSignature {
		return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: bad local header signature for %q", e.Name)
	}
	start := off + zipLocalSize + int64(le.Uint16(h[26:])) + int64(le.Uint16(h[28:]))
	end := start + int64(e.CompressedSize)
	if end > int64(len(data)) {
		return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: data of %q out of bounds", e.Name)
	}
	raw := data[start:end]

	var out []byte
	switch e.Method {
	case ZipStore:
		if e.CompressedSize != e.UncompressedSize {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: stored entry %q has mismatched sizes", e.Name)
		}
		out = raw
	case ZipDeflate:
		r := flate.NewReader(bytes.NewReader(raw))
		defer r.Close()
		buf := bytes.NewBuffer(make([]byte, 0, e.UncompressedSize))
		// Read one byte past the declared size to detect overlong streams.
		if _, err := io.Copy(buf, io.LimitReader(r, int64(e.UncompressedSize)+1)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorruptArchive, err, "zip: inflate %q", e.Name)
		}
		out = buf.Bytes()
	}

	if int64(len(out)) != int64(e.UncompressedSize) {
		return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: %q inflated to %d bytes, expected %d", e.Name, len(out), e.UncompressedSize)
	}
	if crc32.ChecksumIEEE(out) != e.CRC32 {
		return nil, errors.New(errors.ErrCodeCorruptArchive, "zip: CRC-32 mismatch for %q", e.Name)
	}
	return out, nil
}
