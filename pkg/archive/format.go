// Package archive parses and unpacks the archive formats JDK vendors ship:
// ZIP, TAR and gzip-compressed TAR.
//
// # Parsers
//
// Archives are read fully into memory. The ZIP reader locates the
// end-of-central-directory record by scanning backward, walks the central
// directory and re-reads each local header before inflating. The TAR reader
// walks 512-byte header blocks and understands GNU long names and PAX
// extended headers (per-entry and global).
//
// # Safety
//
// Entry names are never trusted. Every name is normalized and validated
// ([CheckName]) and resolved against a canonical root ([Root.Resolve])
// before any byte is written. ZIP entries that are encrypted, symlinked or
// use a compression method other than store or deflate are rejected. The
// strict TAR walker accepts regular files and directories only.
//
// ZIP64 is not supported: entries over 4 GiB or archives with more than
// 65535 entries fail with CORRUPT_ARCHIVE.
package archive

import (
	"path/filepath"
	"strings"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// Format identifies an archive container.
type Format string

const (
	Zip   Format = "zip"
	Tar   Format = "tar"
	TarGz Format = "tar.gz"
)

// Formats lists the supported formats.
var Formats = []Format{Zip, Tar, TarGz}

// ParseFormat parses an explicit format hint. Accepted spellings include
// "zip", "tar", "tar.gz", "tgz" and "targz".
func ParseFormat(hint string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hint), ".")) {
	case "zip":
		return Zip, nil
	case "tar":
		return Tar, nil
	case "tar.gz", "tgz", "targz", "tar+gzip":
		return TarGz, nil
	}
	return "", errors.New(errors.ErrCodeFormatDetection, "unknown archive format %q (want %s)", hint, FormatNames())
}

// Detect determines the format of the archive at path. A non-empty hint
// takes precedence over the file extension.
func Detect(path, hint string) (Format, error) {
	if strings.TrimSpace(hint) != "" {
		return ParseFormat(hint)
	}
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".tgz") {
		return TarGz, nil
	}
	for _, f := range Formats {
		if strings.HasSuffix(name, f.Extension()) {
			return f, nil
		}
	}
	return "", errors.New(errors.ErrCodeFormatDetection, "cannot determine archive format of %s", filepath.Base(path))
}

// FormatNames returns the supported formats as a comma-separated list.
func FormatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case TarGz:
		return ".tar.gz"
	case Tar:
		return ".tar"
	case Zip:
		return ".zip"
	}
	return ""
}

// String implements fmt.Stringer.
func (f Format) String() string { return string(f) }
