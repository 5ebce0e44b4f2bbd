package archive

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

const (
	defaultDirMode  fs.FileMode = 0o755
	defaultFileMode fs.FileMode = 0o644
)

// Entry is a format-independent view of an archive member.
type Entry struct {
	// Name is the raw name stored in the archive.
	Name string
	Size int64
	Mode fs.FileMode
	Dir  bool
	// Kind is "file", "dir", or a description of the unsupported type.
	Kind string
	// Problem is the validation verdict, nil for a safe entry.
	Problem error
}

// Stats summarizes an unpack.
type Stats struct {
	Files int
	Dirs  int
	Bytes int64
}

// Load reads an archive into memory and decompresses the outer gzip layer
// for TarGz.
func Load(path string, format Format) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read archive")
	}
	if format == TarGz {
		return Gunzip(data)
	}
	return data, nil
}

// Gunzip decompresses a gzip buffer.
func Gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorruptArchive, err, "gzip")
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorruptArchive, err, "gzip")
	}
	return out, nil
}

// List parses the archive at path and returns every entry with its
// validation verdict. Unsupported TAR types are listed, not rejected.
// The returned error covers parse failures only.
func List(path string, format Format) ([]Entry, error) {
	data, err := Load(path, format)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	switch format {
	case Zip:
		zes, err := ParseZip(data)
		if err != nil {
			return nil, err
		}
		for _, ze := range zes {
			e := Entry{Name: ze.Name, Size: int64(ze.UncompressedSize), Mode: ze.Mode(), Dir: ze.IsDirectory, Kind: "file"}
			if e.Dir {
				e.Kind = "dir"
			}
			if ze.Symlink() {
				e.Kind = "symlink"
			}
			if _, err := CheckName(ze.Name); err != nil {
				e.Problem = err
			} else if err := ze.Check(); err != nil {
				e.Problem = err
			}
			entries = append(entries, e)
		}
	case Tar, TarGz:
		err := WalkTar(data, TarOptions{Lenient: true}, func(te TarEntry, _ []byte) error {
			e := Entry{Name: te.Name, Size: te.Size, Mode: te.Mode, Dir: te.IsDir(), Kind: "file"}
			switch {
			case e.Dir:
				e.Kind = "dir"
			case !te.IsRegular():
				e.Kind = typeName(te.Type)
			}
			if _, err := CheckName(te.Name); err != nil {
				e.Problem = err
			} else if !te.IsRegular() && !te.IsDir() {
				e.Problem = errors.New(errors.ErrCodeUnsupportedEntry, "tar entry %q has unsupported type %q", te.Name, e.Kind)
			}
			entries = append(entries, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.ErrCodeFormatDetection, "unsupported format %q", format)
	}
	return entries, nil
}

// ValidateForTool checks every entry of an archive that an external tool
// is about to unpack: names must be relative and traversal-free, and ZIP
// entries must pass [ZipEntry.Check]. TAR symlinks and hard links are left
// to the tool, but their names are still checked.
func ValidateForTool(path string, format Format) error {
	entries, err := List(path, format)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Problem == nil {
			continue
		}
		if format != Zip && errors.Is(e.Problem, errors.ErrCodeUnsupportedEntry) {
			continue
		}
		return e.Problem
	}
	return nil
}

// Unpacker materializes archives entry by entry with the in-process parsers.
type Unpacker struct {
	Logger *log.Logger
}

// Unpack extracts the archive at path into dir, which must exist. Every
// entry is validated before the first byte is written; a single bad entry
// fails the whole archive with nothing written.
func (u *Unpacker) Unpack(path string, format Format, dir string) (Stats, error) {
	root, err := NewRoot(dir)
	if err != nil {
		return Stats{}, err
	}
	data, err := Load(path, format)
	if err != nil {
		return Stats{}, err
	}

	w := &writer{root: root}
	switch format {
	case Zip:
		err = w.zip(data)
	case Tar, TarGz:
		err = w.tar(data)
	default:
		err = errors.New(errors.ErrCodeFormatDetection, "unsupported format %q", format)
	}
	if err != nil {
		return w.stats, err
	}
	if err := w.applyDirModes(); err != nil {
		return w.stats, err
	}
	u.logger().Debug("unpacked archive", "archive", filepath.Base(path), "files", w.stats.Files, "dirs", w.stats.Dirs)
	return w.stats, nil
}

func (u *Unpacker) logger() *log.Logger {
	if u == nil || u.Logger == nil {
		return log.Default()
	}
	return u.Logger
}

type dirMode struct {
	path string
	mode fs.FileMode
}

type writer struct {
	root     *Root
	stats    Stats
	dirModes []dirMode
}

func (w *writer) zip(data []byte) error {
	entries, err := ParseZip(data)
	if err != nil {
		return err
	}
	targets := make([]string, len(entries))
	for i, e := range entries {
		if err := e.Check(); err != nil {
			return err
		}
		if targets[i], err = w.root.Resolve(e.Name); err != nil {
			return err
		}
	}
	for i, e := range entries {
		if e.IsDirectory {
			if err := w.mkdir(targets[i], e.Mode()); err != nil {
				return err
			}
			continue
		}
		body, err := ReadZipEntry(data, e)
		if err != nil {
			return err
		}
		if err := w.writeFile(targets[i], body, e.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) tar(data []byte) error {
	// First pass validates every entry; nothing is written until it passes.
	if err := WalkTar(data, TarOptions{}, func(e TarEntry, _ []byte) error {
		_, err := w.root.Resolve(e.Name)
		return err
	}); err != nil {
		return err
	}
	return WalkTar(data, TarOptions{}, func(e TarEntry, body []byte) error {
		target, err := w.root.Resolve(e.Name)
		if err != nil {
			return err
		}
		mode := fs.FileMode(0)
		if e.HasMode {
			mode = e.Mode
		}
		if e.IsDir() {
			return w.mkdir(target, mode)
		}
		return w.writeFile(target, body, mode)
	})
}

func (w *writer) mkdir(path string, mode fs.FileMode) error {
	if path == w.root.Dir() {
		return nil
	}
	if err := os.MkdirAll(path, defaultDirMode); err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "create directory")
	}
	w.stats.Dirs++
	if mode != 0 {
		w.dirModes = append(w.dirModes, dirMode{path, mode})
	}
	return nil
}

func (w *writer) writeFile(path string, body []byte, mode fs.FileMode) error {
	if path == w.root.Dir() {
		return errors.New(errors.ErrCodePathTraversal, "file entry resolves to the destination root")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "create directory")
	}
	// A directory symlink already present under the root can redirect a
	// lexically safe name elsewhere.
	parent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "resolve directory")
	}
	if !w.root.Contains(parent) {
		return errors.New(errors.ErrCodePathTraversal, "entry %s resolves outside %s", path, w.root.Dir())
	}
	if mode == 0 {
		mode = defaultFileMode
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "create file")
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeExtraction, err, "write file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "write file")
	}
	// OpenFile is subject to umask; the archive's bits are authoritative.
	if err := os.Chmod(path, mode); err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "set file mode")
	}
	w.stats.Files++
	w.stats.Bytes += int64(len(body))
	return nil
}

// applyDirModes sets directory permissions deepest first, after all
// files are written, so read-only directories do not block extraction.
func (w *writer) applyDirModes() error {
	slices.SortFunc(w.dirModes, func(a, b dirMode) int { return len(b.path) - len(a.path) })
	for _, d := range w.dirModes {
		if err := os.Chmod(d.path, d.mode); err != nil {
			return errors.Wrap(errors.ErrCodeExtraction, err, "set directory mode")
		}
	}
	return nil
}
