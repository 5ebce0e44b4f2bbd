package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// zipFile describes one member of a test ZIP.
type zipFile struct {
	name   string
	body   string
	mode   fs.FileMode
	flags  uint16
	method uint16
	raw    bool
}

func buildZip(t *testing.T, files []zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		fh := &zip.FileHeader{Name: f.name, Method: f.method, Flags: f.flags}
		if f.mode != 0 {
			fh.SetMode(f.mode)
		}
		var (
			w   io.Writer
			err error
		)
		if f.raw {
			fh.CompressedSize64 = uint64(len(f.body))
			fh.UncompressedSize64 = uint64(len(f.body))
			w, err = zw.CreateRaw(fh)
		} else {
			w, err = zw.CreateHeader(fh)
		}
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// tarFile describes one member of a test TAR written with archive/tar.
type tarFile struct {
	name   string
	body   string
	mode   int64
	typ    byte
	format tar.Format
}

func buildTar(t *testing.T, files []tarFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		typ := f.typ
		if typ == 0 {
			typ = tar.TypeReg
		}
		mode := f.mode
		if mode == 0 {
			mode = 0o644
		}
		hdr := &tar.Header{Name: f.name, Mode: mode, Typeflag: typ, Format: f.format}
		if typ == tar.TypeReg {
			hdr.Size = int64(len(f.body))
		}
		if typ == tar.TypeSymlink || typ == tar.TypeLink {
			hdr.Linkname = "target"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if typ == tar.TypeReg {
			if _, err := tw.Write([]byte(f.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// rawTar assembles tar blocks by hand for metadata cases archive/tar
// will not produce (per-entry PAX mode, 'G' globals, odd type flags).
type rawTar struct{ buf bytes.Buffer }

func (r *rawTar) entry(name string, typ byte, mode int64, body []byte) *rawTar {
	hdr := make([]byte, tarBlockSize)
	copy(hdr[0:100], name)
	if mode >= 0 {
		copy(hdr[100:108], fmt.Sprintf("%07o\x00", mode))
	}
	copy(hdr[108:116], "0000000\x00")
	copy(hdr[116:124], "0000000\x00")
	copy(hdr[124:136], fmt.Sprintf("%011o\x00", len(body)))
	copy(hdr[136:148], "00000000000\x00")
	hdr[156] = typ
	copy(hdr[257:263], "ustar\x00")
	copy(hdr[263:265], "00")
	setTarChecksum(hdr)
	r.buf.Write(hdr)
	r.buf.Write(body)
	if pad := len(body) % tarBlockSize; pad != 0 {
		r.buf.Write(make([]byte, tarBlockSize-pad))
	}
	return r
}

func (r *rawTar) pax(typ byte, records map[string]string, keys ...string) *rawTar {
	var body bytes.Buffer
	for _, k := range keys {
		body.WriteString(paxRecord(k, records[k]))
	}
	return r.entry("PaxHeaders/x", typ, 0o644, body.Bytes())
}

func (r *rawTar) bytes() []byte {
	r.buf.Write(make([]byte, 2*tarBlockSize))
	return r.buf.Bytes()
}

func setTarChecksum(hdr []byte) {
	copy(hdr[148:156], "        ")
	var sum int64
	for _, c := range hdr {
		sum += int64(c)
	}
	copy(hdr[148:156], fmt.Sprintf("%06o\x00 ", sum))
}

func paxRecord(k, v string) string {
	size := len(k) + len(v) + 3
	size += len(strconv.Itoa(size))
	rec := strconv.Itoa(size) + " " + k + "=" + v + "\n"
	if len(rec) != size {
		size = len(rec)
		rec = strconv.Itoa(size) + " " + k + "=" + v + "\n"
	}
	return rec
}

func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// assertEmpty fails if dir has any content.
func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("%s should be empty, contains %v", dir, names)
	}
}
