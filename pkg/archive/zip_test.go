package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io/fs"
	"strings"
	"testing"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

func TestParseZip(t *testing.T) {
	data := buildZip(t, []zipFile{
		{name: "folder/"},
		{name: "folder/nested.txt", body: "nested", method: zip.Deflate, mode: 0o640},
		{name: "folder/stored.bin", body: "raw bytes", method: zip.Store},
	})

	entries, err := ParseZip(data)
	if err != nil {
		t.Fatalf("ParseZip() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	if !entries[0].IsDirectory || entries[0].Name != "folder/" {
		t.Errorf("entries[0] = %+v, want directory folder/", entries[0])
	}
	nested := entries[1]
	if nested.IsDirectory || nested.Method != ZipDeflate || nested.UncompressedSize != 6 {
		t.Errorf("entries[1] = %+v", nested)
	}
	if nested.Mode() != 0o640 {
		t.Errorf("Mode() = %o, want 640", nested.Mode())
	}

	for _, e := range entries[1:] {
		body, err := ReadZipEntry(data, e)
		if err != nil {
			t.Fatalf("ReadZipEntry(%s) error = %v", e.Name, err)
		}
		want := map[string]string{"folder/nested.txt": "nested", "folder/stored.bin": "raw bytes"}[e.Name]
		if string(body) != want {
			t.Errorf("ReadZipEntry(%s) = %q, want %q", e.Name, body, want)
		}
	}
}

func TestParseZipWithComment(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("a.txt")
	w.Write([]byte("a"))
	zw.SetComment(strings.Repeat("c", 60000))
	zw.Close()

	entries, err := ParseZip(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseZip() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "a.txt" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestZipDirectoryDetection(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		external uint32
		want     bool
	}{
		{"trailing slash", "bin/", 0, true},
		{"unix dir bit", "bin", 0o040755 << 16, true},
		{"dos dir bit", "bin", 0x10, true},
		{"regular file", "bin/java", 0o100755 << 16, false},
		{"no attributes", "release", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isZipDirectory(tt.entry, tt.external); got != tt.want {
				t.Errorf("isZipDirectory(%q, %o) = %v, want %v", tt.entry, tt.external, got, tt.want)
			}
		})
	}
}

func TestZipEntryCheck(t *testing.T) {
	tests := []struct {
		name  string
		file  zipFile
		match string
	}{
		{"encrypted", zipFile{name: "secret.txt", body: "x", flags: 0x1}, "encrypted"},
		{"symlink", zipFile{name: "link", body: "/etc/passwd", mode: fs.ModeSymlink | 0o777}, "symbolic link"},
		{"bzip2", zipFile{name: "data.bin", body: "BZh9", method: 12, raw: true}, "compression method 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ParseZip(buildZip(t, []zipFile{tt.file}))
			if err != nil {
				t.Fatal(err)
			}
			err = entries[0].Check()
			if !errors.Is(err, errors.ErrCodeUnsupportedEntry) {
				t.Fatalf("Check() error = %v, want UNSUPPORTED_ENTRY", err)
			}
			if !strings.Contains(err.Error(), tt.match) {
				t.Errorf("Check() error = %q, want mention of %q", err, tt.match)
			}
		})
	}
}

func TestParseZipCorrupt(t *testing.T) {
	good := buildZip(t, []zipFile{{name: "a.txt", body: "hello", method: zip.Deflate}})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too small", []byte("PK")},
		{"no eocd", bytes.Repeat([]byte{0x42}, 200)},
		{"truncated central directory", append(append([]byte{}, good[:len(good)-60]...), good[len(good)-22:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseZip(tt.data); !errors.Is(err, errors.ErrCodeCorruptArchive) {
				t.Errorf("ParseZip() error = %v, want CORRUPT_ARCHIVE", err)
			}
		})
	}
}

func TestReadZipEntryCorrupt(t *testing.T) {
	data := buildZip(t, []zipFile{{name: "a.txt", body: strings.Repeat("hello ", 100), method: zip.Deflate}})
	entries, err := ParseZip(data)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("size mismatch", func(t *testing.T) {
		e := entries[0]
		e.UncompressedSize++
		if _, err := ReadZipEntry(data, e); !errors.Is(err, errors.ErrCodeCorruptArchive) {
			t.Errorf("error = %v, want CORRUPT_ARCHIVE", err)
		}
	})

	t.Run("bad local signature", func(t *testing.T) {
		bad := append([]byte{}, data...)
		binary.LittleEndian.PutUint32(bad[entries[0].LocalHeaderOffset:], 0xdeadbeef)
		if _, err := ReadZipEntry(bad, entries[0]); !errors.Is(err, errors.ErrCodeCorruptArchive) {
			t.Errorf("error = %v, want CORRUPT_ARCHIVE", err)
		}
	})

	t.Run("crc mismatch", func(t *testing.T) {
		e := entries[0]
		e.CRC32 ^= 1
		if _, err := ReadZipEntry(data, e); !errors.Is(err, errors.ErrCodeCorruptArchive) {
			t.Errorf("error = %v, want CORRUPT_ARCHIVE", err)
		}
	})
}

func TestParseZip64Rejected(t *testing.T) {
	data := buildZip(t, []zipFile{{name: "a.txt", body: "a"}})
	eocd, err := findEOCD(data)
	if err != nil {
		t.Fatal(err)
	}
	bad := append([]byte{}, data...)
	binary.LittleEndian.PutUint16(bad[eocd+10:], 0xFFFF)
	_, err = ParseZip(bad)
	if !errors.Is(err, errors.ErrCodeCorruptArchive) || !strings.Contains(err.Error(), "ZIP64") {
		t.Errorf("ParseZip() error = %v, want ZIP64 rejection", err)
	}
}
