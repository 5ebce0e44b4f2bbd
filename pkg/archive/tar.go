package archive

import (
	"bytes"
	"io/fs"
	"strconv"
	"strings"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

const tarBlockSize = 512

// TAR type flags.
const (
	TypeRegular      byte = '0'
	TypeRegularOld   byte = 0
	TypeDirectory    byte = '5'
	TypeGNULongName  byte = 'L'
	TypePAXHeader    byte = 'x'
	TypePAXGlobal    byte = 'g'
	TypePAXGlobalAlt byte = 'G'
)

// TarEntry is a materializable TAR entry after long-name and PAX
// attributes have been applied.
type TarEntry struct {
	Name string
	Size int64
	// Mode holds permission bits; HasMode is false when the header field
	// was empty and no PAX mode was given.
	Mode    fs.FileMode
	HasMode bool
	Type    byte
}

// IsDir reports whether the entry is a directory.
func (e TarEntry) IsDir() bool {
	return e.Type == TypeDirectory || (isRegular(e.Type) && strings.HasSuffix(e.Name, "/"))
}

// IsRegular reports whether the entry is a regular file.
func (e TarEntry) IsRegular() bool { return isRegular(e.Type) && !e.IsDir() }

func isRegular(t byte) bool { return t == TypeRegular || t == TypeRegularOld }

// TarWalkFunc is called for every file or directory entry. body aliases
// the archive buffer and must not be retained.
type TarWalkFunc func(e TarEntry, body []byte) error

// TarOptions tunes [WalkTar].
type TarOptions struct {
	// Lenient reports entries of any type instead of failing on anything
	// but regular files and directories. Used for listings that are handed
	// to an external tool.
	Lenient bool
}

// WalkTar walks an in-memory TAR stream and calls fn for every entry in
// archive order. Metadata blocks (GNU long names, PAX headers) are
// consumed and applied to the following entry; global PAX attributes
// persist for the rest of the archive.
func WalkTar(data []byte, opts TarOptions, fn TarWalkFunc) error {
	var (
		global   = map[string]string{}
		local    map[string]string
		longName string
		hasLong  bool
		off      int
	)

	for {
		if off+tarBlockSize > len(data) {
			// A stream that ends without trailer blocks is tolerated once
			// all full headers are consumed.
			if off == len(data) {
				return nil
			}
			return errors.New(errors.ErrCodeCorruptArchive, "tar: truncated header at offset %d", off)
		}
		hdr := data[off : off+tarBlockSize]
		if isZeroBlock(hdr) {
			return nil
		}
		if err := verifyTarChecksum(hdr); err != nil {
			return errors.Wrap(errors.ErrCodeCorruptArchive, err, "tar: header at offset %d", off)
		}

		size, err := parseNumeric(hdr[124:136])
		if err != nil {
			return errors.Wrap(errors.ErrCodeCorruptArchive, err, "tar: bad size at offset %d", off)
		}
		typ := hdr[156]

		// Per-entry PAX size overrides the header before the data range is computed.
		if !isMeta(typ) {
			if v, ok := lookupPAX("size", local, global); ok {
				n, err := strconv.ParseInt(v, 10, 64)
				if err != nil || n < 0 {
					return errors.New(errors.ErrCodeCorruptArchive, "tar: bad PAX size %q", v)
				}
				size = n
			}
		}

		start := off + tarBlockSize
		// Compare against the remaining bytes so huge sizes cannot overflow.
		if size < 0 || size > int64(len(data)-start) {
			return errors.New(errors.ErrCodeCorruptArchive, "tar: entry at offset %d overruns archive (size %d)", off, size)
		}
		body := data[start : start+int(size)]
		if padded := alignBlock(size); padded > int64(len(data)-start) {
			off = len(data)
		} else {
			off = start + int(padded)
		}

		switch typ {
		case TypeGNULongName:
			longName = cString(body)
			hasLong = true
			continue
		case TypePAXHeader:
			recs, err := parsePAX(body)
			if err != nil {
				return err
			}
			local = recs
			continue
		case TypePAXGlobal, TypePAXGlobalAlt:
			recs, err := parsePAX(body)
			if err != nil {
				return err
			}
			for k, v := range recs {
				if v == "" {
					delete(global, k)
				} else {
					global[k] = v
				}
			}
			continue
		}

		e := TarEntry{Name: headerName(hdr), Size: size, Type: typ}
		if hasLong {
			e.Name = longName
		}
		if v, ok := lookupPAX("path", local, global); ok {
			e.Name = v
		}
		if m, err := parseNumeric(hdr[100:108]); err == nil && !isEmptyField(hdr[100:108]) {
			e.Mode, e.HasMode = fs.FileMode(m&0o7777).Perm(), true
		}
		if v, ok := lookupPAX("mode", local, global); ok {
			m, err := strconv.ParseUint(strings.TrimSpace(v), 8, 32)
			if err != nil {
				return errors.New(errors.ErrCodeCorruptArchive, "tar: bad PAX mode %q", v)
			}
			e.Mode, e.HasMode = fs.FileMode(m).Perm(), true
		}
		local, longName, hasLong = nil, "", false

		if !opts.Lenient && !isRegular(typ) && typ != TypeDirectory {
			return errors.New(errors.ErrCodeUnsupportedEntry, "tar: entry %q has unsupported type %q", e.Name, typeName(typ))
		}
		if err := fn(e, body); err != nil {
			return err
		}
	}
}

func isMeta(t byte) bool {
	return t == TypeGNULongName || t == TypePAXHeader || t == TypePAXGlobal || t == TypePAXGlobalAlt
}

// lookupPAX returns the local value if present, else the global one. An
// empty local value hides the global one.
func lookupPAX(key string, local, global map[string]string) (string, bool) {
	if v, ok := local[key]; ok {
		return v, v != ""
	}
	v, ok := global[key]
	return v, ok && v != ""
}

// parsePAX parses "%d %s=%s\n" records.
func parsePAX(b []byte) (map[string]string, error) {
	recs := map[string]string{}
	for len(b) > 0 {
		// Trailing NUL padding is not part of any record.
		if b[0] == 0 {
			break
		}
		sp := bytes.IndexByte(b, ' ')
		if sp <= 0 {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "tar: malformed PAX record")
		}
		n, err := strconv.Atoi(string(b[:sp]))
		if err != nil || n <= sp+1 || n > len(b) {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "tar: bad PAX record length %q", b[:sp])
		}
		rec := b[sp+1 : n]
		if len(rec) == 0 || rec[len(rec)-1] != '\n' {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "tar: PAX record not newline-terminated")
		}
		rec = rec[:len(rec)-1]
		eq := bytes.IndexByte(rec, '=')
		if eq <= 0 {
			return nil, errors.New(errors.ErrCodeCorruptArchive, "tar: PAX record without key")
		}
		recs[string(rec[:eq])] = string(rec[eq+1:])
		b = b[n:]
	}
	return recs, nil
}

// headerName joins the ustar prefix and name fields. GNU headers reuse
// the prefix area for other fields, so only POSIX magic enables it.
func headerName(hdr []byte) string {
	name := cString(hdr[0:100])
	if string(hdr[257:263]) == "ustar\x00" {
		if prefix := cString(hdr[345:500]); prefix != "" {
			return prefix + "/" + name
		}
	}
	return name
}

// parseNumeric decodes a NUL/space padded octal field, or a base-256
// field when the high bit of the first byte is set (GNU extension).
func parseNumeric(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		var n int64
		for i, c := range b {
			if i == 0 {
				c &= 0x7f
			}
			if n > (1<<55)-1 {
				return 0, errors.New(errors.ErrCodeCorruptArchive, "numeric field overflows")
			}
			n = n<<8 | int64(c)
		}
		return n, nil
	}
	s := strings.Trim(string(b), " \x00")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func isEmptyField(b []byte) bool {
	return strings.Trim(string(b), " \x00") == ""
}

// verifyTarChecksum checks the header checksum, accepting both the
// unsigned and the historical signed sum.
func verifyTarChecksum(hdr []byte) error {
	want, err := parseNumeric(hdr[148:156])
	if err != nil {
		return err
	}
	var unsigned, signed int64
	for i, c := range hdr {
		if i >= 148 && i < 156 {
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	if want != unsigned && want != signed {
		return errors.New(errors.ErrCodeCorruptArchive, "header checksum mismatch")
	}
	return nil
}

func alignBlock(n int64) int64 {
	return (n + tarBlockSize - 1) / tarBlockSize * tarBlockSize
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func typeName(t byte) string {
	switch t {
	case '1':
		return "hard link"
	case '2':
		return "symlink"
	case '3':
		return "character device"
	case '4':
		return "block device"
	case '6':
		return "fifo"
	case '7':
		return "contiguous file"
	case 'K':
		return "GNU long link"
	}
	if t >= 0x20 && t < 0x7f {
		return string(rune(t))
	}
	return strconv.Itoa(int(t))
}
