package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// NormalizeName converts an entry name to a slash-separated relative path:
// backslashes become slashes, leading slashes are stripped and empty or
// "." segments are dropped. ".." segments are kept so [CheckName] can
// reject them.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	parts := strings.Split(name, "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}

// isAbsolute reports whether name is rooted (leading slash or backslash)
// or carries a Windows drive letter such as "C:".
func isAbsolute(name string) bool {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return true
	}
	return len(name) >= 2 && name[1] == ':' &&
		(name[0] >= 'a' && name[0] <= 'z' || name[0] >= 'A' && name[0] <= 'Z')
}

// CheckName validates a raw entry name and returns its normalized form.
// Absolute names, drive letters, NUL bytes and any ".." segment fail with
// PATH_TRAVERSAL. The result may be empty for entries that name the
// archive root ("./").
func CheckName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", errors.New(errors.ErrCodePathTraversal, "entry name contains NUL byte: %q", name)
	}
	if isAbsolute(name) {
		return "", errors.New(errors.ErrCodePathTraversal, "absolute entry path not allowed: %q", name)
	}
	rel := NormalizeName(name)
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", errors.New(errors.ErrCodePathTraversal, "entry escapes destination: %q", name)
		}
	}
	return rel, nil
}

// Root is a canonical extraction root. Paths it resolves are guaranteed
// to lie inside it.
type Root struct {
	dir string
}

// NewRoot canonicalizes dir (absolute, symlinks resolved). The directory
// must exist.
func NewRoot(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", dir)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", dir)
	}
	fi, err := os.Stat(canon)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "stat %s", dir)
	}
	if !fi.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, "%s is not a directory", dir)
	}
	return &Root{dir: filepath.Clean(canon)}, nil
}

// Dir returns the canonical root directory.
func (r *Root) Dir() string { return r.dir }

// Resolve validates name and joins it onto the root. The returned path is
// the root itself or a descendant of it; anything else fails with
// PATH_TRAVERSAL.
func (r *Root) Resolve(name string) (string, error) {
	rel, err := CheckName(name)
	if err != nil {
		return "", err
	}
	abs := filepath.Join(r.dir, filepath.FromSlash(rel))
	if abs != r.dir && !strings.HasPrefix(abs, r.dir+string(os.PathSeparator)) {
		return "", errors.New(errors.ErrCodePathTraversal, "entry %q resolves outside %s", name, r.dir)
	}
	return abs, nil
}

// Contains reports whether path is the root or lies beneath it.
func (r *Root) Contains(path string) bool {
	path = filepath.Clean(path)
	return path == r.dir || strings.HasPrefix(path, r.dir+string(os.PathSeparator))
}
