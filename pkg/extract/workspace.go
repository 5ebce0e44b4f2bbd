package extract

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

const workspacePattern = ".jaenvtix-extract-*"

// workspace is a private temporary directory inside the destination.
// Strategies write there; promote moves the result into place.
type workspace struct {
	dest   string
	dir    string
	logger *log.Logger
}

func newWorkspace(dest string, logger *log.Logger) (*workspace, error) {
	dir, err := os.MkdirTemp(dest, workspacePattern)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExtraction, err, "create temporary directory in %s", dest)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &workspace{dest: dest, dir: dir, logger: logger}, nil
}

// promote moves every top-level entry of the workspace into the
// destination. Same-named destination entries are replaced; others are
// left untouched.
func (w *workspace) promote() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "read temporary directory")
	}
	for _, e := range entries {
		src := filepath.Join(w.dir, e.Name())
		dst := filepath.Join(w.dest, e.Name())
		if _, err := os.Lstat(dst); err == nil {
			if err := os.RemoveAll(dst); err != nil {
				return errors.Wrap(errors.ErrCodeExtraction, err, "replace %s", dst)
			}
		}
		if err := os.Rename(src, dst); err != nil {
			return errors.Wrap(errors.ErrCodeExtraction, err, "move %s into place", e.Name())
		}
	}
	return nil
}

// remove deletes the workspace. Failure is logged only.
func (w *workspace) remove() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.Warn("failed to remove temporary directory", "path", w.dir, "err", err)
	}
}
