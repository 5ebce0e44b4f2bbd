package extract

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// FolderPicker asks a human to point at a folder that already holds the
// extracted archive. ok is false when the human declines.
type FolderPicker interface {
	PickFolder(ctx context.Context, archivePath, dest string) (path string, ok bool, err error)
}

// PickerFunc adapts a function to [FolderPicker].
type PickerFunc func(ctx context.Context, archivePath, dest string) (string, bool, error)

func (f PickerFunc) PickFolder(ctx context.Context, archivePath, dest string) (string, bool, error) {
	return f(ctx, archivePath, dest)
}

// DeclinePicker always declines. It is the default for non-interactive use.
type DeclinePicker struct{}

func (DeclinePicker) PickFolder(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

// ManualStrategy defers to a [FolderPicker].
type ManualStrategy struct {
	Picker FolderPicker
}

func (s *ManualStrategy) Name() string { return "manual" }

func (s *ManualStrategy) Extract(ctx context.Context, job Job) (string, error) {
	path, ok, err := s.Picker.PickFolder(ctx, job.Archive, job.Dest)
	if err != nil {
		return "", err
	}
	if !ok || path == "" {
		return "", errors.New(errors.ErrCodeExtraction, "no folder selected")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "selected folder")
	}
	if !info.IsDir() {
		return "", errors.New(errors.ErrCodeInvalidPath, "selected path is not a directory: %s", abs)
	}
	return abs, nil
}
