package extract

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/jaenvtix/jaenvtix/pkg/archive"
)

// InProcessStrategy unpacks with the built-in ZIP and TAR parsers.
type InProcessStrategy struct {
	Logger *log.Logger
}

func (s *InProcessStrategy) Name() string { return "in-process" }

func (s *InProcessStrategy) Extract(_ context.Context, job Job) (string, error) {
	ws, err := newWorkspace(job.Dest, s.Logger)
	if err != nil {
		return "", err
	}
	defer ws.remove()

	u := archive.Unpacker{Logger: s.Logger}
	if _, err := u.Unpack(job.Archive, job.Format, ws.dir); err != nil {
		return "", err
	}
	if err := ws.promote(); err != nil {
		return "", err
	}
	return job.Dest, nil
}
