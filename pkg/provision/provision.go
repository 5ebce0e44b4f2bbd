// Package provision turns a distribution descriptor into an installed JDK.
//
// A provisioning run resolves the expected checksum (inline or from a
// sidecar URL), reuses a previously verified archive when the artifact
// index still vouches for it, otherwise downloads and verifies the
// archive, and finally extracts it into <base>/jdk-<major>/<version>/.
// Concurrent runs for the same version share one in-flight run.
package provision

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jaenvtix/jaenvtix/pkg/cache"
	"github.com/jaenvtix/jaenvtix/pkg/checksum"
	"github.com/jaenvtix/jaenvtix/pkg/download"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
	"github.com/jaenvtix/jaenvtix/pkg/extract"
	"github.com/jaenvtix/jaenvtix/pkg/layout"
	"github.com/jaenvtix/jaenvtix/pkg/retry"
)

// Descriptor identifies one vendor distribution.
type Descriptor struct {
	URL string
	// Checksum is the expected hex digest; empty when unknown.
	Checksum string
	// ChecksumURL points at a sidecar holding the digest. Used only when
	// Checksum is empty.
	ChecksumURL string
	// Algorithm names the digest algorithm; empty infers it.
	Algorithm string
	Vendor    string
	Version   string
	OS        string
	Arch      string
	License   string
}

// Result describes an installed JDK.
type Result struct {
	Version string
	// Dir is the versioned directory the archive was extracted into, or
	// the folder chosen by the manual fallback.
	Dir string
	// JavaHome contains bin/java.
	JavaHome string
	// Archive is the verified archive; empty when the JDK was already
	// installed.
	Archive string
	// Reused is true when the archive came from the artifact index.
	Reused bool
	// Installed is true when the JDK was already present and nothing was
	// downloaded or extracted.
	Installed bool
}

// Provisioner installs JDKs under a base directory.
type Provisioner struct {
	// Base is the root of the layout. Required.
	Base string

	Downloader *download.Downloader
	Extractor  *extract.Extractor

	// Index enables archive reuse across runs (disabled if nil).
	Index *cache.Index

	// Policy decides whether a missing checksum is fatal.
	Policy checksum.Policy

	// Retry wraps the whole download step. BeforeRetry is where an
	// interactive caller asks a human before starting over. The zero
	// value makes a single run.
	Retry retry.Policy

	// OnProgress receives download progress.
	OnProgress download.ProgressFunc

	Logger *log.Logger

	// GOOS selects platform file names (runtime.GOOS if empty).
	GOOS string

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
	gen     uint64
}

// flight is one shared run for a version. Its context is detached from
// the caller that started it and cancelled once every waiter has left.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Provision installs d and returns where it landed. Callers asking for a
// version that is already being provisioned wait for that run and share
// its result.
func (p *Provisioner) Provision(ctx context.Context, d Descriptor) (Result, error) {
	if err := errors.ValidateVersion(d.Version); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeAborted, err, "provisioning %s aborted", d.Version)
	}
	fl := p.join(ctx, d.Version)
	defer p.leave(d.Version, fl)

	ch := p.group.DoChan(fl.key, func() (any, error) {
		return p.run(fl.ctx, d)
	})
	select {
	case <-ctx.Done():
		return Result{}, errors.Wrap(errors.ErrCodeAborted, ctx.Err(), "provisioning %s aborted", d.Version)
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

// join registers the caller with the current flight for version, starting
// a new one when none is live.
func (p *Provisioner) join(ctx context.Context, version string) *flight {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flights == nil {
		p.flights = map[string]*flight{}
	}
	fl, ok := p.flights[version]
	if !ok {
		p.gen++
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{key: version + "#" + strconv.FormatUint(p.gen, 10), ctx: runCtx, cancel: cancel}
		p.flights[version] = fl
	}
	fl.waiters++
	return fl
}

// leave drops the caller from fl. The last one out cancels the run, so a
// later caller starts a fresh flight instead of joining an aborted one.
func (p *Provisioner) leave(version string, fl *flight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if p.flights[version] == fl {
		delete(p.flights, version)
	}
}

func (p *Provisioner) run(ctx context.Context, d Descriptor) (Result, error) {
	if p.Base == "" {
		return Result{}, errors.New(errors.ErrCodeInvalidConfig, "provisioning base directory is not set")
	}
	paths, err := layout.For(p.Base, d.Version, p.goos())
	if err != nil {
		return Result{}, err
	}
	logger := p.logger().With("op", uuid.NewString()[:8], "version", d.Version)

	if home, err := FindJavaHome(paths.JDKHome, p.goos()); err == nil {
		logger.Info("JDK already installed", "java_home", home)
		return Result{Version: d.Version, Dir: paths.JDKHome, JavaHome: home, Installed: true}, nil
	}

	if err := errors.ValidateURL(d.URL); err != nil {
		return Result{}, err
	}
	name, err := ArchiveName(d.URL)
	if err != nil {
		return Result{}, err
	}

	expected := d.Checksum
	if expected == "" && d.ChecksumURL != "" {
		if expected, err = p.Downloader.FetchChecksum(ctx, d.ChecksumURL); err != nil {
			return Result{}, err
		}
	}

	// The policy applies to reused archives as much as to fresh downloads.
	if _, err := p.policy().Resolve(expected, d.Algorithm); err != nil {
		return Result{}, err
	}

	archivePath, reused, err := p.reuse(ctx, logger, d.URL, expected)
	if err != nil {
		return Result{}, err
	}
	if !reused {
		archivePath, err = p.fetch(ctx, logger, d, expected, filepath.Join(paths.Downloads, name))
		if err != nil {
			return Result{}, err
		}
	}

	start := time.Now()
	dir, err := p.extractor().Extract(ctx, archivePath, paths.JDKHome, "")
	if err != nil {
		return Result{}, err
	}
	home, err := FindJavaHome(dir, p.goos())
	if err != nil {
		return Result{}, err
	}
	logger.Info("JDK ready", "java_home", home, "extract", time.Since(start).Round(time.Millisecond))
	return Result{Version: d.Version, Dir: dir, JavaHome: home, Archive: archivePath, Reused: reused}, nil
}

// reuse consults the artifact index. With an expected digest, a record
// only counts when it was verified and its digest agrees. Without one,
// unverified records are accepted too, which best-effort already allows
// for a fresh download.
func (p *Provisioner) reuse(ctx context.Context, logger *log.Logger, url, expected string) (string, bool, error) {
	if p.Index == nil {
		return "", false, nil
	}
	rec, ok, err := p.Index.Lookup(ctx, url)
	if err != nil {
		logger.Warn("artifact index unavailable", "err", err)
		return "", false, nil
	}
	if !ok {
		return "", false, nil
	}
	if expected != "" && (!rec.Verified || !checksum.Equal(rec.Checksum, expected)) {
		logger.Debug("indexed archive does not match the expected checksum", "path", rec.Path, "verified", rec.Verified)
		return "", false, nil
	}
	logger.Info("reusing indexed archive", "path", rec.Path, "verified", rec.Verified)
	return rec.Path, true, nil
}

func (p *Provisioner) fetch(ctx context.Context, logger *log.Logger, d Descriptor, expected, dest string) (string, error) {
	if p.Downloader == nil {
		return "", errors.New(errors.ErrCodeNoFetch, "no downloader configured")
	}
	rp := p.Retry
	rp.MaxAttempts = max(rp.MaxAttempts, 1)

	var archivePath string
	err := retry.Do(ctx, rp, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			logger.Info("restarting download", "attempt", attempt)
		}
		out, err := p.Downloader.Download(ctx, d.URL, download.Options{
			Destination: dest,
			Checksum:    expected,
			Algorithm:   d.Algorithm,
			Policy:      p.Policy,
			OnProgress:  p.OnProgress,
		})
		if err != nil {
			if isFatal(err) {
				return retry.Permanent(err)
			}
			return err
		}
		archivePath = out
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, errors.ErrCodeAborted) {
			return "", errors.Wrap(errors.ErrCodeAborted, ctxErr, "download of %s aborted", d.URL)
		}
		return "", err
	}
	p.record(ctx, logger, d, expected, archivePath)
	return archivePath, nil
}

// record stores the verified archive in the index. Archives downloaded
// without a known digest are hashed so later runs can detect tampering.
func (p *Provisioner) record(ctx context.Context, logger *log.Logger, d Descriptor, expected, archivePath string) {
	if p.Index == nil {
		return
	}
	alg, err := checksum.Resolve(expected, d.Algorithm)
	if err != nil {
		return
	}
	sum, size, err := checksum.SumFile(archivePath, alg)
	if err != nil {
		logger.Warn("failed to hash archive for the index", "err", err)
		return
	}
	rec := cache.ArtifactRecord{
		URL:       d.URL,
		Path:      archivePath,
		Checksum:  sum,
		Algorithm: alg.String(),
		Size:      size,
		Verified:  expected != "",
	}
	if err := p.Index.Store(ctx, rec); err != nil {
		logger.Warn("failed to record archive", "err", err)
	}
}

// isFatal reports errors that a fresh run cannot fix.
func isFatal(err error) bool {
	for _, code := range []errors.Code{
		errors.ErrCodeNoFetch,
		errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidPath,
		errors.ErrCodeChecksumRequired,
		errors.ErrCodeAborted,
	} {
		if errors.Is(err, code) {
			return true
		}
	}
	return false
}

// ArchiveName derives the local archive file name from an artifact URL.
func ArchiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "parse URL")
	}
	name := path.Base(u.Path)
	if err := errors.ValidateFileName(name); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "no archive name in %s", rawURL)
	}
	return name, nil
}

func (p *Provisioner) extractor() *extract.Extractor {
	if p.Extractor == nil {
		return extract.New(extract.Config{Logger: p.Logger})
	}
	return p.Extractor
}

func (p *Provisioner) policy() checksum.Policy {
	if p.Policy == "" {
		return checksum.DefaultPolicy
	}
	return p.Policy
}

func (p *Provisioner) goos() string {
	if p.GOOS == "" {
		return runtime.GOOS
	}
	return p.GOOS
}

func (p *Provisioner) logger() *log.Logger {
	if p.Logger == nil {
		return log.Default()
	}
	return p.Logger
}
