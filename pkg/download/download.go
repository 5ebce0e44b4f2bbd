// Package download fetches artifacts over HTTP(S) and verifies them.
//
// A download streams the response body into a temporary file next to the
// destination, hashing the bytes as they are written. Only after the body
// is complete and the digest matches is the temporary file renamed onto
// the destination, so a partial or corrupt artifact never appears at the
// destination path.
//
// # Retries
//
// Each attempt starts from scratch with a new temporary file. Network
// errors, non-2xx responses, missing bodies and checksum mismatches are
// retried according to the configured [retry.Policy]. Cancellation of the
// context aborts the current attempt and is never retried; it surfaces as
// an ABORTED error.
//
// # Usage
//
//	d := download.New(http.DefaultClient, logger)
//	path, err := d.Download(ctx, url, download.Options{
//	    Destination: "/opt/jdk/downloads/jdk-21.tar.gz",
//	    Checksum:    "2cf24dba...",
//	    OnProgress:  func(p download.Progress) { ... },
//	})
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jaenvtix/jaenvtix/pkg/checksum"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
	"github.com/jaenvtix/jaenvtix/pkg/observability"
	"github.com/jaenvtix/jaenvtix/pkg/retry"
)

const (
	// DefaultTimeout bounds a whole artifact request, body included.
	DefaultTimeout = 30 * time.Minute

	copyBufferSize = 64 * 1024
)

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a single download.
type Options struct {
	// Destination is the final artifact path. Relative paths are resolved
	// against the working directory; parent directories are created.
	Destination string

	// Checksum is the expected hex digest. Empty means no digest is known.
	Checksum string

	// Algorithm names the digest algorithm. Empty infers it from the
	// digest length.
	Algorithm string

	// Policy decides whether a missing checksum is an error.
	// Zero value means checksum.DefaultPolicy.
	Policy checksum.Policy

	// OnProgress is called after every chunk written to disk.
	OnProgress ProgressFunc

	// Retry overrides the downloader's retry policy for this call.
	Retry *retry.Policy
}

// Downloader fetches and verifies artifacts. The zero value has no HTTP
// client and fails every call with NO_FETCH_IMPLEMENTATION.
type Downloader struct {
	// Client issues requests. Required.
	Client Doer

	// Logger receives progress and warning messages (log.Default() if nil).
	Logger *log.Logger

	// Hooks observes attempts (no-op if nil).
	Hooks observability.DownloadHooks

	// Retry is the default retry policy. The zero value means
	// retry.DefaultPolicy().
	Retry retry.Policy

	// UserAgent is sent with every request when set.
	UserAgent string
}

// New creates a Downloader with the default retry policy.
func New(client Doer, logger *log.Logger) *Downloader {
	return &Downloader{Client: client, Logger: logger, Retry: retry.DefaultPolicy()}
}

// NewHTTPClient returns the *http.Client used for artifact downloads.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// Download fetches url into opts.Destination and returns the absolute
// destination path.
//
// Errors carry one of the codes NO_FETCH_IMPLEMENTATION, INVALID_INPUT,
// CHECKSUM_REQUIRED, HTTP_ERROR, MISSING_BODY, NETWORK_ERROR,
// CHECKSUM_MISMATCH or ABORTED. When every attempt fails, the error of the
// last attempt is returned.
func (d *Downloader) Download(ctx context.Context, url string, opts Options) (string, error) {
	if d == nil || d.Client == nil {
		return "", errors.New(errors.ErrCodeNoFetch, "no HTTP client configured for downloads")
	}
	if err := errors.ValidateURL(url); err != nil {
		return "", err
	}
	if opts.Destination == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "download destination is required")
	}
	dest, err := filepath.Abs(opts.Destination)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve destination %s", opts.Destination)
	}

	policy := opts.Policy
	if policy == "" {
		policy = checksum.DefaultPolicy
	}
	plan, err := policy.Resolve(opts.Checksum, opts.Algorithm)
	if err != nil {
		return "", err
	}

	logger := d.logger()
	if plan.Skipped {
		logger.Warn("no checksum available, artifact will not be verified", "url", url, "policy", policy)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "create download directory")
	}

	rp := d.retryPolicy(opts)
	hooks := observability.Download(d.Hooks)
	userOnRetry := rp.OnRetry
	rp.OnRetry = func(err error, next int, delay time.Duration) {
		logger.Warn("download failed, retrying", "url", url, "attempt", next, "delay", delay.Round(time.Millisecond), "error", err)
		hooks.OnDownloadRetry(ctx, url, next, delay, err)
		if userOnRetry != nil {
			userOnRetry(err, next, delay)
		}
	}

	err = retry.Do(ctx, rp, func(ctx context.Context, attempt int) error {
		start := time.Now()
		hooks.OnDownloadStart(ctx, url, attempt)
		n, err := d.attempt(ctx, url, dest, plan, opts.OnProgress)
		hooks.OnDownloadComplete(ctx, url, n, time.Since(start), err)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrap(errors.ErrCodeAborted, ctxErr, "download of %s aborted", url)
		}
		return "", err
	}

	if plan.Enabled() {
		logger.Debug("checksum verified", "algorithm", plan.Algorithm, "path", dest)
	}
	return dest, nil
}

// attempt performs one complete fetch-verify-promote cycle and returns the
// number of bytes written.
func (d *Downloader) attempt(ctx context.Context, url, dest string, plan checksum.Plan, onProgress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, retry.Permanent(errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", url))
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errors.Wrap(errors.ErrCodeNetwork, err, "request %s", url)
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.New(errors.ErrCodeHTTP, "GET %s: unexpected status %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if resp.Body == nil {
		return 0, errors.New(errors.ErrCodeMissingBody, "GET %s: response has no body", url)
	}

	tmp := tempPath(dest)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "create temporary file")
	}

	var hasher *checksum.Hasher
	writers := []io.Writer{f}
	if plan.Enabled() {
		hasher = checksum.NewHasher(plan.Algorithm)
		writers = append(writers, hasher)
	}
	counter := newProgressWriter(resp.ContentLength, onProgress)
	writers = append(writers, counter)

	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(io.MultiWriter(writers...), resp.Body, buf)
	closeErr := f.Close()
	written := counter.downloaded

	if copyErr != nil {
		d.cleanup(tmp)
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		return written, errors.Wrap(errors.ErrCodeNetwork, copyErr, "read body of %s", url)
	}
	if closeErr != nil {
		d.cleanup(tmp)
		return written, errors.Wrap(errors.ErrCodeInternal, closeErr, "write temporary file")
	}

	if hasher != nil {
		if err := hasher.Verify(plan.Expected); err != nil {
			d.cleanup(tmp)
			return written, errors.Wrap(errors.ErrCodeChecksumMismatch, err, "verify %s", url)
		}
	}

	if err := promote(tmp, dest); err != nil {
		d.cleanup(tmp)
		return written, errors.Wrap(errors.ErrCodeInternal, err, "move download into place")
	}

	d.logger().Info("download complete", "url", url, "size", humanize.Bytes(uint64(written)), "path", dest)
	return written, nil
}

// promote renames tmp onto dest. If the rename fails because dest exists
// (Windows), dest is removed and the rename is retried once.
func promote(tmp, dest string) error {
	err := os.Rename(tmp, dest)
	if err == nil {
		return nil
	}
	if _, statErr := os.Lstat(dest); statErr != nil {
		return err
	}
	if rmErr := os.RemoveAll(dest); rmErr != nil {
		return fmt.Errorf("replace %s: %w", dest, rmErr)
	}
	return os.Rename(tmp, dest)
}

// tempPath returns a unique sibling of dest. The name combines a timestamp
// and a random suffix so concurrent attempts never share a file.
func tempPath(dest string) string {
	return fmt.Sprintf("%s.%d-%s.tmp", dest, time.Now().UnixNano(), uuid.NewString()[:8])
}

func (d *Downloader) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.logger().Warn("failed to remove temporary file", "path", path, "error", err)
	}
}

func (d *Downloader) retryPolicy(opts Options) retry.Policy {
	if opts.Retry != nil {
		return *opts.Retry
	}
	if d.Retry.MaxAttempts == 0 {
		return retry.DefaultPolicy()
	}
	return d.Retry
}

func (d *Downloader) logger() *log.Logger {
	if d.Logger == nil {
		return log.Default()
	}
	return d.Logger
}
