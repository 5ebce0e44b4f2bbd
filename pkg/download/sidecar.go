package download

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/jaenvtix/jaenvtix/pkg/checksum"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// maxSidecarSize bounds checksum file reads.
const maxSidecarSize = 64 * 1024

// FetchChecksum downloads a checksum sidecar (for example the
// ".sha256.txt" files vendors publish next to each archive) and returns
// the expected digest it contains.
//
// Sidecars are small, so they go through a retryablehttp client with its
// own short backoff instead of the artifact retry policy.
func (d *Downloader) FetchChecksum(ctx context.Context, url string) (string, error) {
	if d == nil || d.Client == nil {
		return "", errors.New(errors.ErrCodeNoFetch, "no HTTP client configured for downloads")
	}
	if err := errors.ValidateURL(url); err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", url)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := d.sidecarClient().Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrap(errors.ErrCodeAborted, ctxErr, "checksum fetch aborted")
		}
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "fetch checksum %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.ErrCodeHTTP, "GET %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSidecarSize))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "read checksum %s", url)
	}
	digest, err := checksum.ParseSidecar(string(body))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "parse checksum %s", url)
	}
	d.logger().Debug("fetched checksum", "url", url, "digest", digest)
	return digest, nil
}

func (d *Downloader) sidecarClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = leveledLogger{d.logger()}
	if hc, ok := d.Client.(*http.Client); ok {
		c.HTTPClient = hc
	} else {
		c.HTTPClient = &http.Client{Transport: doerTransport{d.Client}, Timeout: time.Minute}
	}
	return c
}

// doerTransport adapts a Doer to http.RoundTripper so custom clients also
// serve sidecar requests.
type doerTransport struct{ d Doer }

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.d.Do(req)
}

// leveledLogger adapts charmbracelet/log to retryablehttp.LeveledLogger.
type leveledLogger struct{ l *log.Logger }

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.l.Error(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.l.Debug(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.l.Debug(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.l.Warn(msg, kv...) }

var _ retryablehttp.LeveledLogger = leveledLogger{}
