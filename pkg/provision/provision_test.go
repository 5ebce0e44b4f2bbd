package provision

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jaenvtix/jaenvtix/pkg/cache"
	"github.com/jaenvtix/jaenvtix/pkg/checksum"
	"github.com/jaenvtix/jaenvtix/pkg/download"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
	"github.com/jaenvtix/jaenvtix/pkg/extract"
	"github.com/jaenvtix/jaenvtix/pkg/retry"
)

const testVersion = "21.0.2+13"

func jdkZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct{ name, body string }{
		{"jdk-21.0.2+13/", ""},
		{"jdk-21.0.2+13/bin/", ""},
		{"jdk-21.0.2+13/bin/java", "#!/bin/sh\necho java"},
		{"jdk-21.0.2+13/release", "JAVA_VERSION=\"21.0.2\""},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(f.body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fixture serves one archive and its sidecar and counts archive requests.
type fixture struct {
	srv     *httptest.Server
	archive []byte
	hits    atomic.Int32
	status  int
	sidecar string
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{archive: jdkZip(t), status: http.StatusOK}
	f.sidecar = sha256Hex(f.archive) + "  jdk.zip\n"
	mux := http.NewServeMux()
	mux.HandleFunc("/jdk.zip", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.entered != nil {
			f.once.Do(func() { close(f.entered) })
		}
		if f.gate != nil {
			<-f.gate
		}
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}
		w.Write(f.archive)
	})
	mux.HandleFunc("/jdk.zip.sha256", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, f.sidecar)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) url() string { return f.srv.URL + "/jdk.zip" }

func newProvisioner(t *testing.T, f *fixture) *Provisioner {
	t.Helper()
	logger := log.New(io.Discard)
	d := download.New(f.srv.Client(), logger)
	d.Retry = retry.Policy{MaxAttempts: 1}
	return &Provisioner{
		Base:       t.TempDir(),
		Downloader: d,
		Extractor:  extract.New(extract.Config{NoNative: true, NoManual: true, Logger: logger}),
		Logger:     logger,
		GOOS:       "linux",
	}
}

func TestProvisionInstallsJDK(t *testing.T) {
	f := newFixture(t)
	p := newProvisioner(t, f)
	ctx := context.Background()

	res, err := p.Provision(ctx, Descriptor{URL: f.url(), Checksum: sha256Hex(f.archive), Version: testVersion})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	wantDir := filepath.Join(p.Base, "jdk-21", testVersion)
	if res.Dir != wantDir {
		t.Errorf("Dir = %s, want %s", res.Dir, wantDir)
	}
	if want := filepath.Join(wantDir, "jdk-21.0.2+13"); res.JavaHome != want {
		t.Errorf("JavaHome = %s, want %s", res.JavaHome, want)
	}
	if want := filepath.Join(p.Base, "jdk-21", "downloads", "jdk.zip"); res.Archive != want {
		t.Errorf("Archive = %s, want %s", res.Archive, want)
	}
	if res.Installed || res.Reused {
		t.Errorf("first run flags = %+v", res)
	}

	again, err := p.Provision(ctx, Descriptor{URL: f.url(), Version: testVersion})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Installed || again.JavaHome != res.JavaHome {
		t.Errorf("second run = %+v, want installed at %s", again, res.JavaHome)
	}
	if n := f.hits.Load(); n != 1 {
		t.Errorf("archive requests = %d, want 1", n)
	}
}

func TestProvisionReusesIndexedArchive(t *testing.T) {
	f := newFixture(t)
	p := newProvisioner(t, f)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p.Index = cache.NewIndex(fc, p.Logger)
	ctx := context.Background()
	d := Descriptor{URL: f.url(), Version: testVersion}

	first, err := p.Provision(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(first.Dir); err != nil {
		t.Fatal(err)
	}

	second, err := p.Provision(ctx, d)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if !second.Reused {
		t.Error("second run should reuse the indexed archive")
	}
	if n := f.hits.Load(); n != 1 {
		t.Errorf("archive requests = %d, want 1", n)
	}

	// A tampered archive is no longer trusted.
	os.RemoveAll(second.Dir)
	os.WriteFile(second.Archive, []byte("tampered"), 0o644)
	third, err := p.Provision(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if third.Reused || f.hits.Load() != 2 {
		t.Errorf("tampered archive reused: %+v, hits %d", third, f.hits.Load())
	}
}

func TestProvisionChecksumSidecar(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		f := newFixture(t)
		p := newProvisioner(t, f)
		_, err := p.Provision(context.Background(), Descriptor{
			URL: f.url(), ChecksumURL: f.url() + ".sha256", Version: testVersion,
		})
		if err != nil {
			t.Fatalf("Provision() error = %v", err)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.sidecar = sha256Hex([]byte("something else")) + "  jdk.zip\n"
		p := newProvisioner(t, f)
		_, err := p.Provision(context.Background(), Descriptor{
			URL: f.url(), ChecksumURL: f.url() + ".sha256", Version: testVersion,
		})
		if !errors.Is(err, errors.ErrCodeChecksumMismatch) {
			t.Fatalf("Provision() error = %v, want CHECKSUM_MISMATCH", err)
		}
		entries, _ := os.ReadDir(filepath.Join(p.Base, "jdk-21", "downloads"))
		if len(entries) != 0 {
			t.Errorf("downloads dir not empty after mismatch: %v", entries)
		}
	})
}

func TestProvisionWholeRunRetry(t *testing.T) {
	tests := []struct {
		name        string
		confirm     bool
		wantHits    int32
		wantPrompts int
	}{
		{"declined", false, 1, 1},
		{"confirmed", true, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.status = http.StatusInternalServerError
			p := newProvisioner(t, f)
			prompts := 0
			p.Retry = retry.Policy{
				MaxAttempts: 3,
				BeforeRetry: func(ctx context.Context, err error, next int) (bool, error) {
					prompts++
					return tt.confirm, nil
				},
			}

			_, err := p.Provision(context.Background(), Descriptor{URL: f.url(), Version: testVersion})
			if !errors.Is(err, errors.ErrCodeHTTP) {
				t.Fatalf("Provision() error = %v, want HTTP_ERROR", err)
			}
			if n := f.hits.Load(); n != tt.wantHits {
				t.Errorf("archive requests = %d, want %d", n, tt.wantHits)
			}
			if prompts != tt.wantPrompts {
				t.Errorf("prompts = %d, want %d", prompts, tt.wantPrompts)
			}
		})
	}
}

func TestProvisionStrictWithoutChecksum(t *testing.T) {
	f := newFixture(t)
	p := newProvisioner(t, f)
	p.Policy = checksum.Strict
	prompts := 0
	p.Retry = retry.Policy{MaxAttempts: 3, BeforeRetry: func(context.Context, error, int) (bool, error) {
		prompts++
		return true, nil
	}}

	_, err := p.Provision(context.Background(), Descriptor{URL: f.url(), Version: testVersion})
	if !errors.Is(err, errors.ErrCodeChecksumRequired) {
		t.Fatalf("Provision() error = %v, want CHECKSUM_REQUIRED", err)
	}
	if f.hits.Load() != 0 || prompts != 0 {
		t.Errorf("hits = %d, prompts = %d; want no request and no retry", f.hits.Load(), prompts)
	}
}

func TestProvisionIndexHonorsPolicy(t *testing.T) {
	f := newFixture(t)
	p := newProvisioner(t, f)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p.Index = cache.NewIndex(fc, p.Logger)
	ctx := context.Background()

	// Best-effort run without a checksum records an unverified archive.
	first, err := p.Provision(ctx, Descriptor{URL: f.url(), Version: testVersion})
	if err != nil {
		t.Fatal(err)
	}
	rec, ok, err := p.Index.Lookup(ctx, f.url())
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	if rec.Verified {
		t.Error("archive downloaded without a checksum was recorded as verified")
	}

	t.Run("strict without checksum", func(t *testing.T) {
		os.RemoveAll(first.Dir)
		p.Policy = checksum.Strict
		defer func() { p.Policy = "" }()

		res, err := p.Provision(ctx, Descriptor{URL: f.url(), Version: testVersion})
		if !errors.Is(err, errors.ErrCodeChecksumRequired) {
			t.Fatalf("Provision() = %+v, %v; want CHECKSUM_REQUIRED", res, err)
		}
		if n := f.hits.Load(); n != 1 {
			t.Errorf("archive requests = %d, want 1", n)
		}
	})

	t.Run("expected checksum skips unverified record", func(t *testing.T) {
		os.RemoveAll(first.Dir)
		res, err := p.Provision(ctx, Descriptor{URL: f.url(), Checksum: sha256Hex(f.archive), Version: testVersion})
		if err != nil {
			t.Fatalf("Provision() error = %v", err)
		}
		if res.Reused || f.hits.Load() != 2 {
			t.Errorf("unverified record reused: %+v, hits %d", res, f.hits.Load())
		}
		if rec, ok, _ := p.Index.Lookup(ctx, f.url()); !ok || !rec.Verified {
			t.Error("verified download should replace the unverified record")
		}
	})

	t.Run("strict reuses verified record", func(t *testing.T) {
		os.RemoveAll(first.Dir)
		p.Policy = checksum.Strict
		defer func() { p.Policy = "" }()

		res, err := p.Provision(ctx, Descriptor{URL: f.url(), Checksum: sha256Hex(f.archive), Version: testVersion})
		if err != nil {
			t.Fatalf("Provision() error = %v", err)
		}
		if !res.Reused || f.hits.Load() != 2 {
			t.Errorf("verified record not reused: %+v, hits %d", res, f.hits.Load())
		}
	})
}

func TestProvisionDeduplicatesVersion(t *testing.T) {
	f := newFixture(t)
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	p := newProvisioner(t, f)
	d := Descriptor{URL: f.url(), Version: testVersion}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Result, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.Provision(context.Background(), d)
		}()
	}

	<-f.entered
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].JavaHome != results[0].JavaHome {
			t.Errorf("caller %d JavaHome = %s, want %s", i, results[i].JavaHome, results[0].JavaHome)
		}
	}
	if n := f.hits.Load(); n != 1 {
		t.Errorf("archive requests = %d, want 1", n)
	}
}

func TestProvisionSharedRunOutlivesCancelledCaller(t *testing.T) {
	f := newFixture(t)
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	p := newProvisioner(t, f)
	d := Descriptor{URL: f.url(), Version: testVersion}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := p.Provision(firstCtx, d)
		firstErr <- err
	}()
	<-f.entered

	type outcome struct {
		res Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := p.Provision(context.Background(), d)
		second <- outcome{res, err}
	}()
	// Wait until the second caller has joined the running flight.
	for deadline := time.Now().Add(5 * time.Second); ; {
		p.mu.Lock()
		fl := p.flights[testVersion]
		joined := fl != nil && fl.waiters == 2
		p.mu.Unlock()
		if joined {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second caller never joined")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, errors.ErrCodeAborted) {
		t.Errorf("cancelled caller error = %v, want ABORTED", err)
	}
	close(f.gate)

	got := <-second
	if got.err != nil {
		t.Fatalf("surviving caller error = %v", got.err)
	}
	if _, err := os.Stat(got.res.JavaHome); err != nil {
		t.Errorf("JavaHome missing: %v", err)
	}
	if n := f.hits.Load(); n != 1 {
		t.Errorf("archive requests = %d, want 1", n)
	}
}

func TestProvisionInvalidInput(t *testing.T) {
	f := newFixture(t)
	p := newProvisioner(t, f)
	tests := []struct {
		name string
		d    Descriptor
		code errors.Code
	}{
		{"bad version", Descriptor{URL: f.url(), Version: "../21"}, errors.ErrCodeInvalidVersion},
		{"bad scheme", Descriptor{URL: "ftp://example.com/jdk.zip", Version: "21"}, errors.ErrCodeInvalidInput},
		{"no file name", Descriptor{URL: f.srv.URL + "/", Version: "21"}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Provision(context.Background(), tt.d); !errors.Is(err, tt.code) {
				t.Errorf("Provision() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestProvisionCancelled(t *testing.T) {
	f := newFixture(t)
	p := newProvisioner(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Provision(ctx, Descriptor{URL: f.url(), Version: testVersion})
	if !errors.Is(err, errors.ErrCodeAborted) {
		t.Errorf("Provision() error = %v, want ABORTED", err)
	}
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://example.com/dl/OpenJDK21U-jdk_x64_linux.tar.gz", "OpenJDK21U-jdk_x64_linux.tar.gz", false},
		{"https://example.com/jdk.zip?token=abc", "jdk.zip", false},
		{"https://example.com/", "", true},
		{"https://example.com", "", true},
	}
	for _, tt := range tests {
		got, err := ArchiveName(tt.url)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ArchiveName(%s) = %q, %v; want %q", tt.url, got, err, tt.want)
		}
	}
}
