// Package pkg provides the core libraries for jaenvtix JDK provisioning.
//
// # Overview
//
// jaenvtix installs JDK distributions for Maven projects. Given a vendor
// distribution (a download URL plus an optional checksum), it downloads the
// archive, verifies it, and extracts it into a per-version directory tree:
//
//	~/.jaenvtix/
//	  jdk-21/
//	    21.0.2+13/        extracted JDK
//	    downloads/        verified archives
//	    mvn-custom/bin/   Maven wrapper and mvnd
//
// # Architecture
//
// The typical data flow through jaenvtix:
//
//	Distribution descriptor (URL, checksum, version)
//	         ↓
//	    [download] package (fetch, verify, atomic rename)
//	         ↓
//	    [extract] package (native tool → in-process → manual)
//	         ↓
//	    [archive] package (ZIP/TAR parsing, entry path validation)
//	         ↓
//	    <base>/jdk-<major>/<version>/
//
// [provision] ties the steps together and adds per-version deduplication,
// archive reuse through the [cache] index, and a whole-run retry gate.
//
// # Quick Start
//
//	p := &provision.Provisioner{
//	    Base:       base,
//	    Downloader: download.New(download.NewHTTPClient(), logger),
//	    Extractor:  extract.New(extract.Config{Logger: logger}),
//	    Logger:     logger,
//	}
//	res, err := p.Provision(ctx, provision.Descriptor{
//	    URL:         "https://example.com/jdk-21.0.2_linux-x64_bin.tar.gz",
//	    ChecksumURL: "https://example.com/jdk-21.0.2_linux-x64_bin.tar.gz.sha256",
//	    Version:     "21.0.2+13",
//	})
//	fmt.Println(res.JavaHome)
//
// # Main Packages
//
// ## Artifact Pipeline
//
// [download] - Verified downloader. Streams the body through a hasher into a
// uniquely named temporary file next to the destination and renames it into
// place only after the digest matches. Retries transient failures with
// [retry] and fetches checksum sidecars.
//
// [extract] - Ordered extraction strategies. The first success wins; when
// every strategy fails the caller gets one aggregate error listing each
// failure in order.
//
// [archive] - Pure ZIP and TAR (optionally gzip-compressed) readers plus the
// entry path validator that rejects absolute names, drive letters and ".."
// components before anything is written.
//
// [checksum] - Digest algorithms, inference from digest length, the strict
// and best-effort policies, and sidecar parsing.
//
// [retry] - Exponential backoff with jitter, a human confirmation gate, and
// permanent-error classification.
//
// ## Provisioning
//
// [provision] - Descriptor to installed JDK, including Java home discovery.
//
// [layout] - The per-version directory tree and major-version derivation.
//
// [cache] - Verified artifact index over file, Redis or null backends.
//
// [mirror] - HTTP server that serves archives and computed sidecars.
//
// ## Infrastructure
//
// [config] - TOML configuration file with defaults and validation.
//
// [errors] - Coded errors for retry classification and user messages.
//
// [observability] - Download, extraction and cache hooks.
//
// [buildinfo] - Version information injected at build time.
//
// # Testing
//
// Run tests:
//
//	go test ./...                                          # All tests
//	go test ./pkg/archive/...                              # Specific package
//	JAENVTIX_TEST_REDIS=localhost:6379 go test ./pkg/cache # Include Redis
//
// [download]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/download
// [extract]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/extract
// [archive]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/archive
// [checksum]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/checksum
// [retry]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/retry
// [provision]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/provision
// [layout]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/layout
// [cache]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/cache
// [mirror]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/mirror
// [config]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/config
// [errors]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/errors
// [observability]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/jaenvtix/jaenvtix/pkg/buildinfo
package pkg
