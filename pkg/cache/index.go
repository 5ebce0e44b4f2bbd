package cache

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jaenvtix/jaenvtix/pkg/checksum"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
	"github.com/jaenvtix/jaenvtix/pkg/observability"
)

const keyTypeArtifact = "artifact"

// ArtifactRecord describes a verified download on local disk.
type ArtifactRecord struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Algorithm string    `json:"algorithm"`
	Size      int64     `json:"size"`
	// Verified is true when the download was checked against an expected
	// digest. Otherwise Checksum was computed locally after the fact.
	Verified  bool      `json:"verified"`
	StoredAt  time.Time `json:"stored_at"`
}

// Index maps artifact URLs to verified files.
type Index struct {
	Cache  Cache
	Keyer  Keyer                    // NewDefaultKeyer() if nil
	Hooks  observability.CacheHooks // no-op if nil
	Logger *log.Logger              // log.Default() if nil
	// TTL bounds how long a record is trusted. Zero keeps it until the
	// file disappears or stops matching.
	TTL time.Duration
}

// NewIndex creates an index over c.
func NewIndex(c Cache, logger *log.Logger) *Index {
	return &Index{Cache: c, Logger: logger}
}

// Lookup returns the record for url if the recorded file still exists and
// still hashes to the recorded digest. Stale records are deleted.
func (ix *Index) Lookup(ctx context.Context, url string) (*ArtifactRecord, bool, error) {
	key := ix.keyer().ArtifactKey(url)
	hooks := observability.Cache(ix.Hooks)

	data, ok, err := ix.Cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		hooks.OnCacheMiss(ctx, keyTypeArtifact)
		return nil, false, nil
	}

	var rec ArtifactRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.URL != url || rec.Checksum == "" {
		ix.forget(ctx, key, "undecodable record")
		hooks.OnCacheMiss(ctx, keyTypeArtifact)
		return nil, false, nil
	}
	if reason := verifyRecord(rec); reason != "" {
		ix.forget(ctx, key, reason)
		hooks.OnCacheMiss(ctx, keyTypeArtifact)
		return nil, false, nil
	}
	hooks.OnCacheHit(ctx, keyTypeArtifact)
	return &rec, true, nil
}

// Store records a verified artifact.
func (ix *Index) Store(ctx context.Context, rec ArtifactRecord) error {
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := ix.Cache.Set(ctx, ix.keyer().ArtifactKey(rec.URL), data, ix.TTL); err != nil {
		return err
	}
	observability.Cache(ix.Hooks).OnCacheSet(ctx, keyTypeArtifact, len(data))
	return nil
}

// Forget drops the record for url.
func (ix *Index) Forget(ctx context.Context, url string) error {
	return ix.Cache.Delete(ctx, ix.keyer().ArtifactKey(url))
}

func (ix *Index) forget(ctx context.Context, key, reason string) {
	ix.logger().Debug("dropping artifact record", "reason", reason)
	if err := ix.Cache.Delete(ctx, key); err != nil {
		ix.logger().Warn("failed to drop artifact record", "err", err)
	}
}

// verifyRecord re-hashes the recorded file and returns why it no longer
// matches, or "" when it does.
func verifyRecord(rec ArtifactRecord) string {
	info, err := os.Stat(rec.Path)
	if err != nil || !info.Mode().IsRegular() {
		return "file missing"
	}
	if rec.Size > 0 && info.Size() != rec.Size {
		return "size changed"
	}
	if err := checksum.VerifyFile(rec.Path, rec.Checksum, rec.Algorithm); err != nil {
		if errors.Is(err, errors.ErrCodeChecksumMismatch) {
			return "checksum changed"
		}
		return "unverifiable file"
	}
	return ""
}

func (ix *Index) keyer() Keyer {
	if ix.Keyer == nil {
		return NewDefaultKeyer()
	}
	return ix.Keyer
}

func (ix *Index) logger() *log.Logger {
	if ix.Logger == nil {
		return log.Default()
	}
	return ix.Logger
}
