package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

type countingHooks struct{ hits, misses, sets int }

func (h *countingHooks) OnCacheHit(context.Context, string)      { h.hits++ }
func (h *countingHooks) OnCacheMiss(context.Context, string)     { h.misses++ }
func (h *countingHooks) OnCacheSet(context.Context, string, int) { h.sets++ }

func newTestIndex(t *testing.T) (*Index, *countingHooks, string) {
	t.Helper()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hooks := &countingHooks{}
	ix := NewIndex(c, nil)
	ix.Hooks = hooks

	artifact := filepath.Join(t.TempDir(), "jdk.tar.gz")
	if err := os.WriteFile(artifact, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	return ix, hooks, artifact
}

func TestIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	ix, hooks, artifact := newTestIndex(t)
	url := "https://example.com/jdk.tar.gz"

	if _, ok, err := ix.Lookup(ctx, url); ok || err != nil {
		t.Fatalf("Lookup(empty) = %v, %v", ok, err)
	}
	rec := ArtifactRecord{URL: url, Path: artifact, Checksum: helloSHA256, Algorithm: "sha256", Size: 5}
	if err := ix.Store(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, ok, err := ix.Lookup(ctx, url)
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v; want hit", ok, err)
	}
	if got.Path != artifact || got.StoredAt.IsZero() {
		t.Errorf("Lookup() = %+v", got)
	}
	if hooks.hits != 1 || hooks.misses != 1 || hooks.sets != 1 {
		t.Errorf("hooks = %+v", hooks)
	}
}

func TestIndexDropsStaleRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, path string)
		rec    func(rec *ArtifactRecord)
	}{
		{"file deleted", func(t *testing.T, p string) { os.Remove(p) }, nil},
		{"file tampered same size", func(t *testing.T, p string) { os.WriteFile(p, []byte("jello"), 0o644) }, nil},
		{"file grown", func(t *testing.T, p string) { os.WriteFile(p, []byte("hello!"), 0o644) }, nil},
		{"unknown algorithm", nil, func(r *ArtifactRecord) { r.Algorithm = "crc32" }},
		{"inferred md5 mismatch", nil, func(r *ArtifactRecord) {
			r.Algorithm = ""
			r.Checksum = "00000000000000000000000000000000"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ix, _, artifact := newTestIndex(t)
			url := "https://example.com/" + tt.name
			rec := ArtifactRecord{URL: url, Path: artifact, Checksum: helloSHA256, Algorithm: "sha256"}
			if tt.rec != nil {
				tt.rec(&rec)
			}
			if err := ix.Store(ctx, rec); err != nil {
				t.Fatal(err)
			}
			if tt.mutate != nil {
				tt.mutate(t, artifact)
			}

			if _, ok, err := ix.Lookup(ctx, url); ok || err != nil {
				t.Fatalf("Lookup() = %v, %v; want miss", ok, err)
			}
			if _, hit, _ := ix.Cache.Get(ctx, ix.keyer().ArtifactKey(url)); hit {
				t.Error("stale record should be deleted")
			}
		})
	}
}

func TestIndexForget(t *testing.T) {
	ctx := context.Background()
	ix, _, artifact := newTestIndex(t)
	url := "https://example.com/jdk.zip"
	ix.Store(ctx, ArtifactRecord{URL: url, Path: artifact, Checksum: helloSHA256})

	if err := ix.Forget(ctx, url); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := ix.Lookup(ctx, url); ok {
		t.Error("Lookup after Forget should miss")
	}
}
