// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Components accept hooks through their
// options and fall back to no-op implementations when none are given.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Pass implementations explicitly to the components that emit events
//
// There is no process-wide registry: two downloaders in the same process can
// report to different backends.
//
// # Usage
//
// Wire hooks at construction time:
//
//	d := download.New(client, logger)
//	d.Hooks = observability.NewLogHooks(logger)
//
// Components call hooks to emit events:
//
//	hooks.OnDownloadStart(ctx, url, attempt)
//	// ... stream body ...
//	hooks.OnDownloadComplete(ctx, url, bytes, duration, err)
package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// Download Hooks
// =============================================================================

// DownloadHooks receives events from the verified downloader.
type DownloadHooks interface {
	// OnDownloadStart records the start of one download attempt.
	OnDownloadStart(ctx context.Context, url string, attempt int)

	// OnDownloadComplete records the end of one attempt, successful or not.
	OnDownloadComplete(ctx context.Context, url string, bytes int64, duration time.Duration, err error)

	// OnDownloadRetry records a scheduled retry.
	OnDownloadRetry(ctx context.Context, url string, nextAttempt int, delay time.Duration, err error)
}

// =============================================================================
// Extraction Hooks
// =============================================================================

// ExtractHooks receives events from the extraction strategy cascade.
type ExtractHooks interface {
	OnStrategyStart(ctx context.Context, strategy, archive string)
	OnStrategyComplete(ctx context.Context, strategy, archive string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from the artifact index.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopDownloadHooks is a no-op implementation of DownloadHooks.
type NoopDownloadHooks struct{}

func (NoopDownloadHooks) OnDownloadStart(context.Context, string, int) {}
func (NoopDownloadHooks) OnDownloadComplete(context.Context, string, int64, time.Duration, error) {
}
func (NoopDownloadHooks) OnDownloadRetry(context.Context, string, int, time.Duration, error) {}

// NoopExtractHooks is a no-op implementation of ExtractHooks.
type NoopExtractHooks struct{}

func (NoopExtractHooks) OnStrategyStart(context.Context, string, string) {}
func (NoopExtractHooks) OnStrategyComplete(context.Context, string, string, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Defaults
// =============================================================================

// Download returns h, or a no-op implementation when h is nil.
func Download(h DownloadHooks) DownloadHooks {
	if h == nil {
		return NoopDownloadHooks{}
	}
	return h
}

// Extract returns h, or a no-op implementation when h is nil.
func Extract(h ExtractHooks) ExtractHooks {
	if h == nil {
		return NoopExtractHooks{}
	}
	return h
}

// Cache returns h, or a no-op implementation when h is nil.
func Cache(h CacheHooks) CacheHooks {
	if h == nil {
		return NoopCacheHooks{}
	}
	return h
}

// =============================================================================
// Log Hooks
// =============================================================================

// LogHooks reports every event as a debug-level log line. It implements
// DownloadHooks, ExtractHooks and CacheHooks.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks creates hooks that log through logger (log.Default() if nil).
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnDownloadStart(_ context.Context, url string, attempt int) {
	h.logger.Debug("download attempt", "url", url, "attempt", attempt)
}

func (h *LogHooks) OnDownloadComplete(_ context.Context, url string, bytes int64, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("download attempt failed", "url", url, "bytes", bytes, "elapsed", d.Round(time.Millisecond), "error", err)
		return
	}
	h.logger.Debug("download attempt finished", "url", url, "bytes", bytes, "elapsed", d.Round(time.Millisecond))
}

func (h *LogHooks) OnDownloadRetry(_ context.Context, url string, next int, delay time.Duration, err error) {
	h.logger.Debug("download retry scheduled", "url", url, "attempt", next, "delay", delay.Round(time.Millisecond), "error", err)
}

func (h *LogHooks) OnStrategyStart(_ context.Context, strategy, archive string) {
	h.logger.Debug("extraction strategy", "strategy", strategy, "archive", archive)
}

func (h *LogHooks) OnStrategyComplete(_ context.Context, strategy, archive string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("extraction strategy failed", "strategy", strategy, "elapsed", d.Round(time.Millisecond), "error", err)
		return
	}
	h.logger.Debug("extraction strategy succeeded", "strategy", strategy, "elapsed", d.Round(time.Millisecond))
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "size", size)
}

var (
	_ DownloadHooks = (*LogHooks)(nil)
	_ ExtractHooks  = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
)
