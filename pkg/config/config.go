// Package config loads jaenvtix settings from a TOML file.
//
// The file lives at $XDG_CONFIG_HOME/jaenvtix/config.toml (or
// ~/.config/jaenvtix/config.toml). Every key is optional:
//
//	base_dir = "~/.jaenvtix"
//
//	[checksum]
//	policy = "best-effort"   # or "strict"
//
//	[retry]
//	max_attempts  = 3
//	initial_delay = "1s"
//	max_delay     = "30s"
//	factor        = 2.0
//	jitter        = 0.2
//
//	[cache]
//	backend    = "file"      # "file", "redis" or "none"
//	dir        = "~/.cache/jaenvtix"
//	redis_addr = "localhost:6379"
//	ttl        = "720h"
//	scope      = ""          # key prefix, e.g. "host:build-01:"
//
//	[extract]
//	native = true
//	manual = true
//
//	[mirror]
//	addr = "127.0.0.1:8686"
//	dir  = ""
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jaenvtix/jaenvtix/pkg/cache"
	"github.com/jaenvtix/jaenvtix/pkg/checksum"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
	"github.com/jaenvtix/jaenvtix/pkg/layout"
	"github.com/jaenvtix/jaenvtix/pkg/retry"
)

const appName = "jaenvtix"

// DefaultMirrorAddr is where `jaenvtix mirror` listens by default.
const DefaultMirrorAddr = "127.0.0.1:8686"

// Config is the decoded configuration file.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	Checksum ChecksumConfig `toml:"checksum"`
	Retry    RetryConfig    `toml:"retry"`
	Cache    CacheConfig    `toml:"cache"`
	Extract  ExtractConfig  `toml:"extract"`
	Mirror   MirrorConfig   `toml:"mirror"`
}

type ChecksumConfig struct {
	Policy string `toml:"policy"`
}

type RetryConfig struct {
	MaxAttempts  int      `toml:"max_attempts"`
	InitialDelay Duration `toml:"initial_delay"`
	MaxDelay     Duration `toml:"max_delay"`
	Factor       float64  `toml:"factor"`
	Jitter       float64  `toml:"jitter"`
}

type CacheConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
	// Scope prefixes index keys so several machines can share one Redis
	// database without seeing each other's records.
	Scope     string   `toml:"scope"`
}

type ExtractConfig struct {
	Native bool `toml:"native"`
	Manual bool `toml:"manual"`
}

type MirrorConfig struct {
	Addr string `toml:"addr"`
	Dir  string `toml:"dir"`
}

// Duration is a time.Duration written as a Go duration string ("1s").
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Checksum: ChecksumConfig{Policy: string(checksum.DefaultPolicy)},
		Retry: RetryConfig{
			MaxAttempts:  retry.DefaultMaxAttempts,
			InitialDelay: Duration(retry.DefaultInitialDelay),
			MaxDelay:     Duration(retry.DefaultMaxDelay),
			Factor:       retry.DefaultFactor,
			Jitter:       retry.DefaultJitter,
		},
		Cache:   CacheConfig{Backend: cache.BackendFile},
		Extract: ExtractConfig{Native: true, Manual: true},
		Mirror:  MirrorConfig{Addr: DefaultMirrorAddr},
	}
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "locate home directory")
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DefaultCacheDir returns the file-backend directory of the artifact index.
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "locate home directory")
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Load reads the file at path. An empty path means [DefaultPath], and a
// missing default file yields [Default]; a missing explicit file is an
// error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes TOML over [Default] and validates the result. Unknown
// keys are rejected.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode TOML")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := checksum.ParsePolicy(c.Checksum.Policy); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "checksum.policy")
	}

	r := c.Retry
	switch {
	case r.MaxAttempts < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "retry.max_attempts must be at least 1, got %d", r.MaxAttempts)
	case r.InitialDelay < 0 || r.MaxDelay < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "retry delays cannot be negative")
	case r.Factor < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "retry.factor must be at least 1, got %g", r.Factor)
	case r.Jitter < 0 || r.Jitter > 1:
		return errors.New(errors.ErrCodeInvalidConfig, "retry.jitter must be between 0 and 1, got %g", r.Jitter)
	}

	switch c.Cache.Backend {
	case "", cache.BackendFile, cache.BackendNone:
	case cache.BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.ttl cannot be negative")
	}
	return nil
}

// ChecksumPolicy returns the parsed checksum policy.
func (c Config) ChecksumPolicy() checksum.Policy {
	p, err := checksum.ParsePolicy(c.Checksum.Policy)
	if err != nil {
		return checksum.DefaultPolicy
	}
	return p
}

// RetryPolicy converts the [retry] table.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay.Std(),
		MaxDelay:     c.Retry.MaxDelay.Std(),
		Factor:       c.Retry.Factor,
		Jitter:       c.Retry.Jitter,
	}
}

// Base returns the provisioning root, defaulting to ~/.jaenvtix.
func (c Config) Base() (string, error) {
	if c.BaseDir == "" {
		return layout.DefaultBase()
	}
	return expandHome(c.BaseDir)
}

// CacheOptions returns the artifact index backend options.
func (c Config) CacheOptions() (cache.Options, error) {
	dir := c.Cache.Dir
	var err error
	if dir == "" {
		dir, err = DefaultCacheDir()
	} else {
		dir, err = expandHome(dir)
	}
	if err != nil {
		return cache.Options{}, err
	}
	return cache.Options{Backend: c.Cache.Backend, Dir: dir, RedisAddr: c.Cache.RedisAddr}, nil
}

// MirrorDir returns the directory the mirror serves. It defaults to
// <base>/mirror.
func (c Config) MirrorDir() (string, error) {
	if c.Mirror.Dir != "" {
		return expandHome(c.Mirror.Dir)
	}
	base, err := c.Base()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "mirror"), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "expand %s", p)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
