// Package config loads and validates the accumulator's configuration
// (spec.md §6's `[site]`/`[backup]`/`[interval]`/`[type]` sections),
// grounded on the teacher's internal/infra/confloader.Loader: koanf
// layered over file/env. There is no file watcher: a reload is a new
// call to Loader.Load (the server makes one on SIGHUP).
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/yndnr/slotcache-go/internal/backup"
	"github.com/yndnr/slotcache-go/internal/backup/cipher"
	"github.com/yndnr/slotcache-go/internal/core/registry"
)

// DefaultEnvPrefix is the environment variable prefix for overrides.
const DefaultEnvPrefix = "SLOTCACHE_"

// ConfigError marks a missing section/option at startup, per spec.md
// §7 -- always fatal.
type ConfigError struct {
	Section string
	Option  string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("config: [%s]: %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("config: [%s] %s: %s", e.Section, e.Option, e.Reason)
}

// SiteConfig is one `[site]` entry: an offset in hours, plus an
// optional storage-table identifier for backends that shard by site.
type SiteConfig struct {
	Name         string        `koanf:"name"`
	OffsetHours  float64       `koanf:"offset_hours"`
	StorageTable string        `koanf:"storage_table"`
	Offset       time.Duration `koanf:"-"`
}

// BackupConfig is the `[backup]` section.
type BackupConfig struct {
	IntervalSeconds    int    `koanf:"interval_seconds"`
	LocalCacheFormat   string `koanf:"local_cache_format"`
	LocalHistoryFormat string `koanf:"local_history_format"`
	// EncryptionKeyHex, if set, enables snapshot/history backup
	// encryption (internal/backup/cipher). cipher.New picks AES-GCM on
	// amd64/arm64, which takes 16/24/32 bytes (32/48/64 hex chars), and
	// ChaCha20-Poly1305 elsewhere, which takes 32 bytes (64 hex chars).
	EncryptionKeyHex string `koanf:"encryption_key_hex"`
}

// Interval returns the configured flush period.
func (b BackupConfig) Interval() time.Duration {
	return time.Duration(b.IntervalSeconds) * time.Second
}

// IntervalConfig is the `[interval]` section: the process-wide
// granularity selector (spec.md §5: "a site cannot mix granularities
// within one run").
type IntervalConfig struct {
	Module string `koanf:"module"`
}

// DebugConfig is the `[debug]` section used by the control loop.
type DebugConfig struct {
	ForceCacheRotation bool `koanf:"force_cache_rotation"`
}

// Config is the fully loaded, validated configuration.
type Config struct {
	Site     []SiteConfig          `koanf:"site"`
	Backup   BackupConfig          `koanf:"backup"`
	Interval IntervalConfig        `koanf:"interval"`
	Type     map[string]string     `koanf:"type"`
	Debug    DebugConfig           `koanf:"debug"`
}

// Loader loads Config from file + environment, in that priority order
// (environment wins), and can re-load on demand for SIGHUP.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix overrides the default environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// NewLoader constructs a Loader reading filePath (YAML).
func NewLoader(filePath string, opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), envPrefix: DefaultEnvPrefix, filePath: filePath}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the configuration file and environment overrides, then
// validates the result. Each validation failure is a fatal
// *ConfigError per spec.md §7.
func (l *Loader) Load() (*Config, error) {
	l.k = koanf.New(".")

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("load file %s: %v", l.filePath, err)}
		}
	}

	envTransform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", envTransform), nil); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("load env: %v", err)}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("unmarshal: %v", err)}
	}

	for i := range cfg.Site {
		cfg.Site[i].Offset = time.Duration(cfg.Site[i].OffsetHours * float64(time.Hour))
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Site) == 0 {
		return &ConfigError{Section: "site", Reason: "at least one site must be configured"}
	}
	seen := make(map[string]bool, len(cfg.Site))
	for _, s := range cfg.Site {
		if s.Name == "" {
			return &ConfigError{Section: "site", Reason: "entry missing name"}
		}
		if seen[s.Name] {
			return &ConfigError{Section: "site", Option: s.Name, Reason: "duplicate site name"}
		}
		seen[s.Name] = true
	}

	if cfg.Backup.IntervalSeconds <= 0 {
		return &ConfigError{Section: "backup", Option: "interval_seconds", Reason: "must be positive"}
	}
	if cfg.Backup.EncryptionKeyHex != "" {
		if _, err := cfg.Backup.SnapshotCodec(); err != nil {
			return err
		}
	}

	switch cfg.Interval.Module {
	case "day", "hour", "":
	default:
		return &ConfigError{Section: "interval", Option: "module", Reason: fmt.Sprintf("unknown module %q", cfg.Interval.Module)}
	}

	if len(cfg.Type) == 0 {
		return &ConfigError{Section: "type", Reason: "at least one type mapping must be configured"}
	}

	return nil
}

// SnapshotCodec builds the backup.Codec that snapshot/history writers
// should use, per EncryptionKeyHex: unset yields an unencrypted codec,
// set yields one sealed with cipher.New (AES-GCM or ChaCha20-Poly1305,
// chosen by CPU support) under that key.
func (b BackupConfig) SnapshotCodec() (*backup.Codec, error) {
	if b.EncryptionKeyHex == "" {
		return backup.NewPlainCodec(), nil
	}
	key, err := hex.DecodeString(b.EncryptionKeyHex)
	if err != nil {
		return nil, &ConfigError{Section: "backup", Option: "encryption_key_hex", Reason: fmt.Sprintf("invalid hex: %v", err)}
	}
	aead, err := cipher.New(key)
	if err != nil {
		return nil, &ConfigError{Section: "backup", Option: "encryption_key_hex", Reason: err.Error()}
	}
	return backup.NewCodec(aead), nil
}

// LocalCachePath renders the per-site snapshot fallback path from
// BackupConfig.LocalCacheFormat, substituting "{site}".
func (b BackupConfig) LocalCachePath(site string) string {
	return strings.ReplaceAll(b.LocalCacheFormat, "{site}", site)
}

// LocalHistoryPath renders the per-site/per-slot history fallback
// path from BackupConfig.LocalHistoryFormat, substituting "{site}"
// and "{slot}".
func (b BackupConfig) LocalHistoryPath(site, slot string) string {
	p := strings.ReplaceAll(b.LocalHistoryFormat, "{site}", site)
	return strings.ReplaceAll(p, "{slot}", slot)
}

// CheckDirnames fails fast if any configured local-path template's
// parent directory does not already exist, mirroring impress's
// check_dirname preflight (SUPPLEMENTED FEATURES, SPEC_FULL.md §3):
// the accumulator refuses to silently create its own backup
// directories since a missing directory usually signals a deploy
// misconfiguration, not a first run.
func (cfg *Config) CheckDirnames() error {
	for _, s := range cfg.Site {
		if cfg.Backup.LocalCacheFormat != "" {
			if err := checkDirname(cfg.Backup.LocalCachePath(s.Name)); err != nil {
				return err
			}
		}
		if cfg.Backup.LocalHistoryFormat != "" {
			if err := checkDirname(cfg.Backup.LocalHistoryPath(s.Name, "0")); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkDirname(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return &ConfigError{Section: "backup", Reason: fmt.Sprintf("parent directory %s does not exist: %v", dir, err)}
	}
	if !info.IsDir() {
		return &ConfigError{Section: "backup", Reason: fmt.Sprintf("%s is not a directory", dir)}
	}
	return nil
}

// BuildRegistryLines converts the `[type]` section into registry
// configuration lines, ready for registry.Registry.Reconfigure.
func (cfg *Config) BuildRegistryLines() []registry.TypeConfigLine {
	lines := make([]registry.TypeConfigLine, 0, len(cfg.Type))
	for name, value := range cfg.Type {
		lines = append(lines, registry.TypeConfigLine{Name: name, Value: value})
	}
	return lines
}

// ParseOffsetHours parses a `name = <offset-hours>` style site entry
// value, used by CLI tooling that accepts sites on the command line
// rather than through the config file.
func ParseOffsetHours(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid offset hours %q: %w", s, err)
	}
	return time.Duration(f * float64(time.Hour)), nil
}
