package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

const validConfig = `
site:
  - name: site-a
    offset_hours: -5
backup:
  interval_seconds: 300
  local_cache_format: "/tmp/{site}.cache"
  local_history_format: "/tmp/{site}-{slot}.history"
interval:
  module: day
type:
  pages: "p counters daymonth"
`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfigFile(t, validConfig)
	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Site) != 1 || cfg.Site[0].Name != "site-a" {
		t.Fatalf("unexpected sites: %+v", cfg.Site)
	}
	if cfg.Backup.Interval().Seconds() != 300 {
		t.Fatalf("unexpected backup interval: %v", cfg.Backup.Interval())
	}
	if cfg.Site[0].Offset.Hours() != -5 {
		t.Fatalf("unexpected offset: %v", cfg.Site[0].Offset)
	}
}

func TestLoadRejectsMissingSites(t *testing.T) {
	path := writeConfigFile(t, `
backup:
  interval_seconds: 300
interval:
  module: day
type:
  pages: "p counters"
`)
	if _, err := NewLoader(path).Load(); err == nil {
		t.Fatal("expected ConfigError for missing [site] section")
	}
}

func TestLoadRejectsUnknownIntervalModule(t *testing.T) {
	path := writeConfigFile(t, `
site:
  - name: site-a
    offset_hours: 0
backup:
  interval_seconds: 60
type:
  pages: "p counters"
interval:
  module: week
`)
	_, err := NewLoader(path).Load()
	if err == nil {
		t.Fatal("expected ConfigError for unknown interval module")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestCheckDirnamesFailsOnMissingParent(t *testing.T) {
	cfg := &Config{
		Site:   []SiteConfig{{Name: "site-a"}},
		Backup: BackupConfig{LocalCacheFormat: "/no/such/dir/{site}.cache"},
	}
	if err := cfg.CheckDirnames(); err == nil {
		t.Fatal("expected an error for a missing parent directory")
	}
}

func TestCheckDirnamesPassesForExistingParent(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Site:   []SiteConfig{{Name: "site-a"}},
		Backup: BackupConfig{LocalCacheFormat: dir + "/{site}.cache"},
	}
	if err := cfg.CheckDirnames(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSnapshotCodecDefaultsToPlain(t *testing.T) {
	var b BackupConfig
	codec, err := b.SnapshotCodec()
	if err != nil {
		t.Fatalf("SnapshotCodec: %v", err)
	}
	blob, err := codec.Encode("site-a", map[string]int{"views": 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out map[string]int
	if err := codec.Decode("site-a", blob, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["views"] != 1 {
		t.Fatalf("unexpected roundtrip: %v", out)
	}
}

func TestSnapshotCodecWithValidKey(t *testing.T) {
	b := BackupConfig{EncryptionKeyHex: strings.Repeat("ab", 32)}
	codec, err := b.SnapshotCodec()
	if err != nil {
		t.Fatalf("SnapshotCodec: %v", err)
	}
	blob, err := codec.Encode("site-a", map[string]int{"views": 2})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out map[string]int
	if err := codec.Decode("site-a", blob, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["views"] != 2 {
		t.Fatalf("unexpected roundtrip: %v", out)
	}
}

func TestSnapshotCodecRejectsBadHex(t *testing.T) {
	b := BackupConfig{EncryptionKeyHex: "not-hex"}
	if _, err := b.SnapshotCodec(); err == nil {
		t.Fatal("expected an error for invalid hex")
	}
}

func TestSnapshotCodecRejectsBadKeyLength(t *testing.T) {
	b := BackupConfig{EncryptionKeyHex: "ab"}
	if _, err := b.SnapshotCodec(); err == nil {
		t.Fatal("expected an error for a short key")
	}
}

func TestLoadRejectsInvalidEncryptionKey(t *testing.T) {
	path := writeConfigFile(t, `
site:
  - name: site-a
    offset_hours: 0
backup:
  interval_seconds: 60
  encryption_key_hex: "not-hex"
type:
  pages: "p counters"
interval:
  module: day
`)
	if _, err := NewLoader(path).Load(); err == nil {
		t.Fatal("expected ConfigError for invalid encryption_key_hex")
	}
}

func TestBuildRegistryLines(t *testing.T) {
	cfg := &Config{Type: map[string]string{"pages": "p counters"}}
	lines := cfg.BuildRegistryLines()
	if len(lines) != 1 || lines[0].Value != "p counters" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}
