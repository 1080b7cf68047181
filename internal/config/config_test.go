package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rescale/dlxt/internal/extract"
	"github.com/rescale/dlxt/internal/util/paths"
)

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "parallel: 6\non_duplicated: rename\nkeep_archives: true\nno_proxy: \"*.internal\"\n")

	t.Setenv("DLXT_PARALLEL", "2")
	t.Setenv("DLXT_ON_UNSUPPORTED", "copy")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Parallel != 2 {
		t.Errorf("env should override file: Parallel = %d", cfg.Parallel)
	}
	if cfg.OnDuplicated != "rename" {
		t.Errorf("OnDuplicated = %q, want rename", cfg.OnDuplicated)
	}
	if cfg.OnUnsupported != "copy" {
		t.Errorf("OnUnsupported = %q, want copy", cfg.OnUnsupported)
	}
	if !cfg.KeepArchives || cfg.NoProxy != "*.internal" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.UserAgent == "" {
		t.Error("defaults should survive a partial file")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Parallel != 3 {
		t.Errorf("Parallel = %d, want 3", cfg.Parallel)
	}
}

func TestLoad_RejectsUnknownYAMLKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "paralel: 4\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for misspelled key")
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "parallel = 4\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for .toml config")
	}
}

func TestLoad_YAMLPasswordIgnored(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "proxy_user: alice\nproxy_password: secret\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProxyPassword != "" {
		t.Error("proxy_password must not be loaded from a file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DLXT_KEEP_ARCHIVES":  "yes",
		"DLXT_CHECK_CONTENT":  "0",
		"DLXT_PROXY_MODE":     "system",
		"DLXT_PROXY_PORT":     "3128",
		"DLXT_PROXY_PASSWORD": "pw",
		"UNRELATED":           "x",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.CheckContent = true
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if !cfg.KeepArchives || cfg.CheckContent {
		t.Errorf("bools not applied: keep=%v check=%v", cfg.KeepArchives, cfg.CheckContent)
	}
	if cfg.ProxyMode != "system" || cfg.ProxyPort != 3128 || cfg.ProxyPassword != "pw" {
		t.Errorf("proxy env not applied: %+v", cfg)
	}

	env["DLXT_PROXY_PORT"] = "eighty"
	if err := Default().ApplyEnv(lookup); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestPolicies(t *testing.T) {
	cfg := Default()
	cfg.OnDuplicated = "rename"
	cfg.OnUnsupported = "copy"

	cp, err := cfg.CollisionPolicy()
	if err != nil || cp != paths.Rename {
		t.Errorf("CollisionPolicy = %v, %v", cp, err)
	}
	up, err := cfg.UnsupportedPolicy()
	if err != nil || up != extract.CopyUnsupported {
		t.Errorf("UnsupportedPolicy = %v, %v", up, err)
	}
}

func TestWriteYAML_RedactsPassword(t *testing.T) {
	cfg := Default()
	cfg.ProxyPassword = "hunter2"

	var buf bytes.Buffer
	if err := WriteYAML(&buf, cfg); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Error("password leaked into output")
	}
	if !strings.Contains(out, "parallel: 3") {
		t.Errorf("expected parallel in output:\n%s", out)
	}
	if cfg.ProxyPassword != "hunter2" {
		t.Error("WriteYAML must not mutate its argument")
	}
}

func TestSaveConfigYAML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlxt", "config.yaml")
	cfg := Default()
	cfg.Parallel = 9
	cfg.ProxyPassword = "hunter2"

	if err := SaveConfigYAML(cfg, path); err != nil {
		t.Fatalf("SaveConfigYAML: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Parallel != 9 || loaded.ProxyPassword != "" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestDefaultConfigPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got, want := DefaultConfigPath(), filepath.Join("/tmp/xdg", "dlxt", "config.yaml"); got != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
	}
}
