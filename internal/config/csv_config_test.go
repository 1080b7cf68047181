package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfigCSV(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "valid config",
			file: writeFile(t, dir, "valid.csv", "key,value\nparallel,8\non_duplicated,rename\non_unsupported,copy\nkeep_archives,true\nproxy_mode,basic\nproxy_host,proxy.corp\nproxy_port,3128\n"),
			check: func(t *testing.T, cfg *Config) {
				if cfg.Parallel != 8 {
					t.Errorf("Parallel = %d, want 8", cfg.Parallel)
				}
				if cfg.OnDuplicated != "rename" {
					t.Errorf("OnDuplicated = %q, want rename", cfg.OnDuplicated)
				}
				if cfg.OnUnsupported != "copy" {
					t.Errorf("OnUnsupported = %q, want copy", cfg.OnUnsupported)
				}
				if !cfg.KeepArchives {
					t.Error("KeepArchives should be true")
				}
				if cfg.ProxyMode != "basic" || cfg.ProxyHost != "proxy.corp" || cfg.ProxyPort != 3128 {
					t.Errorf("proxy = %s %s:%d", cfg.ProxyMode, cfg.ProxyHost, cfg.ProxyPort)
				}
			},
		},
		{
			name: "minimal config without header",
			file: writeFile(t, dir, "minimal.csv", "check_content,1\n"),
			check: func(t *testing.T, cfg *Config) {
				if !cfg.CheckContent {
					t.Error("CheckContent should be true")
				}
				// Should have defaults
				if cfg.Parallel != 3 {
					t.Errorf("Parallel = %d, want default 3", cfg.Parallel)
				}
			},
		},
		{
			name: "password in file is ignored",
			file: writeFile(t, dir, "password.csv", "proxy_user,alice\nproxy_password,secret\n"),
			check: func(t *testing.T, cfg *Config) {
				if cfg.ProxyUser != "alice" {
					t.Errorf("ProxyUser = %q", cfg.ProxyUser)
				}
				if cfg.ProxyPassword != "" {
					t.Error("proxy_password must not be loaded from a file")
				}
			},
		},
		{
			name:    "bad parallel",
			file:    writeFile(t, dir, "bad.csv", "parallel,many\n"),
			wantErr: true,
		},
		{
			name:    "unknown key",
			file:    writeFile(t, dir, "typo.csv", "paralel,8\n"),
			wantErr: true,
		},
		{
			name:    "bad proxy port",
			file:    writeFile(t, dir, "port.csv", "proxy_port,eighty\n"),
			wantErr: true,
		},
		{
			name: "comments and warmup keys",
			file: writeFile(t, dir, "warmup.csv", "# proxy checks\nproxy_warmup,on\nproxy_warmup_url,http://warmup.test\n"),
			check: func(t *testing.T, cfg *Config) {
				if !cfg.ProxyWarmup || cfg.ProxyWarmupURL != "http://warmup.test" {
					t.Errorf("warmup = %v %q", cfg.ProxyWarmup, cfg.ProxyWarmupURL)
				}
			},
		},
		{
			name: "non-existent file returns defaults",
			file: filepath.Join(dir, "nonexistent.csv"),
			check: func(t *testing.T, cfg *Config) {
				if cfg.Parallel != 3 || cfg.OnDuplicated != "skip" || cfg.OnUnsupported != "skip" {
					t.Errorf("unexpected defaults: %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigCSV(tt.file)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfigCSV() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSaveConfigCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.csv")
	cfg := Default()
	cfg.Parallel = 5
	cfg.OnDuplicated = "replace"
	cfg.CheckContent = true
	cfg.ProxyUser = "bob"
	cfg.ProxyPassword = "hunter2"

	if err := SaveConfigCSV(cfg, path); err != nil {
		t.Fatalf("SaveConfigCSV: %v", err)
	}

	loaded, err := LoadConfigCSV(path)
	if err != nil {
		t.Fatalf("LoadConfigCSV: %v", err)
	}
	if loaded.Parallel != 5 || loaded.OnDuplicated != "replace" || !loaded.CheckContent || loaded.ProxyUser != "bob" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
	if loaded.ProxyPassword != "" {
		t.Error("password must not be persisted")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") || strings.Contains(string(data), "keep_archives") {
		t.Errorf("unexpected rows in saved file:\n%s", data)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero parallel", func(c *Config) { c.Parallel = 0 }, true},
		{"negative parallel", func(c *Config) { c.Parallel = -1 }, true},
		{"too much parallel", func(c *Config) { c.Parallel = 1000 }, true},
		{"unknown collision policy", func(c *Config) { c.OnDuplicated = "overwrite" }, true},
		{"unknown unsupported policy", func(c *Config) { c.OnUnsupported = "delete" }, true},
		{"unknown proxy mode", func(c *Config) { c.ProxyMode = "socks" }, true},
		{"basic without host", func(c *Config) { c.ProxyMode = "basic" }, true},
		{"ntlm with host", func(c *Config) { c.ProxyMode = "ntlm"; c.ProxyHost = "proxy" }, false},
		{"bad port", func(c *Config) { c.ProxyPort = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
