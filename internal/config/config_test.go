package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveAPIKeyOrder(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, ".tinyimg")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	tests := []struct {
		name       string
		flag       string
		keyFile    string
		configured string
		want       string
		wantErr    error
	}{
		{name: "flag wins", flag: " from-flag ", keyFile: keyFile, configured: "cfg", want: "from-flag"},
		{name: "key file when flag empty", flag: "   ", keyFile: keyFile, configured: "cfg", want: "from-file"},
		{name: "configured when no file", keyFile: filepath.Join(dir, "missing"), configured: " cfg ", want: "cfg"},
		{name: "nothing", keyFile: filepath.Join(dir, "missing"), wantErr: ErrMissingAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAPIKey(tt.flag, tt.keyFile, tt.configured)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveAPIKeyBlankKeyFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), ".tinyimg")
	if err := os.WriteFile(keyFile, []byte("\n\t \n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if _, err := ResolveAPIKey("", keyFile, ""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variant = " RASTER "
	cfg.Performance.Concurrency = 0
	cfg.Performance.RequestTimeout = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Variant != VariantRaster {
		t.Errorf("variant = %q, want %q", cfg.Variant, VariantRaster)
	}
	if cfg.Performance.Concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", cfg.Performance.Concurrency, DefaultConcurrency)
	}
	if cfg.Performance.RequestTimeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Performance.RequestTimeout, DefaultTimeout)
	}

	invalid := []func(*Config){
		func(c *Config) { c.Variant = "webp" },
		func(c *Config) { c.Endpoint = " " },
		func(c *Config) { c.Logging.Level = "trace" },
		func(c *Config) { c.Logging.Format = "xml" },
	}
	for i, mutate := range invalid {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestSupportedExtensions(t *testing.T) {
	cfg := DefaultConfig()
	if got := len(cfg.SupportedExtensions()); got != 5 {
		t.Errorf("full variant has %d extensions, want 5", got)
	}
	cfg.Variant = VariantRaster
	for _, ext := range cfg.SupportedExtensions() {
		if ext == ".svg" || ext == ".gif" {
			t.Errorf("raster variant must not include %s", ext)
		}
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "variant: raster\nperformance:\n  concurrency: 2\n  request_timeout: 30s\nlogging:\n  level: info\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TINYIMG_API_KEY", "env-key")
	t.Setenv("TINYIMG_PERFORMANCE_CONCURRENCY", "6")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Variant != VariantRaster {
		t.Errorf("variant = %q", cfg.Variant)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", cfg.APIKey)
	}
	if cfg.Performance.Concurrency != 6 {
		t.Errorf("concurrency = %d, want 6 (env overrides file)", cfg.Performance.Concurrency)
	}
	if cfg.Performance.RequestTimeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Performance.RequestTimeout)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want default", cfg.Endpoint)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("variant: [unterminated\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestValidateTempDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}

	tests := []struct {
		name    string
		dir     string
		wantErr bool
	}{
		{"default", DefaultTempDirectory, false},
		{"nested", filepath.Join("build", "tmp"), false},
		{"elsewhere", filepath.Join(t.TempDir(), "scratch"), false},
		{"working directory", ".", true},
		{"absolute working directory", cwd, true},
		{"parent", "..", true},
		{"root", string(filepath.Separator), true},
		{"home", home, true},
		{"tilde", "~", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TempDirectory = tt.dir
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.dir, err, tt.wantErr)
			}
		})
	}
}
