package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, resolvedPath, exists, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for missing file at %s", resolvedPath)
	}
	if cfg.Extraction.RasterDPI != 600 {
		t.Errorf("raster_dpi = %d, want 600", cfg.Extraction.RasterDPI)
	}
	if cfg.Validation.TimeoutSeconds != 5 {
		t.Errorf("validation timeout = %d, want 5", cfg.Validation.TimeoutSeconds)
	}
	if cfg.Bundle.Type != "collection" {
		t.Errorf("bundle type = %q, want collection", cfg.Bundle.Type)
	}
	if !filepath.IsAbs(cfg.Paths.StagingDir) {
		t.Errorf("staging dir %q not absolute", cfg.Paths.StagingDir)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[extraction]
raster_dpi = 300
ocr_language = "deu"

[validation]
endpoint = "https://validator.example.test/enrich"
timeout_seconds = 9

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Extraction.RasterDPI != 300 {
		t.Errorf("raster_dpi = %d, want 300", cfg.Extraction.RasterDPI)
	}
	if cfg.Extraction.OCRLanguage != "deu" {
		t.Errorf("ocr_language = %q, want deu", cfg.Extraction.OCRLanguage)
	}
	if cfg.Validation.Endpoint != "https://validator.example.test/enrich" {
		t.Errorf("validation endpoint = %q", cfg.Validation.Endpoint)
	}
	if cfg.Validation.TimeoutSeconds != 9 {
		t.Errorf("validation timeout = %d, want 9", cfg.Validation.TimeoutSeconds)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %q/%q, want json/debug", cfg.Logging.Format, cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Classifier.FileBinary != "file" {
		t.Errorf("file_binary = %q, want file", cfg.Classifier.FileBinary)
	}
}

func TestLoadEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FHIRHOSE_MAPPER_ENDPOINT", "http://mapper.example.test/map")
	t.Setenv("FHIRHOSE_VALIDATION_ENDPOINT", "http://validator.example.test/check")

	cfg, _, _, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mapper.Endpoint != "http://mapper.example.test/map" {
		t.Errorf("mapper endpoint = %q", cfg.Mapper.Endpoint)
	}
	if cfg.Validation.Endpoint != "http://validator.example.test/check" {
		t.Errorf("validation endpoint = %q", cfg.Validation.Endpoint)
	}
}

func TestLoadFileEndpointWinsOverEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FHIRHOSE_VALIDATION_ENDPOINT", "http://env.example.test")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[validation]
endpoint = "http://file.example.test"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Validation.Endpoint != "http://file.example.test" {
		t.Errorf("validation endpoint = %q, want file value", cfg.Validation.Endpoint)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errText string
	}{
		{
			name:    "negative raster dpi",
			mutate:  func(c *Config) { c.Extraction.RasterDPI = -1 },
			errText: "raster_dpi",
		},
		{
			name:    "zero validation timeout",
			mutate:  func(c *Config) { c.Validation.TimeoutSeconds = 0 },
			errText: "validation.timeout_seconds",
		},
		{
			name:    "heartbeat timeout not above interval",
			mutate:  func(c *Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval },
			errText: "heartbeat_timeout",
		},
		{
			name:    "bad endpoint scheme",
			mutate:  func(c *Config) { c.Validation.Endpoint = "ftp://host/path" },
			errText: "validation.endpoint",
		},
		{
			name:    "relative endpoint",
			mutate:  func(c *Config) { c.Mapper.Endpoint = "not-a-url" },
			errText: "mapper.endpoint",
		},
		{
			name:    "empty bundle type",
			mutate:  func(c *Config) { c.Bundle.Type = "" },
			errText: "bundle.type",
		},
		{
			name:    "unknown logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			errText: "logging.format",
		},
		{
			name:    "missing tesseract binary",
			mutate:  func(c *Config) { c.Extraction.TesseractBinary = "" },
			errText: "tesseract_binary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("error %q does not mention %q", err, tt.errText)
			}
		})
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths\ninbox_dir = oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandPathTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/fhirhose/inbox")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	want := filepath.Join(home, "fhirhose", "inbox")
	if got != want {
		t.Errorf("ExpandPath = %q, want %q", got, want)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.BundlesDir = filepath.Join(base, "bundles")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InboxDir, cfg.Paths.StagingDir, cfg.Paths.BundlesDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %q missing after EnsureDirectories", dir)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[extraction]") {
		t.Error("sample config missing [extraction] section")
	}
}
