package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v, want %+v", cfg, Default())
	}
	if got := cfg.Limits().MaxDecompressedSize; got != cfg.MaxDecompressedSize {
		t.Fatalf("limits = %d", got)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "testado.yaml")
	data := "log_level: debug\nworkers: 3\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TESTADO_WORKERS", "5")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-format", "text", "")
	flags.Int("workers", 1, "")
	if err := flags.Parse([]string{"--log-format", "logfmt"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{ConfigPath: path, Flags: flags})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level from file = %q", cfg.LogLevel)
	}
	if cfg.Workers != 5 {
		t.Fatalf("workers from env = %d", cfg.Workers)
	}
	if cfg.LogFormat != "logfmt" {
		t.Fatalf("log_format from flag = %q", cfg.LogFormat)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testado.toml")
	if err := os.WriteFile(path, []byte("max_decompressed_size = 1024\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(LoadOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxDecompressedSize != 1024 {
		t.Fatalf("max_decompressed_size = %d", cfg.MaxDecompressedSize)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatalf("missing config file accepted")
	}
	if _, err := Load(LoadOptions{ConfigPath: t.TempDir()}); err == nil {
		t.Fatalf("directory accepted as config")
	}

	t.Setenv("TESTADO_WORKERS", "0")
	t.Setenv("TESTADO_LOG_LEVEL", "loud")
	_, err := Load(LoadOptions{})
	if err == nil {
		t.Fatalf("invalid settings accepted")
	}
	for _, want := range []string{"workers", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
