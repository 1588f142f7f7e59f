package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/config"
	"github.com/tomasstrnad1997/minesweeper/mines"
)

var envNames = []string{"MINES_ADDR", "DB_PATH", "AUTH_SECRET", "TOKEN_TTL", "DEFAULT_LEVEL", "LOG_LEVEL"}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "mines.db")
	t.Setenv("AUTH_SECRET", "SECRET")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Addr != "0.0.0.0:42069" || cfg.TokenTTL != 24*time.Hour || cfg.DefaultLevel != mines.Easy || cfg.LogLevel != logrus.InfoLevel {
		t.Fatalf("Unexpected defaults %+v", cfg)
	}
	if cfg.DBPath != "mines.db" || string(cfg.AuthSecret) != "SECRET" {
		t.Fatalf("Unexpected required values %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "DB_PATH=/tmp/file.db\nAUTH_SECRET=from-file\nDEFAULT_LEVEL=Hard\nTOKEN_TTL=90m\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("AUTH_SECRET", "from-env")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DBPath != "/tmp/file.db" || cfg.DefaultLevel != mines.Hard || cfg.TokenTTL != 90*time.Minute || cfg.LogLevel != logrus.DebugLevel {
		t.Fatalf("File values not applied: %+v", cfg)
	}
	if string(cfg.AuthSecret) != "from-env" {
		t.Fatalf("File overrode the environment: %s", cfg.AuthSecret)
	}
}

func TestMissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "mines.db")
	t.Setenv("AUTH_SECRET", "SECRET")
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Missing env file rejected: %v", err)
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"no db path", map[string]string{"AUTH_SECRET": "s"}},
		{"no secret", map[string]string{"DB_PATH": "x.db"}},
		{"bad ttl", map[string]string{"DB_PATH": "x.db", "AUTH_SECRET": "s", "TOKEN_TTL": "soon"}},
		{"negative ttl", map[string]string{"DB_PATH": "x.db", "AUTH_SECRET": "s", "TOKEN_TTL": "-1h"}},
		{"custom level", map[string]string{"DB_PATH": "x.db", "AUTH_SECRET": "s", "DEFAULT_LEVEL": "custom"}},
		{"bad log level", map[string]string{"DB_PATH": "x.db", "AUTH_SECRET": "s", "LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := config.FromEnv(); err == nil {
				t.Fatalf("Expected an error")
			}
		})
	}
}

func TestDBPathOnly(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DB_PATH=/tmp/only.db\n"), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	got, err := config.DBPath(path)
	if err != nil {
		t.Fatalf("DB path without a secret rejected: %v", err)
	}
	if got != "/tmp/only.db" {
		t.Fatalf("DB path is %q", got)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatalf("Server config loaded without a secret")
	}
}

func TestDBPathMissing(t *testing.T) {
	clearEnv(t)
	if _, err := config.DBPath(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("Expected an error without DB_PATH")
	}
}
