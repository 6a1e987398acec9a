package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"CONTROL_ADDR", "PROXY_FILE", "METRICS_ADDR", "LOG_LEVEL", "LOG_DEV",
		"COMPRESSION", "NAME_PREFIX", "ORIGIN", "USER_AGENT", "TRACK_OWN_CELLS",
		"HANDSHAKE_TIMEOUT", "SPAWN_STAGGER",
	} {
		t.Setenv(k, "")
	}
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c != Defaults() {
		t.Fatalf("expected defaults, got %+v", c)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CONTROL_ADDR", "127.0.0.1:7000")
	t.Setenv("METRICS_ADDR", "off")
	t.Setenv("SPAWN_STAGGER", "1s")
	t.Setenv("TRACK_OWN_CELLS", "true")
	t.Setenv("NAME_PREFIX", "Swarm")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ControlAddr != "127.0.0.1:7000" || c.NamePrefix != "Swarm" {
		t.Fatalf("string overrides not applied: %+v", c)
	}
	if c.MetricsAddr != "" {
		t.Fatalf("metrics should be disabled, got %q", c.MetricsAddr)
	}
	if c.SpawnStagger != time.Second || !c.TrackOwnCells {
		t.Fatalf("typed overrides not applied: %+v", c)
	}
}

func TestLoadReportsBadValues(t *testing.T) {
	t.Setenv("HANDSHAKE_TIMEOUT", "soon")
	t.Setenv("LOG_DEV", "maybe")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad values")
	}
}

func TestInitConfigMissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := InitConfig(); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
}

func TestInitConfigMissingNamedFileFails(t *testing.T) {
	err := InitConfig(filepath.Join(t.TempDir(), "prod.env"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestInitConfigLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NAME_PREFIX=FromFile\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("NAME_PREFIX", "")
	os.Unsetenv("NAME_PREFIX")
	if err := InitConfig(path); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	if v, _ := GetEnvVariable("NAME_PREFIX"); v != "FromFile" {
		t.Fatalf("NAME_PREFIX = %q", v)
	}
}

func TestGetEnvVariable(t *testing.T) {
	if _, err := GetEnvVariable(""); err == nil {
		t.Fatalf("expected error for empty name")
	}
	t.Setenv("CELLSWARM_TEST_VAR", "")
	if _, err := GetEnvVariable("CELLSWARM_TEST_VAR"); err == nil {
		t.Fatalf("expected error for unset variable")
	}
}
