package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cellswarm/config"
	"cellswarm/inflate"
)

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := runCmd()
	if err := cmd.ParseFlags([]string{"--control-addr", ":7000", "--metrics-addr", "off", "-p", "list.txt", "--track-own-cells"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := config.Defaults()
	var f runFlags
	f.controlAddr, _ = cmd.Flags().GetString("control-addr")
	f.metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	f.proxyFile, _ = cmd.Flags().GetString("proxies")
	f.trackOwnCells, _ = cmd.Flags().GetBool("track-own-cells")
	f.apply(cmd, &cfg)

	if cfg.ControlAddr != ":7000" || cfg.ProxyFile != "list.txt" || !cfg.TrackOwnCells {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.MetricsAddr != "" {
		t.Fatalf("metrics should be disabled, got %q", cfg.MetricsAddr)
	}
	if cfg.NamePrefix != config.Defaults().NamePrefix {
		t.Fatalf("unset flag overrode name prefix: %q", cfg.NamePrefix)
	}
}

func TestProxiesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(path, []byte("10.0.0.1:8080\n10.0.0.2:8080:bob:hunter2\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := proxiesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-p", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "2 proxies") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if strings.Contains(out.String(), "hunter2") {
		t.Fatalf("password printed: %q", out.String())
	}
}

func TestCompressionFlagListsEveryDecompressor(t *testing.T) {
	usage := runCmd().Flags().Lookup("compression").Usage
	for _, name := range []string{"flate", "lz4", "zstd"} {
		if _, err := inflate.ByName(name); err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if !strings.Contains(usage, name) {
			t.Fatalf("--compression usage %q does not mention %s", usage, name)
		}
	}
}
