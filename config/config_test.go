package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mbocsi/lightwaverf/client"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hub.Address != client.BroadcastAddress || !cfg.Hub.DiscoverLinkIP {
		t.Errorf("Expected broadcast address with discovery, got %+v", cfg.Hub)
	}
	if cfg.Hub.SendPort != 9760 || cfg.Hub.ReceivePort != 9761 {
		t.Errorf("Expected ports 9760/9761, got %d/%d", cfg.Hub.SendPort, cfg.Hub.ReceivePort)
	}
	if cfg.Queue.Spacing.Duration != 800*time.Millisecond || cfg.Queue.Timeout.Duration != 10*time.Second {
		t.Errorf("Unexpected queue defaults %+v", cfg.Queue)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.RateLimit != 60 || !cfg.Link.DisplayUpdates {
		t.Errorf("Unexpected defaults %+v %+v", cfg.HTTP, cfg.Link)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[hub]
address = "192.168.1.50"
discover_link_ip = false

[queue]
spacing = "250ms"
timeout = "3s"

[account]
email = "me@example.com"
pin = "1234"

[log]
level = "debug"
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hub.Address != "192.168.1.50" || cfg.Hub.DiscoverLinkIP {
		t.Errorf("Unexpected hub config %+v", cfg.Hub)
	}
	if cfg.Hub.SendPort != 9760 {
		t.Errorf("Expected default send port to survive, got %d", cfg.Hub.SendPort)
	}
	if cfg.Queue.Spacing.Duration != 250*time.Millisecond || cfg.Queue.Timeout.Duration != 3*time.Second {
		t.Errorf("Unexpected queue config %+v", cfg.Queue)
	}
	if cfg.Queue.RetryGrace.Duration != 5*time.Second {
		t.Errorf("Expected default retry grace, got %s", cfg.Queue.RetryGrace)
	}
	if !cfg.Account.Configured() {
		t.Error("Expected account to be configured")
	}

	opts := cfg.ClientOptions()
	if opts.Address != "192.168.1.50" || opts.Queue.Spacing != 250*time.Millisecond {
		t.Errorf("Unexpected client options %+v", opts)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
hub:
  address: 10.0.0.2
queue:
  max_backoff: 4s
http:
  addr: 127.0.0.1:9000
  rate_limit: 0
link:
  display_updates: false
  user: alice
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hub.Address != "10.0.0.2" || cfg.Queue.MaxBackoff.Duration != 4*time.Second {
		t.Errorf("Unexpected config %+v %+v", cfg.Hub, cfg.Queue)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" || cfg.HTTP.RateLimit != 0 {
		t.Errorf("Unexpected http config %+v", cfg.HTTP)
	}
	if cfg.Link.DisplayUpdates || cfg.Link.User != "alice" {
		t.Errorf("Unexpected link config %+v", cfg.Link)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad duration": "[queue]\nspacing = \"soon\"\n",
		"zero timeout": "[queue]\ntimeout = \"0s\"\n",
		"bad port":     "[hub]\nsend_port = 70000\n",
		"bad level":    "[log]\nlevel = \"loud\"\n",
		"bad syntax":   "[hub\n",
	}
	for name, content := range tests {
		if _, err := Load(writeFile(t, "config.toml", content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Hub.Address = ""
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"hub.address", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %v", want, err)
		}
	}
}
