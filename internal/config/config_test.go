package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hub.Port != 8089 {
		t.Errorf("hub port = %d, want 8089", cfg.Hub.Port)
	}
	if cfg.Display.Epsilon1 != 0.05 || cfg.Display.Epsilon2 != 1.5 {
		t.Errorf("epsilons = %v/%v", cfg.Display.Epsilon1, cfg.Display.Epsilon2)
	}
	if cfg.Display.CheckInterval.Std() != 2*time.Second {
		t.Errorf("check interval = %v", cfg.Display.CheckInterval.Std())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showsync.yaml")
	body := `
nats:
  url: nats://10.0.0.5:4222
hub:
  port: 9090
  presence_ttl: 45s
display:
  check_interval: 500ms
  epsilon2: 2.0
  hold_for_unlock: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATS.URL != "nats://10.0.0.5:4222" {
		t.Errorf("nats url = %q", cfg.NATS.URL)
	}
	if cfg.Hub.Port != 9090 {
		t.Errorf("hub port = %d", cfg.Hub.Port)
	}
	if cfg.Hub.PresenceTTL.Std() != 45*time.Second {
		t.Errorf("presence ttl = %v", cfg.Hub.PresenceTTL.Std())
	}
	if cfg.Display.CheckInterval.Std() != 500*time.Millisecond {
		t.Errorf("check interval = %v", cfg.Display.CheckInterval.Std())
	}
	if cfg.Display.Epsilon2 != 2.0 {
		t.Errorf("epsilon2 = %v", cfg.Display.Epsilon2)
	}
	if !cfg.Display.HoldForUnlock {
		t.Error("hold_for_unlock not applied")
	}
	// Untouched fields keep their defaults.
	if cfg.Display.Epsilon1 != 0.05 {
		t.Errorf("epsilon1 = %v, want default", cfg.Display.Epsilon1)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showsync.yaml")
	if err := os.WriteFile(path, []byte("hub:\n  presence_ttl: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "showsync.yaml")
	if err := os.WriteFile(path, []byte("hub:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SHOWSYNC_HUB_PORT", "7070")
	t.Setenv("SHOWSYNC_NATS_URL", "nats://hub.local:4222")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hub.Port != 7070 {
		t.Errorf("hub port = %d, want env override", cfg.Hub.Port)
	}
	if cfg.NATS.URL != "nats://hub.local:4222" {
		t.Errorf("nats url = %q, want env override", cfg.NATS.URL)
	}
}

func TestEnvOverridesTypedFields(t *testing.T) {
	t.Setenv("SHOWSYNC_PRESENCE_TTL", "1m")
	t.Setenv("SHOWSYNC_EPSILON2", "2.5")
	t.Setenv("SHOWSYNC_HOLD_FOR_UNLOCK", "true")
	t.Setenv("SHOWSYNC_LAUNCH_MPV", "false")
	t.Setenv("SHOWSYNC_STALL_TIMEOUT", "not-a-duration") // ignored, keeps default

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hub.PresenceTTL.Std() != time.Minute {
		t.Errorf("presence ttl = %v", cfg.Hub.PresenceTTL.Std())
	}
	if cfg.Display.Epsilon2 != 2.5 {
		t.Errorf("epsilon2 = %v", cfg.Display.Epsilon2)
	}
	if !cfg.Display.HoldForUnlock {
		t.Error("hold_for_unlock override not applied")
	}
	if cfg.Display.LaunchMPV {
		t.Error("launch_mpv override not applied")
	}
	if cfg.Display.StallTimeout.Std() != 10*time.Second {
		t.Errorf("unparsable duration should keep default, got %v", cfg.Display.StallTimeout.Std())
	}
}
