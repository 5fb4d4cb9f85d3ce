package config

import (
	"os"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%q): %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Server.InstanceID == "" {
		t.Error("server.instance_id should default to the hostname")
	}
	if cfg.Presence.HeartbeatInterval != time.Minute {
		t.Errorf("presence.heartbeat_interval = %v", cfg.Presence.HeartbeatInterval)
	}
	if cfg.Presence.StaleThreshold != 2*time.Minute {
		t.Errorf("presence.stale_threshold = %v", cfg.Presence.StaleThreshold)
	}
	if cfg.Dedup.CleanupInterval != time.Hour || cfg.Dedup.Retention != 2*time.Hour {
		t.Errorf("dedup = %+v", cfg.Dedup)
	}
	if cfg.Broker.Driver != "kafka" || cfg.Broker.PublishTimeout != 5*time.Second {
		t.Errorf("broker = %+v", cfg.Broker)
	}
	if cfg.Database.Port != 5432 || cfg.Database.DBName != "chat_presence" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.IDGen.Kind != "uuid" {
		t.Errorf("idgen.kind = %q", cfg.IDGen.Kind)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9100")
	t.Setenv("BROKER_DRIVER", "nats")
	t.Setenv("PRESENCE_HEARTBEAT_INTERVAL", "15s")
	t.Setenv("DEDUP_RETENTION", "3h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Broker.Driver != "nats" {
		t.Errorf("broker.driver = %q, want nats", cfg.Broker.Driver)
	}
	if cfg.Presence.HeartbeatInterval != 15*time.Second {
		t.Errorf("presence.heartbeat_interval = %v, want 15s", cfg.Presence.HeartbeatInterval)
	}
	if cfg.Dedup.Retention != 3*time.Hour {
		t.Errorf("dedup.retention = %v, want 3h", cfg.Dedup.Retention)
	}
}
