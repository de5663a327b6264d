package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	base := `
server:
  port: ":9000"
db:
  host: localhost
  port: 5432
jwt:
  secret: dev
reconcile:
  enabled: true
  grace_sec: 30
`
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(dir, "local")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != ":9000" || cfg.JWT.Secret != "from-env" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Reconcile.Grace() != 30*time.Second || cfg.Reconcile.Interval() != 5*time.Minute {
		t.Errorf("unexpected reconcile timings %v / %v", cfg.Reconcile.Grace(), cfg.Reconcile.Interval())
	}
	if cfg.Outbox.Interval() != 2*time.Second {
		t.Errorf("outbox interval default = %v", cfg.Outbox.Interval())
	}
}
