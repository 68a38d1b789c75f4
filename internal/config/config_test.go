package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
connect:
  host: localhost
  port: 1521
  service_name: orclpdb1
  username: testuser
  password: testpass

pool:
  min: 2
  max: 20
  increment: 2
  getmode: WAIT
  acquire_timeout: 10s
  ping_interval: 60s

pools:
  reporting:
    service_name: orclpdb1
    username: reportuser
    password: reportpass
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Connect.Host != "localhost" {
		t.Errorf("expected host localhost, got %s", cfg.Connect.Host)
	}
	if cfg.Connect.Port != 1521 {
		t.Errorf("expected port 1521, got %d", cfg.Connect.Port)
	}
	if cfg.Pool.Max != 20 {
		t.Errorf("expected max 20, got %d", cfg.Pool.Max)
	}
	if cfg.Pool.AcquireTimeout != 10*time.Second {
		t.Errorf("expected acquire timeout 10s, got %v", cfg.Pool.AcquireTimeout)
	}

	pc, ok := cfg.Pools["reporting"]
	if !ok {
		t.Fatal("reporting pool not found")
	}
	if pc.Username != "reportuser" {
		t.Errorf("expected username reportuser, got %s", pc.Username)
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_DB_PASSWORD", "secret123")
	defer os.Unsetenv("TEST_DB_PASSWORD")

	yaml := `
connect:
  host: localhost
  port: 1521
  username: user

pools:
  test:
    service_name: orclpdb1
    username: user
    password: ${TEST_DB_PASSWORD}
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	pc := cfg.Pools["test"]
	if pc.Password != "secret123" {
		t.Errorf("expected password secret123, got %s", pc.Password)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing host",
			yaml: `
pools:
  p1:
    username: user
`,
		},
		{
			name: "missing port",
			yaml: `
connect:
  host: localhost
pools:
  p1:
    username: user
`,
		},
		{
			name: "missing username",
			yaml: `
connect:
  host: localhost
  port: 1521
pools:
  p1: {}
`,
		},
		{
			name: "unsupported getmode",
			yaml: `
connect:
  host: localhost
  port: 1521
  username: user
pool:
  getmode: BOGUS
pools:
  p1: {}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	yaml := `
connect:
  host: localhost
  port: 1521
  username: user
pools: {}
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pool.Min != 1 {
		t.Errorf("expected default min 1, got %d", cfg.Pool.Min)
	}
	if cfg.Pool.Max != 10 {
		t.Errorf("expected default max 10, got %d", cfg.Pool.Max)
	}
	if cfg.Pool.GetMode != "WAIT" {
		t.Errorf("expected default getmode WAIT, got %s", cfg.Pool.GetMode)
	}
	if cfg.Connect.Mode != "DEFAULT" {
		t.Errorf("expected default mode DEFAULT, got %s", cfg.Connect.Mode)
	}
	if cfg.Connect.Purity != "DEFAULT" {
		t.Errorf("expected default purity DEFAULT, got %s", cfg.Connect.Purity)
	}
}

func TestPoolConfigEffectiveValues(t *testing.T) {
	defaults := PoolDefaults{
		Min:            2,
		Max:            20,
		Increment:      1,
		GetMode:        "WAIT",
		AcquireTimeout: 10 * time.Second,
		PingInterval:   60 * time.Second,
		MaxLifetime:    30 * time.Minute,
	}

	max := 50
	pc := PoolConfig{
		Max: &max,
	}

	if pc.EffectiveMin(defaults) != 2 {
		t.Error("expected default min")
	}
	if pc.EffectiveMax(defaults) != 50 {
		t.Error("expected overridden max of 50")
	}
	if pc.EffectivePingInterval(defaults) != 60*time.Second {
		t.Error("expected default ping interval")
	}
	if pc.EffectiveAcquireTimeout(defaults) != 10*time.Second {
		t.Error("expected default acquire timeout")
	}

	at := 3 * time.Second
	pc.AcquireTimeout = &at
	if pc.EffectiveAcquireTimeout(defaults) != 3*time.Second {
		t.Error("expected overridden acquire timeout of 3s")
	}

	if pc.EffectiveGetMode(defaults) != "WAIT" {
		t.Error("expected default getmode")
	}
	pc.GetMode = "NOWAIT"
	if pc.EffectiveGetMode(defaults) != "NOWAIT" {
		t.Error("expected overridden getmode NOWAIT")
	}
}

func TestPoolConfigRedacted(t *testing.T) {
	pc := PoolConfig{Username: "scott", Password: "tiger"}
	r := pc.Redacted()
	if r.Password != "***REDACTED***" {
		t.Errorf("expected password redacted, got %s", r.Password)
	}
	if pc.Password != "tiger" {
		t.Error("Redacted must not mutate the receiver's copy source")
	}
}

func TestValidateAllGetModes(t *testing.T) {
	for _, mode := range []string{"WAIT", "NOWAIT", "FORCEGET", "TIMEDWAIT"} {
		yaml := `
connect:
  host: localhost
  port: 1521
  username: user
pool:
  getmode: ` + mode + `
pools:
  p1: {}
`
		path := writeTemp(t, yaml)
		if _, err := Load(path); err != nil {
			t.Errorf("getmode %s: unexpected error: %v", mode, err)
		}
	}
}

func TestPoolInheritsConnectDefaults(t *testing.T) {
	yaml := `
connect:
  host: localhost
  port: 1521
  username: user
pools:
  p1:
    service_name: orclpdb1
`
	path := writeTemp(t, yaml)
	if _, err := Load(path); err != nil {
		t.Fatalf("expected pool without its own host/port/username to inherit connect defaults, got %v", err)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
