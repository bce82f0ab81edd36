package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8080)
	}
	if cfg.Store.CacheSize != 10_000 {
		t.Errorf("Store.CacheSize = %d, want %d", cfg.Store.CacheSize, 10_000)
	}
	if !cfg.Native.UseNative {
		t.Error("Native.UseNative should default to true")
	}
	if cfg.Telemetry.Mode != TelemetryAggregate {
		t.Errorf("Telemetry.Mode = %q, want %q", cfg.Telemetry.Mode, TelemetryAggregate)
	}
	if cfg.Worker.Leader {
		t.Error("Worker.Leader should default to false (opt-in)")
	}
	if !cfg.Worker.EnableForgettingAlert {
		t.Error("Worker.EnableForgettingAlert should default to true")
	}
	if cfg.Worker.ForgettingAlertSchedule != "*/15 * * * *" {
		t.Errorf("Worker.ForgettingAlertSchedule = %q, want %q", cfg.Worker.ForgettingAlertSchedule, "*/15 * * * *")
	}
}

func TestApplyEnvOverrides_UseNative(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("AMAS_USE_NATIVE", "false")
	ApplyEnvOverrides(&cfg)
	if cfg.Native.UseNative {
		t.Error("expected AMAS_USE_NATIVE=false to disable the native accelerator")
	}
}

func TestApplyEnvOverrides_TelemetryMode(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("AMAS_TELEMETRY_MODE", "console")
	ApplyEnvOverrides(&cfg)
	if cfg.Telemetry.Mode != TelemetryConsole {
		t.Errorf("Telemetry.Mode = %q, want %q", cfg.Telemetry.Mode, TelemetryConsole)
	}
}

func TestApplyEnvOverrides_InvalidTelemetryModeIgnored(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("AMAS_TELEMETRY_MODE", "bogus")
	ApplyEnvOverrides(&cfg)
	if cfg.Telemetry.Mode != TelemetryAggregate {
		t.Errorf("Telemetry.Mode = %q, want default preserved on invalid override", cfg.Telemetry.Mode)
	}
}

func TestApplyEnvOverrides_WorkerLeaderAndForgettingAlert(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("WORKER_LEADER", "true")
	t.Setenv("ENABLE_FORGETTING_ALERT_WORKER", "false")
	t.Setenv("FORGETTING_ALERT_SCHEDULE", "*/5 * * * *")
	ApplyEnvOverrides(&cfg)

	if !cfg.Worker.Leader {
		t.Error("expected WORKER_LEADER=true to set Worker.Leader")
	}
	if cfg.Worker.EnableForgettingAlert {
		t.Error("expected ENABLE_FORGETTING_ALERT_WORKER=false to disable the worker")
	}
	if cfg.Worker.ForgettingAlertSchedule != "*/5 * * * *" {
		t.Errorf("ForgettingAlertSchedule = %q, want override applied", cfg.Worker.ForgettingAlertSchedule)
	}
}

func TestLoadConfig_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Port = %d, want default 8080 when config file is absent", cfg.API.Port)
	}
}

func TestLoadConfig_ReadsTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amas.toml")
	contents := "[api]\nhost = \"0.0.0.0\"\nport = 9090\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9090 {
		t.Errorf("API = %+v, want host=0.0.0.0 port=9090", cfg.API)
	}
}
