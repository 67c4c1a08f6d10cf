package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"vivariumcore/pkg/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Logging.Level != "info" || cfg.Metrics.Exporter != "none" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FacilityPreset() != domain.PresetDefault {
		t.Fatalf("preset = %s", cfg.FacilityPreset())
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: postgres
  postgres:
    dsn: postgres://db/vivarium
logging:
  level: debug
  format: console
metrics:
  exporter: prometheus
events:
  enabled: true
  broker: tcp://broker:1883
  qos: 2
facility:
  preset: secure
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.Postgres.DSN != "postgres://db/vivarium" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Events.Enabled || cfg.Events.QoS != 2 || cfg.Events.TopicPrefix != "vivarium" {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.FacilityPreset() != domain.PresetSecure {
		t.Errorf("preset = %s", cfg.FacilityPreset())
	}
	// Unset sections keep their defaults.
	if cfg.Blob.Driver != "fs" {
		t.Errorf("blob driver = %s", cfg.Blob.Driver)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "storage: [unterminated")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VIVARIUM_STORAGE_DRIVER", "memory")
	t.Setenv("VIVARIUM_LOG_LEVEL", "warn")
	t.Setenv("VIVARIUM_MQTT_ENABLED", "true")
	t.Setenv("VIVARIUM_MQTT_QOS", "0")
	t.Setenv("VIVARIUM_JWT_SECRET", strings.Repeat("s", 40))
	cfg, err := Load(writeConfig(t, "storage:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Logging.Level != "warn" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if !cfg.Events.Enabled || cfg.Events.QoS != 0 || len(cfg.Auth.JWTSecret) != 40 {
		t.Fatalf("env overrides not applied: %+v", cfg.Events)
	}
}

func TestLoad_BadEnvValues(t *testing.T) {
	t.Setenv("VIVARIUM_MQTT_ENABLED", "sometimes")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "VIVARIUM_MQTT_ENABLED") {
		t.Fatalf("expected bool parse error, got %v", err)
	}
	t.Setenv("VIVARIUM_MQTT_ENABLED", "")
	t.Setenv("VIVARIUM_MQTT_QOS", "high")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "VIVARIUM_MQTT_QOS") {
		t.Fatalf("expected qos parse error, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "floppy"
	cfg.Blob.Driver = "s3"
	cfg.Logging.Format = "xml"
	cfg.Metrics.Exporter = "statsd"
	cfg.Events.QoS = 3
	cfg.Auth.JWTSecret = "short"
	cfg.Facility.Preset = "paranoid"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{
		"storage.driver",
		"blob.s3.bucket",
		"logging.format",
		"metrics.exporter",
		"events.qos",
		"auth.jwt_secret",
		"facility.preset",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
	if !strings.HasPrefix(err.Error(), "configuration errors: ") {
		t.Errorf("unexpected prefix: %v", err)
	}
}

func TestValidate_DriverRequirements(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "firestore"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "project_id") {
		t.Fatalf("expected firestore project error, got %v", err)
	}
	cfg = Default()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.Postgres.DSN = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "postgres.dsn") {
		t.Fatalf("expected postgres dsn error, got %v", err)
	}
	cfg = Default()
	cfg.Metrics.Exporter = "influx"
	cfg.Metrics.Influx.Bucket = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "metrics.influx") {
		t.Fatalf("expected influx error, got %v", err)
	}
	cfg = Default()
	cfg.Events.Enabled = true
	cfg.Events.Broker = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "events.broker") {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestLoad_NormalizesEnumeratedValues(t *testing.T) {
	t.Setenv("VIVARIUM_STORAGE_DRIVER", "Memory")
	t.Setenv("VIVARIUM_BLOB_DRIVER", " MEMORY ")
	t.Setenv("VIVARIUM_LOG_LEVEL", "Warn")
	cfg, err := Load(writeConfig(t, "metrics:\n  exporter: Prometheus\nfacility:\n  preset: Secure\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := []string{cfg.Storage.Driver, cfg.Blob.Driver, cfg.Logging.Level, cfg.Metrics.Exporter, cfg.Facility.Preset}
	want := []string{"memory", "memory", "warn", "prometheus", "secure"}
	if !slices.Equal(got, want) {
		t.Fatalf("normalized values = %v, want %v", got, want)
	}

	raw := Default()
	raw.Storage.Driver = "Memory"
	if err := raw.Validate(); err == nil || !strings.Contains(err.Error(), "storage.driver") {
		t.Fatalf("Validate() must reject a driver name that was not normalized, got %v", err)
	}
}
