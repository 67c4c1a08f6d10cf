// Package config loads vivariumcore settings: built-in defaults, then an optional YAML file,
// then VIVARIUM_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"vivariumcore/pkg/domain"
)

// Config is the root configuration structure.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Blob     BlobConfig     `yaml:"blob"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
	Auth     AuthConfig     `yaml:"auth"`
	Facility FacilityConfig `yaml:"facility"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver    string          `yaml:"driver"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Firestore FirestoreConfig `yaml:"firestore"`
}

// SQLiteConfig contains embedded database settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains server connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// FirestoreConfig names the Firebase project and service account file.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// BlobConfig selects where exported snapshots are written.
type BlobConfig struct {
	Driver string     `yaml:"driver"`
	FSRoot string     `yaml:"fs_root"`
	S3     BlobS3Conf `yaml:"s3"`
}

// BlobS3Conf contains S3 or S3-compatible endpoint settings.
type BlobS3Conf struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig selects the operation metrics exporter.
type MetricsConfig struct {
	Exporter string       `yaml:"exporter"`
	Influx   InfluxConfig `yaml:"influx"`
}

// InfluxConfig contains InfluxDB 2.x write settings.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// EventsConfig controls change-event publishing over MQTT.
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// AuthConfig contains token signing settings for the identity service.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// FacilityConfig selects the configuration preset applied to new facilities.
type FacilityConfig struct {
	Preset string `yaml:"preset"`
}

// Known driver and exporter names.
var (
	storageDrivers = []string{"memory", "sqlite", "postgres", "firestore"}
	blobDrivers    = []string{"memory", "fs", "s3"}
	exporters      = []string{"none", "expvar", "prometheus", "influx"}
	logFormats     = []string{"json", "console"}
	logLevels      = []string{"debug", "info", "warn", "error"}
)

const minJWTSecretLength = 32

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:   "sqlite",
			SQLite:   SQLiteConfig{Path: "./vivarium.db"},
			Postgres: PostgresConfig{DSN: "postgres://localhost/vivarium?sslmode=disable"},
		},
		Blob: BlobConfig{
			Driver: "fs",
			FSRoot: "./blobdata",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Exporter: "none",
			Influx:   InfluxConfig{URL: "http://localhost:8086", Bucket: "vivarium"},
		},
		Events: EventsConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "vivariumcore",
			TopicPrefix: "vivarium",
			QoS:         1,
		},
		Auth: AuthConfig{
			Issuer: "vivariumcore",
		},
		Facility: FacilityConfig{
			Preset: string(domain.PresetDefault),
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when path is
// empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := applyEnvOverrides(cfg, os.Getenv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies VIVARIUM_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"VIVARIUM_STORAGE_DRIVER":        &cfg.Storage.Driver,
		"VIVARIUM_SQLITE_PATH":           &cfg.Storage.SQLite.Path,
		"VIVARIUM_POSTGRES_DSN":          &cfg.Storage.Postgres.DSN,
		"VIVARIUM_FIRESTORE_PROJECT":     &cfg.Storage.Firestore.ProjectID,
		"VIVARIUM_FIRESTORE_CREDENTIALS": &cfg.Storage.Firestore.CredentialsFile,
		"VIVARIUM_BLOB_DRIVER":           &cfg.Blob.Driver,
		"VIVARIUM_BLOB_FS_ROOT":          &cfg.Blob.FSRoot,
		"VIVARIUM_BLOB_S3_BUCKET":        &cfg.Blob.S3.Bucket,
		"VIVARIUM_BLOB_S3_REGION":        &cfg.Blob.S3.Region,
		"VIVARIUM_BLOB_S3_ENDPOINT":      &cfg.Blob.S3.Endpoint,
		"VIVARIUM_BLOB_S3_ACCESS_KEY":    &cfg.Blob.S3.AccessKey,
		"VIVARIUM_BLOB_S3_SECRET_KEY":    &cfg.Blob.S3.SecretKey,
		"VIVARIUM_LOG_LEVEL":             &cfg.Logging.Level,
		"VIVARIUM_LOG_FORMAT":            &cfg.Logging.Format,
		"VIVARIUM_METRICS_EXPORTER":      &cfg.Metrics.Exporter,
		"VIVARIUM_INFLUX_URL":            &cfg.Metrics.Influx.URL,
		"VIVARIUM_INFLUX_TOKEN":          &cfg.Metrics.Influx.Token,
		"VIVARIUM_INFLUX_ORG":            &cfg.Metrics.Influx.Org,
		"VIVARIUM_INFLUX_BUCKET":         &cfg.Metrics.Influx.Bucket,
		"VIVARIUM_MQTT_BROKER":           &cfg.Events.Broker,
		"VIVARIUM_MQTT_CLIENT_ID":        &cfg.Events.ClientID,
		"VIVARIUM_MQTT_TOPIC_PREFIX":     &cfg.Events.TopicPrefix,
		"VIVARIUM_JWT_SECRET":            &cfg.Auth.JWTSecret,
		"VIVARIUM_JWT_ISSUER":            &cfg.Auth.Issuer,
		"VIVARIUM_FACILITY_PRESET":       &cfg.Facility.Preset,
	}
	for key, target := range strs {
		if v := getenv(key); v != "" {
			*target = v
		}
	}
	bools := map[string]*bool{
		"VIVARIUM_BLOB_S3_USE_PATH_STYLE": &cfg.Blob.S3.UsePathStyle,
		"VIVARIUM_MQTT_ENABLED":           &cfg.Events.Enabled,
	}
	for key, target := range bools {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*target = b
		}
	}
	if v := getenv("VIVARIUM_MQTT_QOS"); v != "" {
		qos, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VIVARIUM_MQTT_QOS: %w", err)
		}
		cfg.Events.QoS = qos
	}
	return nil
}

// normalize lower-cases the enumerated settings so "Memory" from a file or the environment
// selects the same driver as "memory".
func (c *Config) normalize() {
	for _, v := range []*string{
		&c.Storage.Driver,
		&c.Blob.Driver,
		&c.Logging.Level,
		&c.Logging.Format,
		&c.Metrics.Exporter,
		&c.Facility.Preset,
	} {
		*v = strings.ToLower(strings.TrimSpace(*v))
	}
}

func oneOf(value string, allowed []string) bool {
	return slices.Contains(allowed, value)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	if !oneOf(c.Storage.Driver, storageDrivers) {
		errs = append(errs, fmt.Sprintf("storage.driver must be one of %s", strings.Join(storageDrivers, ", ")))
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, "storage.postgres.dsn is required")
		}
	case "firestore":
		if c.Storage.Firestore.ProjectID == "" {
			errs = append(errs, "storage.firestore.project_id is required")
		}
	}
	if !oneOf(c.Blob.Driver, blobDrivers) {
		errs = append(errs, fmt.Sprintf("blob.driver must be one of %s", strings.Join(blobDrivers, ", ")))
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		errs = append(errs, "blob.s3.bucket is required")
	}
	if !oneOf(c.Logging.Level, logLevels) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !oneOf(c.Logging.Format, logFormats) {
		errs = append(errs, fmt.Sprintf("logging.format must be one of %s", strings.Join(logFormats, ", ")))
	}
	if !oneOf(c.Metrics.Exporter, exporters) {
		errs = append(errs, fmt.Sprintf("metrics.exporter must be one of %s", strings.Join(exporters, ", ")))
	}
	if c.Metrics.Exporter == "influx" && (c.Metrics.Influx.URL == "" || c.Metrics.Influx.Bucket == "") {
		errs = append(errs, "metrics.influx.url and metrics.influx.bucket are required")
	}
	if c.Events.QoS < 0 || c.Events.QoS > 2 {
		errs = append(errs, "events.qos must be 0, 1, or 2")
	}
	if c.Events.Enabled && c.Events.Broker == "" {
		errs = append(errs, "events.broker is required when events are enabled")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "auth.jwt_secret must be at least 32 characters")
	}
	if _, err := domain.ParsePreset(c.Facility.Preset); err != nil {
		errs = append(errs, "facility.preset: "+err.Error())
	}
	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}
	return nil
}

// FacilityPreset returns the parsed facility preset.
func (c *Config) FacilityPreset() domain.Preset {
	preset, err := domain.ParsePreset(c.Facility.Preset)
	if err != nil {
		return domain.PresetDefault
	}
	return preset
}
