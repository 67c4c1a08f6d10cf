package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"vivariumcore/internal/blob"
	"vivariumcore/internal/config"
	"vivariumcore/internal/core"
	"vivariumcore/internal/infra/events/mqtt"
	"vivariumcore/internal/infra/metrics/influx"
	"vivariumcore/internal/logging"
)

// app carries the wiring shared by every subcommand. Components are opened lazily so
// commands such as "config show" never touch storage.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	output     string
	trace      bool

	cfg     config.Config
	log     *logging.Logger
	manager *core.FacilityManager
	store   blob.Store

	expvar   *core.ExpvarMetricsRecorder
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	zl, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.cfg = *cfg
	a.log = logging.Wrap(zl)
	return nil
}

func (a *app) onClose(fn func() error) { a.closers = append(a.closers, fn) }

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.logMetrics()
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) storageOptions() core.StorageOptions {
	s := a.cfg.Storage
	return core.StorageOptions{
		Driver:               core.StorageDriver(s.Driver),
		SQLitePath:           s.SQLite.Path,
		PostgresDSN:          s.Postgres.DSN,
		FirestoreProject:     s.Firestore.ProjectID,
		FirestoreCredentials: s.Firestore.CredentialsFile,
	}
}

func (a *app) metricsRecorder(ctx context.Context) (core.MetricsRecorder, error) {
	switch a.cfg.Metrics.Exporter {
	case "expvar":
		a.expvar = core.NewExpvarMetricsRecorder("")
		return a.expvar, nil
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		return core.NewPrometheusMetricsRecorder(a.registry)
	case "influx":
		in := a.cfg.Metrics.Influx
		rec, err := influx.Connect(ctx, influx.Config{URL: in.URL, Token: in.Token, Org: in.Org, Bucket: in.Bucket})
		if err != nil {
			return nil, err
		}
		rec.SetOnError(func(err error) { a.log.Warn("influx write failed", "error", err) })
		a.onClose(rec.Close)
		return rec, nil
	default:
		return nil, nil
	}
}

func (a *app) eventPublisher() (core.EventPublisher, error) {
	ev := a.cfg.Events
	if !ev.Enabled {
		return nil, nil
	}
	pub, err := mqtt.Connect(mqtt.Config{
		Broker:      ev.Broker,
		ClientID:    ev.ClientID,
		TopicPrefix: ev.TopicPrefix,
		QoS:         byte(ev.QoS),
	})
	if err != nil {
		return nil, err
	}
	a.onClose(pub.Close)
	return pub, nil
}

// facilityManager opens the repository and hydrates a manager from it.
func (a *app) facilityManager(ctx context.Context) (*core.FacilityManager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	repo, closer, err := core.OpenRepository(ctx, a.storageOptions())
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", a.cfg.Storage.Driver, err)
	}
	a.onClose(closer.Close)

	opts := []core.Option{
		core.WithRepository(repo),
		core.WithLogger(a.log.Named("manager")),
		core.WithAuditRecorder(auditLogger{log: a.log.Named("audit")}),
	}
	metrics, err := a.metricsRecorder(ctx)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		opts = append(opts, core.WithMetricsRecorder(metrics))
	}
	publisher, err := a.eventPublisher()
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		opts = append(opts, core.WithEventPublisher(publisher))
	}
	if a.trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr, nil)))
	}

	m := core.NewFacilityManager(opts...)
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	a.manager = m
	return m, nil
}

func (a *app) blobStore(ctx context.Context) (blob.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	b := a.cfg.Blob
	store, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(b.Driver),
		FSRoot: b.FSRoot,
		S3: blob.S3Config{
			Bucket:          b.S3.Bucket,
			Region:          b.S3.Region,
			Endpoint:        b.S3.Endpoint,
			UsePathStyle:    b.S3.UsePathStyle,
			AccessKeyID:     b.S3.AccessKey,
			SecretAccessKey: b.S3.SecretKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s blob store: %w", b.Driver, err)
	}
	a.store = store
	return store, nil
}

func (a *app) logMetrics() {
	if a.log == nil {
		return
	}
	if a.expvar != nil {
		snap := a.expvar.Snapshot()
		a.log.Debug("operation metrics", "exporter", "expvar", "name", a.expvar.Name(), "operations", snap.Operations)
	}
	if a.registry != nil {
		families, err := a.registry.Gather()
		if err != nil {
			a.log.Warn("gathering metrics failed", "error", err)
			return
		}
		for _, mf := range families {
			a.log.Debug("operation metrics", "exporter", "prometheus", "family", mf.GetName(), "series", len(mf.GetMetric()))
		}
	}
}

// auditLogger records manager audit entries in the structured log.
type auditLogger struct {
	log *logging.Logger
}

func (l auditLogger) Record(_ context.Context, entry core.AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"entity", entry.Entity,
		"id", entry.EntityID,
		"status", entry.Status,
		"duration", entry.Duration,
	}
	if entry.Error != "" {
		args = append(args, "error", entry.Error)
	}
	l.log.Info("audit", args...)
}
