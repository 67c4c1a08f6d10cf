// Package export writes facility manager snapshots to blob storage, synchronously or through
// a queued background worker.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vivariumcore/internal/blob"
	"vivariumcore/internal/core"
)

// KeyPrefix is the blob prefix under which every export is stored.
const KeyPrefix = "exports/"

// Status describes the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact is one stored object of an export.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Request asks for an export in the given formats; empty means every format.
type Request struct {
	Formats     []Format
	RequestedBy string
	Reason      string
}

// Record tracks an export and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	Facilities  int        `json:"facilities"`
	Buildings   int        `json:"buildings"`
	RequestedBy string     `json:"requestedBy,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (r Record) copy() Record {
	r.Formats = append([]Format(nil), r.Formats...)
	r.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}

// SnapshotSource supplies the state to export. *core.FacilityManager satisfies it.
type SnapshotSource interface {
	Snapshot() core.Snapshot
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the time source.
func WithClock(clock core.Clock) Option {
	return func(e *Exporter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger core.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAuditRecorder records one audit entry per export outcome.
func WithAuditRecorder(recorder core.AuditRecorder) Option {
	return func(e *Exporter) { e.audit = recorder }
}

// Exporter renders snapshots and uploads them.
type Exporter struct {
	source SnapshotSource
	store  blob.Store
	clock  core.Clock
	logger core.Logger
	audit  core.AuditRecorder
	newID  func() string
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// New builds an exporter reading from source and writing to store.
func New(source SnapshotSource, store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		store:  store,
		clock:  core.ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger: nopLogger{},
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func normalizeFormats(formats []Format) ([]Format, error) {
	if len(formats) == 0 {
		return AllFormats(), nil
	}
	out := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return nil, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// Export captures one snapshot and uploads every requested format concurrently. On failure
// the objects already written for this export are removed.
func (e *Exporter) Export(ctx context.Context, req Request) (Record, error) {
	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return Record{}, err
	}
	now := e.clock.Now()
	record := Record{
		ID:          e.newID(),
		Formats:     formats,
		Status:      StatusRunning,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return e.run(ctx, record)
}

func (e *Exporter) run(ctx context.Context, record Record) (Record, error) {
	started := e.clock.Now()
	snap := e.source.Snapshot()
	record.Facilities = len(snap.Facilities)
	record.Buildings = len(snap.Buildings)

	artifacts, err := e.upload(ctx, record.ID, record.Formats, snap)
	done := e.clock.Now()
	record.UpdatedAt = done
	record.CompletedAt = &done
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		e.logger.Error("export failed", "id", record.ID, "error", err)
	} else {
		record.Status = StatusSucceeded
		record.Artifacts = artifacts
		e.logger.Info("export completed", "id", record.ID, "artifacts", len(artifacts), "facilities", record.Facilities, "buildings", record.Buildings)
	}
	if e.audit != nil {
		entry := core.AuditEntry{
			Operation: "export_snapshot",
			EntityID:  record.ID,
			Status:    core.AuditStatusSuccess,
			Duration:  done.Sub(started),
			Timestamp: done,
		}
		if err != nil {
			entry.Status = core.AuditStatusError
			entry.Error = err.Error()
		}
		e.audit.Record(ctx, entry)
	}
	return record, err
}

func (e *Exporter) upload(ctx context.Context, id string, formats []Format, snap core.Snapshot) ([]Artifact, error) {
	var (
		mu        sync.Mutex
		artifacts []Artifact
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, format := range formats {
		g.Go(func() error {
			objects, err := render(format, snap)
			if err != nil {
				return err
			}
			for _, obj := range objects {
				key := path.Join(KeyPrefix, id, obj.name)
				info, err := e.store.Put(gctx, key, bytes.NewReader(obj.payload), blob.PutOptions{
					ContentType: obj.contentType,
					Metadata: map[string]string{
						"export-id": id,
						"format":    string(format),
						"rows":      strconv.Itoa(obj.rows),
					},
				})
				if err != nil {
					return fmt.Errorf("store %s: %w", key, err)
				}
				mu.Lock()
				artifacts = append(artifacts, Artifact{
					Key:         info.Key,
					Format:      format,
					ContentType: obj.contentType,
					SizeBytes:   int64(len(obj.payload)),
					Rows:        obj.rows,
					URL:         info.URL,
					CreatedAt:   info.LastModified,
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.cleanup(context.WithoutCancel(ctx), artifacts)
		return nil, err
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Key < artifacts[j].Key })
	return artifacts, nil
}

func (e *Exporter) cleanup(ctx context.Context, artifacts []Artifact) {
	for _, a := range artifacts {
		if _, err := e.store.Delete(ctx, a.Key); err != nil {
			e.logger.Warn("export cleanup failed", "key", a.Key, "error", err)
		}
	}
}

// List returns the ids of stored exports in key order.
func (e *Exporter) List(ctx context.Context) ([]string, error) {
	infos, err := e.store.List(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	seen := map[string]struct{}{}
	for _, info := range infos {
		id, _, ok := strings.Cut(strings.TrimPrefix(info.Key, KeyPrefix), "/")
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadSnapshot loads the JSON snapshot of export id.
func ReadSnapshot(ctx context.Context, store blob.Store, id string) (core.Snapshot, error) {
	key := path.Join(KeyPrefix, id, "snapshot.json")
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return core.Snapshot{}, fmt.Errorf("export %s has no json snapshot: %w", id, err)
		}
		return core.Snapshot{}, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return core.Snapshot{}, err
	}
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, nil
}
