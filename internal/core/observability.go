package core

import (
	"context"
	"strings"
	"time"
)

// Logger is the structured logging surface the manager depends on. Arguments after the
// message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome and latency of manager operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around manager operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditStatus classifies an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry records one manager operation.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Entity    EntityType    `json:"entity,omitempty"`
	Action    Action        `json:"action,omitempty"`
	EntityID  string        `json:"entityId,omitempty"`
	Status    AuditStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// ChangeEvent describes a committed mutation.
type ChangeEvent struct {
	Entity     EntityType `json:"entity"`
	Action     Action     `json:"action"`
	ID         string     `json:"id"`
	FacilityID string     `json:"facilityId,omitempty"`
	At         time.Time  `json:"at"`
}

// EventPublisher receives change events after they are committed. Errors are logged by the
// manager and never undo the mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

type noopEventPublisher struct{}

func (noopEventPublisher) Publish(context.Context, ChangeEvent) error { return nil }

// operationParts splits names such as "update_facility_configuration" into the action and
// entity recorded in audit entries.
func operationParts(operation string) (Action, EntityType) {
	verb, rest, ok := strings.Cut(operation, "_")
	if !ok {
		return "", ""
	}
	var action Action
	switch verb {
	case "create":
		action = ActionCreate
	case "update", "touch":
		action = ActionUpdate
	case "delete":
		action = ActionDelete
	default:
		return "", ""
	}
	switch {
	case strings.HasPrefix(rest, string(EntityFacility)):
		return action, EntityFacility
	case strings.HasPrefix(rest, string(EntityBuilding)):
		return action, EntityBuilding
	}
	return action, ""
}

func (m *FacilityManager) observe(ctx context.Context, operation string) (context.Context, func(entityID string, err error)) {
	started := m.clock.Now()
	ctx, span := m.tracer.Start(ctx, operation)
	return ctx, func(entityID string, err error) {
		duration := m.clock.Now().Sub(started)
		span.End(err)
		m.metrics.Observe(ctx, operation, err == nil, duration)
		action, entity := operationParts(operation)
		entry := AuditEntry{
			Operation: operation,
			Entity:    entity,
			Action:    action,
			EntityID:  entityID,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: m.clock.Now().UTC(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
			m.logger.Warn("operation failed", "operation", operation, "id", entityID, "error", err)
		} else {
			m.logger.Debug("operation completed", "operation", operation, "id", entityID, "duration", duration)
		}
		m.audit.Record(ctx, entry)
	}
}
