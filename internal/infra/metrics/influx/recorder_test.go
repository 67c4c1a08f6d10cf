package influx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type capturingWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *capturingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *capturingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, field := range p.FieldList() {
		out[field.Key] = field.Value
	}
	return out
}

func TestObserveWritesTaggedPoint(t *testing.T) {
	w := &capturingWriter{}
	r := newRecorder(w, nil)
	r.Observe(context.Background(), "create_facility", true, 1500*time.Microsecond)
	r.Observe(context.Background(), "delete_building", false, time.Millisecond)

	if len(w.points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(w.points))
	}
	first := w.points[0]
	if first.Name() != Measurement {
		t.Fatalf("measurement = %s", first.Name())
	}
	if got := tags(first); got["operation"] != "create_facility" || got["status"] != "success" {
		t.Fatalf("tags = %v", got)
	}
	if got := fields(first)["duration_ms"]; got != 1.5 {
		t.Fatalf("duration_ms = %v", got)
	}
	if got := tags(w.points[1])["status"]; got != "error" {
		t.Fatalf("status = %s", got)
	}
}

func TestCloseFlushesAndDropsLaterObservations(t *testing.T) {
	w := &capturingWriter{}
	released := false
	r := newRecorder(w, func() { released = true })
	r.Flush()
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 2 || !released {
		t.Fatalf("flushes = %d, released = %v", w.flushes, released)
	}
	r.Observe(context.Background(), "create_facility", true, time.Millisecond)
	r.Flush()
	if len(w.points) != 0 || w.flushes != 2 {
		t.Fatalf("closed recorder must not write")
	}
	if err := r.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	r := newRecorder(&capturingWriter{}, nil)
	got := make(chan error, 1)
	r.SetOnError(func(err error) { got <- err })
	errs := make(chan error, 1)
	errs <- errors.New("bucket not found")
	close(errs)
	r.handleWriteErrors(errs)
	select {
	case err := <-got:
		if err.Error() != "bucket not found" {
			t.Fatalf("unexpected error %v", err)
		}
	default:
		t.Fatalf("callback not invoked")
	}
}

func TestConnectUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := Connect(ctx, Config{URL: "http://127.0.0.1:1", Bucket: "b"}); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("expected connection failure, got %v", err)
	}
}
