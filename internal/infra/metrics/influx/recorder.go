// Package influx records facility manager operation metrics as InfluxDB points.
package influx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"vivariumcore/internal/core"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 100
	defaultFlushMillis    = 10_000

	// Measurement is the measurement name for operation points.
	Measurement = "vivarium_operations"
)

var (
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrClosed           = errors.New("influxdb: recorder closed")
)

var _ core.MetricsRecorder = (*Recorder)(nil)

// Config names the server and destination bucket.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// pointWriter is the slice of api.WriteAPI the recorder uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Recorder implements core.MetricsRecorder with non-blocking batched writes.
type Recorder struct {
	writer pointWriter
	close  func()

	mu      sync.RWMutex
	closed  bool
	onError func(err error)
}

// Connect pings the server and returns a recorder writing to cfg.Bucket.
func Connect(ctx context.Context, cfg Config) (*Recorder, error) {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(defaultBatchSize).
			SetFlushInterval(defaultFlushMillis),
	)
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := newRecorder(writeAPI, client.Close)
	go r.handleWriteErrors(writeAPI.Errors())
	return r, nil
}

func newRecorder(w pointWriter, closeFn func()) *Recorder {
	return &Recorder{writer: w, close: closeFn}
}

func (r *Recorder) handleWriteErrors(errs <-chan error) {
	for err := range errs {
		r.mu.RLock()
		callback := r.onError
		r.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError installs a callback for asynchronous write failures.
func (r *Recorder) SetOnError(callback func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// Observe implements core.MetricsRecorder.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	point := write.NewPoint(
		Measurement,
		map[string]string{
			"operation": operation,
			"status":    status,
		},
		map[string]interface{}{
			"count":       1,
			"duration_ms": float64(duration) / float64(time.Millisecond),
		},
		time.Now(),
	)
	r.writer.WritePoint(point)
}

// Flush forces buffered points to the server.
func (r *Recorder) Flush() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.closed {
		r.writer.Flush()
	}
}

// Close flushes pending points and releases the client. Later observations are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	r.mu.Unlock()
	r.writer.Flush()
	if r.close != nil {
		r.close()
	}
	return nil
}
