package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultQueueSize bounds pending background exports.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned by Enqueue when the backlog is at capacity.
	ErrQueueFull = errors.New("export queue full")
	// ErrWorkerStopped is returned by Enqueue after Stop.
	ErrWorkerStopped = errors.New("export worker stopped")
	// ErrUnknownExport is returned by Wait for ids the worker never queued.
	ErrUnknownExport = errors.New("unknown export")
)

// Worker runs exports in the background and tracks their status.
type Worker struct {
	exporter *Exporter

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record
	done  map[string]chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs a worker with a queue of the given size; non-positive sizes use
// DefaultQueueSize.
func NewWorker(exporter *Exporter, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		exporter: exporter,
		queue:    make(chan string, queueSize),
		jobs:     make(map[string]*Record),
		done:     make(map[string]chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the running export, if any.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue schedules an export and returns its queued record.
func (w *Worker) Enqueue(_ context.Context, req Request) (Record, error) {
	if w.ctx.Err() != nil {
		return Record{}, ErrWorkerStopped
	}
	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return Record{}, err
	}
	now := w.exporter.clock.Now()
	record := &Record{
		ID:          w.exporter.newID(),
		Formats:     formats,
		Status:      StatusQueued,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = record
	w.done[record.ID] = make(chan struct{})
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		delete(w.done, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.exporter.logger.Debug("export queued", "id", record.ID)
	return queued, nil
}

// Wait blocks until export id finishes or ctx ends. A failed export is returned with its
// record's error.
func (w *Worker) Wait(ctx context.Context, id string) (Record, error) {
	w.mu.RLock()
	done, ok := w.done[id]
	w.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownExport, id)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
	record, _ := w.Get(id)
	if record.Status == StatusFailed {
		return record, fmt.Errorf("export %s failed: %s", id, record.Error)
	}
	return record, nil
}

// Get returns the current record for id.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(id string) {
	w.mu.Lock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	record.Status = StatusRunning
	record.UpdatedAt = w.exporter.clock.Now()
	running := record.copy()
	w.mu.Unlock()

	// The outcome is carried on the record.
	result, _ := w.exporter.run(w.ctx, running)

	w.mu.Lock()
	*record = result
	close(w.done[id])
	w.mu.Unlock()
}
