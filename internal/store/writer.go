package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned by Enqueue when the task queue has no free slot
	ErrQueueFull = errors.New("writer queue is full")

	// ErrWriterStopped is returned once the writer has stopped draining tasks
	ErrWriterStopped = errors.New("writer is stopped")
)

// Writer is the single logical execution context allowed to mutate the
// Store. Tasks are drained strictly in arrival order by one goroutine.
type Writer struct {
	tasks chan func()

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// NewWriter creates a writer with a bounded queue of the given size
func NewWriter(size int) *Writer {
	if size <= 0 {
		size = 1
	}
	return &Writer{
		tasks:   make(chan func(), size),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled. Tasks still queued at that
// point are abandoned.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.tasks:
			w.run(task)
		}
	}
}

// Enqueue hands a task to the writer without blocking. It is safe to call
// from any goroutine, including transport callbacks.
func (w *Writer) Enqueue(task func()) error {
	select {
	case <-w.stopped:
		return ErrWriterStopped
	default:
	}

	select {
	case w.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do enqueues a task and waits for it to finish. It must not be called from
// the writer goroutine itself.
func (w *Writer) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		task()
	}

	select {
	case <-w.stopped:
		return ErrWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	case w.tasks <- wrapped:
	}

	select {
	case <-finished:
		return nil
	case <-w.stopped:
		return ErrWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func (w *Writer) stop() {
	w.stopOnce.Do(func() { close(w.stopped) })
}

func (*Writer) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Writer task panicked", "panic", r)
		}
	}()
	task()
}
