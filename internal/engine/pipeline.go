package engine

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned by Enqueue when the bounded work queue has no
// remaining capacity. Caller-retryable.
var ErrQueueFull = errors.New("update pipeline: queue full")

// ErrStopped is returned by Enqueue after Stop has been called.
var ErrStopped = errors.New("update pipeline: stopped")

// job is a single enqueued update pipeline item: either one tuple from a
// caller that only had one, or a whole pre-batched slice from IndexView.
type job struct {
	tuples []UpdateTuple
}

// Pipeline is a fixed pool of worker goroutines draining a bounded channel
// of update jobs. Each worker accumulates the tuples of up to maxBatch jobs
// per iteration and calls EventIndex.BatchUpdate once per accumulated batch,
// minimizing changeset-mutex acquisitions.
type Pipeline struct {
	index    *EventIndex
	queue    chan job
	maxBatch int
	logger   *slog.Logger

	wg       sync.WaitGroup
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewPipeline creates a Pipeline with numWorkers workers draining a queue
// of capacity queueSize, each worker batching the tuples of up to maxBatch
// jobs per BatchUpdate call.
func NewPipeline(index *EventIndex, numWorkers, queueSize, maxBatch int) *Pipeline {
	if maxBatch <= 0 {
		maxBatch = 256
	}
	p := &Pipeline{
		index:    index,
		queue:    make(chan job, queueSize),
		maxBatch: maxBatch,
		logger:   slog.Default().With("component", "update-pipeline"),
		stopped:  make(chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Enqueue submits tuples as a single job. It returns ErrStopped if Stop has
// been called, ErrQueueFull if the queue has no capacity, or nil on
// acceptance. Ordering within tuples is preserved when a single worker
// drains this job; ordering across jobs handled by different workers is
// not guaranteed.
func (p *Pipeline) Enqueue(tuples []UpdateTuple) error {
	select {
	case <-p.stopped:
		return ErrStopped
	default:
	}
	select {
	case p.queue <- job{tuples: tuples}:
		return nil
	default:
		return ErrQueueFull
	}
}

// worker drains the queue, accumulating the tuples of up to maxBatch jobs
// before calling BatchUpdate, so the queue doesn't starve
// behind a single slow changeset-mutex acquisition.
func (p *Pipeline) worker(id int) {
	defer p.wg.Done()
	logger := p.logger.With("worker", id)
	for {
		batch, ok := p.drainBatch()
		if len(batch) > 0 {
			p.index.BatchUpdate(batch)
		}
		if !ok {
			logger.Info("worker draining complete, exiting")
			return
		}
	}
}

// drainBatch blocks for at least one job (or returns false if the queue is
// closed and empty), then greedily accumulates more without blocking, up to
// maxBatch jobs in all.
func (p *Pipeline) drainBatch() ([]UpdateTuple, bool) {
	var batch []UpdateTuple
	j, ok := <-p.queue
	if !ok {
		return batch, false
	}
	batch = append(batch, j.tuples...)
	for jobs := 1; jobs < p.maxBatch; jobs++ {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return batch, false
			}
			batch = append(batch, j.tuples...)
		default:
			return batch, true
		}
	}
	return batch, true
}

// Stop signals workers to stop accepting new work, closes the queue so
// workers drain whatever remains and exit, then blocks until they have.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
		close(p.queue)
	})
	p.wg.Wait()
}

// QueueDepth returns the number of jobs currently buffered in the queue.
func (p *Pipeline) QueueDepth() int {
	return len(p.queue)
}
