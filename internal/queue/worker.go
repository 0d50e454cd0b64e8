package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// DefaultHistory is how many recent jobs Jobs reports.
const DefaultHistory = 32

// Processor runs a single job
type Processor interface {
	Process(ctx context.Context, job *Job) (*types.Resolution, error)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job *Job) (*types.Resolution, error)

// Process calls f
func (f ProcessorFunc) Process(ctx context.Context, job *Job) (*types.Resolution, error) {
	return f(ctx, job)
}

// WorkerPool runs every resolution job in its own tracked goroutine, so a job
// stuck on a hung fetch never delays the others.
type WorkerPool struct {
	processor Processor
	history   int
	log       logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	jobsMu sync.Mutex
	recent []*Job
}

// NewWorkerPool creates a new worker pool keeping the last history jobs for
// status reporting.
func NewWorkerPool(processor Processor, history int, log logrus.FieldLogger) *WorkerPool {
	if history <= 0 {
		history = DefaultHistory
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		processor: processor,
		history:   history,
		log:       logging.Component(log, "queue"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit starts job immediately. It reports false once the pool has stopped.
func (wp *WorkerPool) Submit(job *Job) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		wp.log.WithField("job", job.ID).Warn("Worker pool stopped, dropping job")
		return false
	}

	wp.track(job)
	wp.wg.Add(1)
	go wp.run(job)
	wp.log.WithFields(logrus.Fields{"job": job.ID, "seq": job.Seq}).Debug("Job started")
	return true
}

// Stop rejects new jobs and waits for running ones. In-flight outbound calls
// are cancelled after grace; zero waits indefinitely.
func (wp *WorkerPool) Stop(grace time.Duration) {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	if grace > 0 {
		select {
		case <-done:
		case <-time.After(grace):
			wp.log.Warn("Cancelling in-flight jobs")
			wp.cancel()
			<-done
		}
	} else {
		<-done
	}
	wp.cancel()
	wp.log.Info("Worker pool stopped")
}

// Jobs returns the most recent jobs, oldest first.
func (wp *WorkerPool) Jobs() []JobStatus {
	wp.jobsMu.Lock()
	defer wp.jobsMu.Unlock()

	out := make([]JobStatus, 0, len(wp.recent))
	for _, job := range wp.recent {
		out = append(out, job.snapshot())
	}
	return out
}

func (wp *WorkerPool) track(job *Job) {
	wp.jobsMu.Lock()
	defer wp.jobsMu.Unlock()

	wp.recent = append(wp.recent, job)
	if len(wp.recent) > wp.history {
		wp.recent = wp.recent[len(wp.recent)-wp.history:]
	}
}

func (wp *WorkerPool) finish(job *Job, result *types.Resolution, err error) {
	wp.jobsMu.Lock()
	defer wp.jobsMu.Unlock()

	if err != nil {
		job.Status = types.StatusFailed
		job.Error = err
		return
	}
	job.Result = result
	job.Status = types.StatusCompleted
}

// run processes one job
func (wp *WorkerPool) run(job *Job) {
	defer wp.wg.Done()
	log := wp.log.WithFields(logrus.Fields{"job": job.ID, "seq": job.Seq})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("PANIC processing job: %v\n%s", r, string(debug.Stack()))
			wp.finish(job, nil, fmt.Errorf("worker panic: %v", r))
		}
	}()

	wp.jobsMu.Lock()
	job.Status = types.StatusProcessing
	wp.jobsMu.Unlock()

	result, err := wp.processor.Process(wp.ctx, job)
	wp.finish(job, result, err)
	if err != nil {
		log.WithError(err).Warn("Resolution abandoned")
		return
	}

	log.WithFields(logrus.Fields{
		"applied":  result != nil && result.Applied,
		"duration": time.Since(job.CreatedAt).Round(time.Millisecond),
	}).Debug("Job completed")
}
