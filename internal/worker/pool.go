// Package worker runs user-triggered requests in the background.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one background task. Run is called at most once.
type Job struct {
	Name      string
	SessionID string
	Run       func(ctx context.Context) error
}

// Pool manages background workers for async jobs.
type Pool struct {
	log  *zap.Logger
	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a worker pool with the given queue size.
func NewPool(log *zap.Logger, queueSize int) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		log:    log.Named("worker"),
		jobs:   make(chan Job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.processJob(id, job)
			}
		}(i)
	}
}

// Stop closes the queue and waits for queued jobs to finish. Jobs still
// running when ctx ends see their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Submit queues a job without blocking. It reports false when the job was
// dropped because the queue is full or the pool is stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("dropping job: pool stopped", zap.String("job", job.Name), zap.String("session_id", job.SessionID))
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.log.Warn("dropping job: queue full", zap.String("job", job.Name), zap.String("session_id", job.SessionID))
		return false
	}
}

func (p *Pool) processJob(worker int, job Job) {
	log := p.log.With(zap.Int("worker", worker), zap.String("job", job.Name), zap.String("session_id", job.SessionID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := job.Run(p.ctx); err != nil {
		// The job has already applied its outcome to the session.
		log.Info("job finished with error", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	log.Debug("job finished", zap.Duration("elapsed", time.Since(start)))
}
