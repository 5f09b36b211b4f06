// Package worker runs best-effort side effects (chat provisioning, system
// messages, pushes) after the transaction that triggered them has committed.
// Task failures are retried and logged; they never reach the caller.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oggyb/campus-match/internal/config"
)

// Task is one idempotent side effect.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return backoff.Permanent(err) }

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

type Pool struct {
	workers     int
	tasks       chan Task
	timeout     time.Duration
	maxAttempts uint64
	initialWait time.Duration
	log         *slog.Logger

	pending sync.WaitGroup
	running sync.WaitGroup
	mu      sync.RWMutex
	stopped bool

	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewPool(cfg config.WorkerConfig, log *slog.Logger) *Pool {
	workers := max(cfg.Workers, 1)
	return &Pool{
		workers:     workers,
		tasks:       make(chan Task, max(cfg.QueueSize, 1)),
		timeout:     cfg.TaskTimeout,
		maxAttempts: max(cfg.MaxAttempts, 1),
		initialWait: 100 * time.Millisecond,
		log:         log,
	}
}

func (p *Pool) Start() {
	p.log.Info("starting worker pool", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.running.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues t without blocking. A full queue drops the task.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.dropped.Add(1)
		return ErrStopped
	}

	p.pending.Add(1)
	select {
	case p.tasks <- t:
		return nil
	default:
		p.pending.Done()
		p.dropped.Add(1)
		p.log.Warn("worker queue full, task dropped", "task", t.Name)
		return errors.New("worker queue full")
	}
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() { p.pending.Wait() }

// Stop refuses new tasks, drains the queue and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.running.Wait()
	p.log.Info("worker pool stopped",
		"processed", p.processed.Load(),
		"failed", p.failed.Load(),
		"dropped", p.dropped.Load(),
	)
}

// Stats returns processed, failed and dropped task counts.
func (p *Pool) Stats() (processed, failed, dropped uint64) {
	return p.processed.Load(), p.failed.Load(), p.dropped.Load()
}

func (p *Pool) worker(id int) {
	defer p.running.Done()
	for t := range p.tasks {
		p.execute(id, t)
		p.pending.Done()
	}
}

func (p *Pool) execute(id int, t Task) {
	start := time.Now()
	attempt := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialWait
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		attempt++
		ctx := context.Background()
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		return p.safeRun(ctx, t)
	}, backoff.WithMaxRetries(b, p.maxAttempts-1))

	if err != nil {
		p.failed.Add(1)
		p.log.Error("side effect failed",
			"task", t.Name, "worker_id", id, "attempts", attempt, "err", err)
		return
	}
	p.processed.Add(1)
	p.log.Debug("side effect done",
		"task", t.Name, "worker_id", id, "attempts", attempt, "took", time.Since(start))
}

func (p *Pool) safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(errors.New("task panicked"))
			p.log.Error("side effect panicked", "task", t.Name, "panic", r)
		}
	}()
	return t.Run(ctx)
}
