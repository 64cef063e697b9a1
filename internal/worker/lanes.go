// Package worker runs jobs in per-key FIFO lanes: jobs sharing a key run one
// after another in submission order, jobs with different keys run
// concurrently. A lane's goroutine exits as soon as its queue drains.
package worker

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("worker lanes stopped")

type Job func()

// Lanes runs jobs in one goroutine per busy key.
type Lanes struct {
	logger  *zap.Logger
	mu      sync.Mutex
	queues  map[int64][]Job
	wg      sync.WaitGroup
	stopped bool
}

func NewLanes(logger *zap.Logger) *Lanes {
	return &Lanes{
		logger: logger,
		queues: make(map[int64][]Job),
	}
}

// Submit queues job behind every earlier job for key.
func (l *Lanes) Submit(key int64, job Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	q, active := l.queues[key]
	l.queues[key] = append(q, job)
	if !active {
		l.wg.Add(1)
		go l.run(key)
	}
	return nil
}

// Pending reports how many jobs for key are queued or running.
func (l *Lanes) Pending(key int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues[key])
}

// Active reports how many keys currently have work.
func (l *Lanes) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues)
}

// Stop refuses new jobs and waits for queued ones to finish. Jobs are never
// interrupted.
func (l *Lanes) Stop() {
	l.mu.Lock()
	l.stopped = true
	n := len(l.queues)
	l.mu.Unlock()

	l.logger.Debug("Stopping worker lanes...", zap.Int("active", n))
	l.wg.Wait()
	l.logger.Debug("Worker lanes stopped")
}

func (l *Lanes) run(key int64) {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		q := l.queues[key]
		if len(q) == 0 {
			delete(l.queues, key)
			l.mu.Unlock()
			return
		}
		job := q[0]
		l.mu.Unlock()

		l.exec(key, job)

		l.mu.Lock()
		q = l.queues[key]
		q[0] = nil
		if len(q) == 1 {
			delete(l.queues, key)
			l.mu.Unlock()
			return
		}
		l.queues[key] = q[1:]
		l.mu.Unlock()
	}
}

func (l *Lanes) exec(key int64, job Job) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("lane job panicked", zap.Int64("key", key), zap.Any("panic", r))
		}
	}()
	job()
}
