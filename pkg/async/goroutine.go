package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/catalogforge/catalog/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery, a timeout, and error
// logging. taskName labels log lines for the task.
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]any{
					"task":  taskName,
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("Panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
}

// WorkerPool runs submitted tasks on a fixed set of workers. Each task gets
// its own timeout-bounded context and panic recovery; task errors are
// logged and reported on the Errors channel.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	logger       *observability.Logger
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines consuming submitted tasks.
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration, logger *observability.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		logger:   logger,
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues fn for execution. It fails once the pool is shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool %s is shut down", p.taskName)
	default:
	}

	// Shutdown may close workCh between the check above and the send
	// below; the recover turns that race into a clean error.
	submitted := false
	func() {
		defer func() { recover() }()
		select {
		case p.workCh <- fn:
			submitted = true
		case <-p.doneCh:
		}
	}()
	if !submitted {
		return fmt.Errorf("worker pool %s is shut down", p.taskName)
	}
	return nil
}

// Shutdown stops accepting work and waits up to timeout for in-flight
// tasks to drain.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		close(p.workCh)

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
		}
	})

	return shutdownErr
}

// Errors exposes task errors. The channel is buffered; overflow is logged
// and dropped rather than blocking workers.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
			func() {
				defer cancel()
				defer func() {
					if r := recover(); r != nil {
						p.logger.WithFields(map[string]any{
							"task":   p.taskName,
							"worker": id,
							"panic":  fmt.Sprint(r),
							"stack":  string(debug.Stack()),
						}).Error("Panic in worker")
						p.reportError(fmt.Errorf("panic in %s worker %d: %v", p.taskName, id, r))
					}
				}()

				if err := fn(ctx); err != nil {
					p.reportError(err)
				}
			}()
		}
	}
}

func (p *WorkerPool) reportError(err error) {
	select {
	case p.errCh <- err:
	default:
		p.logger.WithError(err).WithField("task", p.taskName).Error("Error channel full, dropping error")
	}
}
