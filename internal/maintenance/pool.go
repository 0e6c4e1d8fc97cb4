package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrQueueFull = errors.New("maintenance job queue full")

// Job is one unit of housekeeping. Run reports how many rows it touched.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "job", job.Name)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type PoolConfig struct {
	MaxWorkers   int
	JobQueueSize int
	// JobTimeout bounds a single run. Zero means one minute.
	JobTimeout time.Duration
}

// Pool runs maintenance jobs on a fixed set of workers fed by a dispatcher.
type Pool struct {
	logger     *slog.Logger
	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	jobTimeout time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once

	// OnResult, when set, observes every finished job.
	OnResult func(job string, affected int64, err error)
}

func NewPool(cfg PoolConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	queueSize := cfg.JobQueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &Pool{
		logger:     logger,
		jobQueue:   make(chan Job, queueSize),
		workerPool: make(chan chan Job, maxWorkers),
		maxWorkers: maxWorkers,
		jobTimeout: timeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *Pool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			NewWorker(i, p.workerPool, p.logger).Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("maintenance worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.logger.Info("dispatcher shutting down")
					return
				}
			case <-p.ctx.Done():
				p.logger.Info("dispatcher shutting down")
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Submit queues job without blocking.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return context.Canceled
	default:
	}

	select {
	case p.jobQueue <- job:
		return nil
	default:
		p.logger.Warn("maintenance queue full, dropping job", "job", job.Name, "queue_capacity", cap(p.jobQueue))
		return ErrQueueFull
	}
}

func (p *Pool) process(job Job) {
	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()

	start := time.Now()
	affected, err := job.Run(ctx)
	if err != nil {
		p.logger.Error("maintenance job failed", "job", job.Name, "error", err)
	} else {
		p.logger.Info("maintenance job finished", "job", job.Name, "affected", affected, "duration", time.Since(start))
	}
	if p.OnResult != nil {
		p.OnResult(job.Name, affected, err)
	}
}

func (p *Pool) Shutdown() {
	p.logger.Info("shutting down maintenance pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("maintenance pool shutdown complete")
}
