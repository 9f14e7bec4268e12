package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/evandrarf/neurocase-be/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// HandlerFunc runs one job and returns the value stored as its result.
type HandlerFunc func(ctx context.Context, job *entity.JobRun) (any, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]HandlerFunc{}}
}

func (r *Registry) Register(jobType string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

func (r *Registry) Get(jobType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

type PoolConfig struct {
	Queue        *GormQueue
	Registry     *Registry
	Log          *logrus.Logger
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	StaleAfter   time.Duration
}

type Pool struct {
	cfg PoolConfig
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Pool{cfg: cfg}
}

// Run polls for jobs on Concurrency goroutines until ctx is cancelled and
// returns once every loop has stopped.
func (p *Pool) Run(ctx context.Context) error {
	p.cfg.Log.WithField("concurrency", p.cfg.Concurrency).Info("starting job worker pool")

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.loop(ctx, workerID)
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.cfg.Log.WithField("worker_id", workerID).Debug("worker loop stopped")
			return
		case <-ticker.C:
			for p.RunOnce(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// RunOnce claims and runs a single job. It reports whether a job was found.
func (p *Pool) RunOnce(ctx context.Context) bool {
	log := p.cfg.Log
	job, err := p.cfg.Queue.Claim(ctx, p.cfg.MaxAttempts, p.cfg.StaleAfter)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("claim job failed")
		}
		return false
	}
	if job == nil {
		return false
	}

	fields := logrus.Fields{"job_id": job.ID, "job_type": job.JobType, "attempt": job.Attempts}
	h, ok := p.cfg.Registry.Get(job.JobType)
	if !ok {
		log.WithFields(fields).Warn("no handler registered for job type")
		p.finish(ctx, job, nil, fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return true
	}

	result, runErr := p.safeRun(ctx, h, job)
	p.finish(ctx, job, result, runErr)
	if runErr != nil {
		log.WithFields(fields).WithError(runErr).Error("job failed")
	} else {
		log.WithFields(fields).Info("job succeeded")
	}
	return true
}

func (p *Pool) safeRun(ctx context.Context, h HandlerFunc, job *entity.JobRun) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

func (p *Pool) finish(ctx context.Context, job *entity.JobRun, result any, runErr error) {
	status := entity.JobStatusSucceeded
	var err error
	if runErr != nil {
		status = entity.JobStatusFailed
		err = p.cfg.Queue.Fail(ctx, job.ID, runErr)
	} else {
		err = p.cfg.Queue.Complete(ctx, job.ID, result)
	}
	metrics.JobsProcessed.WithLabelValues(job.JobType, status).Inc()
	if err != nil {
		p.cfg.Log.WithField("job_id", job.ID).WithError(err).Error("record job outcome failed")
	}
}
