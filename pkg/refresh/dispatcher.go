package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/resolver"
)

var (
	// ErrQueueFull is returned when the job queue has no free slot.
	ErrQueueFull = errors.New("refresh queue is full")

	// ErrStopped is returned after Stop or Close.
	ErrStopped = errors.New("refresh dispatcher stopped")

	// ErrDuplicate is returned when a job for the same species is pending.
	ErrDuplicate = errors.New("refresh already pending")
)

// Resolver resolves care details for one request.
type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) care.Result
}

// Job asks for one species to be resolved again.
type Job struct {
	ScientificName string
	CommonName     string
	Family         string

	// Provider is tried first. Empty falls back to the dispatcher default.
	Provider care.Source
}

// Config holds dispatcher configuration.
type Config struct {
	// Workers is the maximum number of jobs running at once.
	Workers int `mapstructure:"workers"`

	// QueueSize is the number of jobs that may wait.
	QueueSize int `mapstructure:"queue_size"`

	// JobTimeout bounds a single resolution.
	JobTimeout time.Duration `mapstructure:"job_timeout"`

	// Provider is the preferred provider for jobs that name none.
	Provider care.Source `mapstructure:"provider"`

	Logger zerolog.Logger `mapstructure:"-"`
}

// DefaultConfig returns dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		Workers:    4,
		QueueSize:  256,
		JobTimeout: 2 * time.Minute,
		Provider:   care.DefaultProvider,
	}
}

// Dispatcher runs refresh jobs on a bounded number of goroutines.
type Dispatcher struct {
	resolver Resolver
	config   Config
	sem      *semaphore.Weighted
	queue    chan Job
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher creates a dispatcher. Call Start to begin processing.
func NewDispatcher(r Resolver, config Config) *Dispatcher {
	if r == nil {
		panic("refresh resolver cannot be nil")
	}
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if !config.Provider.Valid() {
		config.Provider = defaults.Provider
	}

	return &Dispatcher{
		resolver: r,
		config:   config,
		sem:      semaphore.NewWeighted(int64(config.Workers)),
		queue:    make(chan Job, config.QueueSize),
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
		logger:   config.Logger.With().Str("component", "refresh").Logger(),
	}
}

// Enqueue schedules job without blocking.
func (d *Dispatcher) Enqueue(job Job) error {
	job.ScientificName = strings.TrimSpace(job.ScientificName)
	if job.ScientificName == "" {
		jobsTotal.WithLabelValues("rejected").Inc()
		return resolver.ErrInvalidName
	}
	if !job.Provider.Valid() {
		job.Provider = d.config.Provider
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		jobsTotal.WithLabelValues("rejected").Inc()
		return ErrStopped
	}
	if _, ok := d.pending[job.ScientificName]; ok {
		jobsTotal.WithLabelValues("rejected").Inc()
		return ErrDuplicate
	}

	select {
	case d.queue <- job:
		d.pending[job.ScientificName] = struct{}{}
		queueDepth.Inc()
		return nil
	default:
		jobsTotal.WithLabelValues("rejected").Inc()
		return ErrQueueFull
	}
}

// Pending returns the number of queued or running jobs.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Start begins processing jobs. Jobs run with a context derived from ctx;
// cancelling ctx aborts running jobs and stops the dispatcher.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.loop(ctx, loopCtx)
}

// Stop stops accepting jobs, drops queued ones and waits for running jobs.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.stopped = true
	started := d.started
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()

	if !started {
		d.drain()
		close(d.done)
		return
	}
	<-d.done
}

// Close stops accepting jobs and waits until every queued and running job
// is done. Queued jobs are dropped when the dispatcher was never started.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.stopped = true
	started := d.started
	close(d.queue)
	d.mu.Unlock()

	if !started {
		d.drain()
		close(d.done)
		return
	}
	<-d.done
	d.cancel()
}

func (d *Dispatcher) loop(jobCtx, loopCtx context.Context) {
	defer close(d.done)

	d.logger.Info().Int("workers", d.config.Workers).Msg("Refresh dispatcher started")

	for {
		select {
		case <-loopCtx.Done():
			d.shutdown()
			return
		case job, ok := <-d.queue:
			if !ok {
				d.shutdown()
				return
			}
			queueDepth.Dec()
			if err := d.sem.Acquire(loopCtx, 1); err != nil {
				d.finish(job.ScientificName)
				jobsTotal.WithLabelValues("dropped").Inc()
				d.shutdown()
				return
			}
			go func() {
				defer d.sem.Release(1)
				d.run(jobCtx, job)
			}()
		}
	}
}

// shutdown drops queued jobs and waits until every running job released its
// slot. After Close the queue is already empty and closed.
func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	dropped := d.drain()

	// Acquiring every slot blocks until running jobs are done.
	_ = d.sem.Acquire(context.Background(), int64(d.config.Workers))
	d.sem.Release(int64(d.config.Workers))

	d.logger.Info().Int("dropped", dropped).Msg("Refresh dispatcher stopped")
}

func (d *Dispatcher) drain() int {
	dropped := 0
	for {
		select {
		case job, ok := <-d.queue:
			if !ok {
				return dropped
			}
			queueDepth.Dec()
			d.finish(job.ScientificName)
			jobsTotal.WithLabelValues("dropped").Inc()
			dropped++
		default:
			return dropped
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	start := time.Now()
	defer d.finish(job.ScientificName)

	ctx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	result := d.resolver.Resolve(ctx, resolver.Request{
		ScientificName: job.ScientificName,
		CommonName:     job.CommonName,
		Family:         job.Family,
		Provider:       job.Provider,
		ForceRefresh:   true,
	})
	jobDuration.Observe(time.Since(start).Seconds())

	logger := d.logger.With().
		Str("scientific_name", job.ScientificName).
		Str("provider", string(job.Provider)).
		Dur("duration", time.Since(start)).
		Logger()

	if !result.Success {
		jobsTotal.WithLabelValues("failed").Inc()
		logger.Warn().Str("message", result.Message).Msg("Refresh job failed")
		return
	}
	jobsTotal.WithLabelValues("success").Inc()
	logger.Debug().Str("source", string(result.Source)).Msg("Refresh job completed")
}

func (d *Dispatcher) finish(name string) {
	d.mu.Lock()
	delete(d.pending, name)
	d.mu.Unlock()
}
