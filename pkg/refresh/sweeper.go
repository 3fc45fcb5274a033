package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/store"
)

// Enqueuer accepts refresh jobs.
type Enqueuer interface {
	Enqueue(job Job) error
}

// SweeperConfig holds sweeper configuration.
type SweeperConfig struct {
	// Interval between sweeps.
	Interval time.Duration `mapstructure:"interval"`

	// BatchSize caps the records enqueued per sweep.
	BatchSize int `mapstructure:"batch_size"`

	// StaleAfter is the freshness window (default care.StaleAfter).
	StaleAfter time.Duration `mapstructure:"stale_after"`

	Logger zerolog.Logger   `mapstructure:"-"`
	Now    func() time.Time `mapstructure:"-"`
}

// DefaultSweeperConfig returns sweeper defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:   time.Hour,
		BatchSize:  50,
		StaleAfter: care.StaleAfter,
	}
}

// Sweeper periodically enqueues uncached and stale records.
type Sweeper struct {
	store    store.Store
	enqueuer Enqueuer
	config   SweeperConfig
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(st store.Store, enqueuer Enqueuer, config SweeperConfig) *Sweeper {
	if st == nil || enqueuer == nil {
		panic("sweeper store and enqueuer cannot be nil")
	}
	defaults := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Sweeper{
		store:    st,
		enqueuer: enqueuer,
		config:   config,
		logger:   config.Logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweepAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Stopping sweeper")
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int("enqueued", n).Msg("Enqueued records needing refresh")
	}
}

// Sweep enqueues one batch of records needing refresh and returns how many
// were accepted. Records already pending are skipped; a full queue ends the
// batch early.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	staleBefore := s.config.Now().Add(-s.config.StaleAfter)
	recs, err := s.store.ListNeedingRefresh(ctx, staleBefore, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for i := range recs {
		job := Job{ScientificName: recs[i].ScientificName}
		if recs[i].CommonName != nil {
			job.CommonName = *recs[i].CommonName
		}
		if recs[i].Family != nil {
			job.Family = *recs[i].Family
		}

		err := s.enqueuer.Enqueue(job)
		switch {
		case err == nil:
			enqueued++
			sweepEnqueuedTotal.Inc()
		case errors.Is(err, ErrDuplicate):
			continue
		case errors.Is(err, ErrQueueFull), errors.Is(err, ErrStopped):
			return enqueued, nil
		default:
			s.logger.Debug().Err(err).Str("scientific_name", job.ScientificName).Msg("Skipping record")
		}
	}
	return enqueued, nil
}
