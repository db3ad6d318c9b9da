package query

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"lineagecore/pkg/domain"
)

const (
	defaultRetentionDays = 90
	defaultSweepInterval = time.Hour
	retentionDaysEnvVar  = "LINEAGECORE_JOB_RETENTION_DAYS"
)

// Sweeper periodically deletes terminal query jobs older than the retention
// window. Result objects are left to the blob store's own lifecycle rules.
type Sweeper struct {
	jobs      domain.JobStore
	log       *zap.SugaredLogger
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper reads the retention window from LINEAGECORE_JOB_RETENTION_DAYS,
// defaulting to 90 days.
func NewSweeper(jobs domain.JobStore, log *zap.SugaredLogger) *Sweeper {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	days := defaultRetentionDays
	if v := os.Getenv(retentionDaysEnvVar); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		} else {
			log.Warnw("invalid retention days, using default", "value", v, "default", defaultRetentionDays)
		}
	}
	return &Sweeper{
		jobs:      jobs,
		log:       log,
		retention: time.Duration(days) * 24 * time.Hour,
		interval:  defaultSweepInterval,
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately so short-lived
// processes still expire stale jobs.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.sweep(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	n, err := s.jobs.DeleteJobsOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Errorw("sweep query jobs", "error", err)
		return
	}
	if n > 0 {
		s.log.Infow("expired query jobs", "deleted", n, "cutoff", cutoff)
	}
}
