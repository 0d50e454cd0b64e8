// Package cleanup expires cached segment sets on a schedule.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/sponsorskip/internal/logging"
)

// Pruner deletes cache entries last updated before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler handles periodic expiry of cached segment sets
type Scheduler struct {
	pruner   Pruner
	interval time.Duration
	maxAge   time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(pruner Pruner, interval, maxAge time.Duration, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		pruner:   pruner,
		interval: interval,
		maxAge:   maxAge,
		log:      logging.Component(log, "cleanup"),
		now:      time.Now,
	}
}

// Start runs one sweep immediately, then one per interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		return
	}
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	s.log.Info("Running initial cache cleanup...")
	s.Sweep(context.Background())

	ticker := time.NewTicker(s.interval)
	go func(stop, done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-stop:
				return
			}
		}
	}(s.stopChan, s.done)

	s.log.WithFields(logrus.Fields{"interval": s.interval, "max_age": s.maxAge}).Info("Cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.log.Info("Cleanup scheduler stopped")
}

// Sweep removes entries older than the max age.
func (s *Scheduler) Sweep(ctx context.Context) int64 {
	n, err := s.pruner.Prune(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		s.log.WithError(err).Warn("Cache cleanup failed")
		return 0
	}
	if n > 0 {
		s.log.WithField("removed", n).Info("Expired cached ads removed")
	}
	return n
}
