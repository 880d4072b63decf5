package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/service"
)

// jobContext derives a bounded context for one job run. ok is false when the
// scheduler has been stopped.
func (s *Scheduler) jobContext() (ctx context.Context, cancel context.CancelFunc, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil, nil, false
	}
	ctx, cancel = context.WithTimeout(s.ctx, s.config.JobTimeout)
	return ctx, cancel, true
}

// scanAppointments is the periodic reminder scan
func (s *Scheduler) scanAppointments() {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel, ok := s.jobContext()
	if !ok {
		logrus.Info("Scheduler not running, skipping reminder scan")
		return
	}
	defer cancel()

	s.runScan(ctx)
}

func (s *Scheduler) runScan(ctx context.Context) (service.TickResult, error) {
	startTime := time.Now()

	result, err := s.scanner.Tick(ctx)
	if err != nil {
		logrus.Errorf("Reminder scan failed: %v", err)
		return result, err
	}

	logrus.WithFields(logrus.Fields{
		"checked":   result.Checked,
		"qualified": result.Qualified,
		"sent":      result.Sent,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Debugf("Reminder scan completed in %v", time.Since(startTime))
	return result, nil
}

// rotateCache is the periodic dedup cache reset
func (s *Scheduler) rotateCache() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.clearCache()
}

func (s *Scheduler) clearCache() int {
	dropped := s.cache.Len()
	s.cache.Clear()
	s.metrics.CacheClears.Inc()
	s.metrics.DedupCacheSize.Set(0)

	logrus.WithField("dropped", dropped).Info("Reminder dedup cache rotated")
	return dropped
}

// sendDigest is the scheduled daily digest
func (s *Scheduler) sendDigest() {
	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel, ok := s.jobContext()
	if !ok {
		logrus.Info("Scheduler not running, skipping daily digest")
		return
	}
	defer cancel()

	if _, err := s.digest.Run(ctx); err != nil {
		logrus.Errorf("Daily digest failed: %v", err)
	}
}
