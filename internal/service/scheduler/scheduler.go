package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/config"
	metricsPkg "appointment-notifier/internal/metrics"
	"appointment-notifier/internal/service"
)

// Scheduler hosts the reminder scan, the dedup cache rotation and the daily
// digest as independent cron entries.
type Scheduler struct {
	cron          *cron.Cron
	scanEntry     cron.EntryID
	rotationEntry cron.EntryID
	digestEntry   cron.EntryID
	config        *config.SchedulerConfig
	scanner       *service.ReminderScanner
	digest        *service.DigestJob
	cache         service.DedupCache
	metrics       *metricsPkg.Metrics
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	isRunning     bool
	mu            sync.RWMutex
}

// New creates a new scheduler
func New(cfg *config.SchedulerConfig, scanner *service.ReminderScanner, digest *service.DigestJob, cache service.DedupCache, metrics *metricsPkg.Metrics) *Scheduler {
	return &Scheduler{
		config:  cfg,
		scanner: scanner,
		digest:  digest,
		cache:   cache,
		metrics: metrics,
	}
}

// Start registers the jobs and starts the cron
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	cronLogger := cron.PrintfLogger(logrus.StandardLogger())
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	scanEntry, err := c.AddFunc(everySpec(s.config.ScanInterval), s.scanAppointments)
	if err != nil {
		return fmt.Errorf("failed to add scan job: %w", err)
	}
	rotationEntry, err := c.AddFunc(everySpec(s.config.RotationInterval), s.rotateCache)
	if err != nil {
		return fmt.Errorf("failed to add rotation job: %w", err)
	}
	digestEntry, err := c.AddFunc(s.config.DigestSchedule, s.sendDigest)
	if err != nil {
		return fmt.Errorf("failed to add digest job: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = c
	s.scanEntry = scanEntry
	s.rotationEntry = rotationEntry
	s.digestEntry = digestEntry
	s.cron.Start()
	s.isRunning = true

	logrus.WithFields(logrus.Fields{
		"scan_interval":     s.config.ScanInterval.String(),
		"rotation_interval": s.config.RotationInterval.String(),
		"digest_schedule":   s.config.DigestSchedule,
	}).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	c := s.cron
	s.isRunning = false
	s.mu.Unlock()

	ctx := c.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunOnce runs a single reminder scan (for manual triggering). The scan is
// bounded by the job timeout so it cannot hold the scanner past a scheduled tick.
func (s *Scheduler) RunOnce(ctx context.Context) (service.TickResult, error) {
	logrus.Info("Running reminder scan once")
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	return s.runScan(ctx)
}

// RunDigest sends the daily digest now, bounded by the job timeout
func (s *Scheduler) RunDigest(ctx context.Context) (service.DigestResult, error) {
	logrus.Info("Running daily digest once")
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	return s.digest.Run(ctx)
}

// Rotate clears the dedup cache immediately
func (s *Scheduler) Rotate() int {
	return s.clearCache()
}

// GetNextRun returns the time of the next scheduled scan
func (s *Scheduler) GetNextRun() time.Time {
	return s.entry(func() cron.EntryID { return s.scanEntry }).Next
}

// GetLastRun returns the time of the last scheduled scan
func (s *Scheduler) GetLastRun() time.Time {
	return s.entry(func() cron.EntryID { return s.scanEntry }).Prev
}

// GetNextDigest returns the time of the next scheduled digest
func (s *Scheduler) GetNextDigest() time.Time {
	return s.entry(func() cron.EntryID { return s.digestEntry }).Next
}

// GetNextRotation returns the time of the next dedup cache rotation
func (s *Scheduler) GetNextRotation() time.Time {
	return s.entry(func() cron.EntryID { return s.rotationEntry }).Next
}

// CacheSize returns the number of recipients reminded in the current rotation
func (s *Scheduler) CacheSize() int {
	return s.cache.Len()
}

func (s *Scheduler) entry(id func() cron.EntryID) cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return cron.Entry{}
	}
	return s.cron.Entry(id())
}

// Wait waits for in-flight jobs to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// everySpec turns an interval into a cron descriptor
func everySpec(d time.Duration) string {
	return "@every " + d.String()
}
