package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/metrics"
	"appointment-notifier/internal/model"
)

const reminderSubject = "Appointment reminder"

// TickResult summarizes one reminder scan
type TickResult struct {
	Checked   int `json:"checked"`
	Qualified int `json:"qualified"`
	Sent      int `json:"sent"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ReminderScanner finds appointments that start within the reminder window
// and sends each recipient at most one reminder per cache rotation.
type ReminderScanner struct {
	mu            sync.Mutex
	source        AppointmentSource
	notifier      Notifier
	cache         DedupCache
	metrics       *metrics.Metrics
	window        time.Duration
	pendingStatus string
	now           func() time.Time
}

// NewReminderScanner creates a scanner. pendingStatus is the appointment
// status that marks a customer who has not arrived yet.
func NewReminderScanner(source AppointmentSource, notifier Notifier, cache DedupCache, m *metrics.Metrics, window time.Duration, pendingStatus string) *ReminderScanner {
	return &ReminderScanner{
		source:        source,
		notifier:      notifier,
		cache:         cache,
		metrics:       m,
		window:        window,
		pendingStatus: pendingStatus,
		now:           time.Now,
	}
}

// Tick runs one scan. A fetch failure returns a *FetchError and leaves the
// cache untouched; individual send failures are counted in the result and
// retried by a later tick.
func (s *ReminderScanner) Tick(ctx context.Context) (TickResult, error) {
	// Ticks are serialized so the cache check and insert for a key cannot
	// interleave with another tick.
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()
	s.metrics.ScanCount.Inc()

	now := s.now()
	windowEnd := now.Add(s.window)

	appointments, err := s.source.FetchAllAppointments(ctx)
	if err != nil {
		s.metrics.FetchFailures.Inc()
		return TickResult{}, &FetchError{Err: err}
	}

	result := TickResult{Checked: len(appointments)}

	for _, appt := range appointments {
		if !s.qualifies(appt, now, windowEnd) {
			continue
		}
		result.Qualified++

		key := DedupKey(appt.ContactAddress)
		if s.cache.Contains(key) {
			result.Skipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			s.metrics.DedupCacheSize.Set(float64(s.cache.Len()))
			return result, fmt.Errorf("reminder scan interrupted: %w", err)
		}

		subject, body := ReminderMessage(appt.CustomerName, MinutesLeft(appt.ScheduledAt, now))
		if err := s.notifier.SendMessage(ctx, appt.ContactAddress, subject, body); err != nil {
			result.Failed++
			s.metrics.ReminderFailures.Inc()
			logrus.WithFields(logrus.Fields{
				"appointment_id": appt.ID,
				"to":             appt.ContactAddress,
			}).Errorf("Failed to send reminder: %v", err)
			continue
		}

		s.cache.Insert(key)
		result.Sent++
		s.metrics.RemindersSent.Inc()
		logrus.WithFields(logrus.Fields{
			"appointment_id": appt.ID,
			"to":             appt.ContactAddress,
			"scheduled_at":   appt.ScheduledAt.Format(time.RFC3339),
		}).Info("Reminder sent")
	}

	s.metrics.DedupCacheSize.Set(float64(s.cache.Len()))
	return result, nil
}

// qualifies reports whether appt is pending and scheduled in (now, windowEnd]
func (s *ReminderScanner) qualifies(appt model.Appointment, now, windowEnd time.Time) bool {
	if appt.Status != s.pendingStatus {
		return false
	}
	return appt.ScheduledAt.After(now) && !appt.ScheduledAt.After(windowEnd)
}

// MinutesLeft returns the whole minutes from now until at, rounded down
func MinutesLeft(at, now time.Time) int {
	return int(math.Floor(at.Sub(now).Minutes()))
}

// ReminderMessage renders the reminder email for a customer
func ReminderMessage(name string, minutesLeft int) (string, string) {
	body := fmt.Sprintf("Hello %s,\n\n"+
		"Less than an hour is left until your appointment. Please remember to arrive on time.\n"+
		"Time remaining: %d minutes.", name, minutesLeft)
	return reminderSubject, body
}
