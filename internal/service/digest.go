package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/metrics"
	"appointment-notifier/internal/model"
)

const digestSubject = "Today's customer list"

// DigestResult describes one digest run
type DigestResult struct {
	Sent  bool `json:"sent"`
	Count int  `json:"count"`
}

// DigestJob mails the operator a summary of today's appointments
type DigestJob struct {
	source          AppointmentSource
	notifier        Notifier
	metrics         *metrics.Metrics
	operatorAddress string
	now             func() time.Time
}

func NewDigestJob(source AppointmentSource, notifier Notifier, m *metrics.Metrics, operatorAddress string) *DigestJob {
	return &DigestJob{
		source:          source,
		notifier:        notifier,
		metrics:         m,
		operatorAddress: operatorAddress,
		now:             time.Now,
	}
}

// Run fetches today's appointments and sends the digest. Nothing is sent
// when no appointment falls on the current local day.
func (j *DigestJob) Run(ctx context.Context) (DigestResult, error) {
	appointments, err := j.source.FetchAllAppointments(ctx)
	if err != nil {
		j.metrics.FetchFailures.Inc()
		j.metrics.DigestFailures.Inc()
		return DigestResult{}, &FetchError{Err: err}
	}

	batch := todaysBatch(appointments, j.now())
	if len(batch) == 0 {
		logrus.Info("No appointments today, skipping digest")
		return DigestResult{}, nil
	}

	subject, body := FormatDigest(batch)
	if err := j.notifier.SendMessage(ctx, j.operatorAddress, subject, body); err != nil {
		j.metrics.DigestFailures.Inc()
		return DigestResult{Count: len(batch)}, err
	}

	j.metrics.DigestsSent.Inc()
	logrus.WithField("count", len(batch)).Info("Daily digest sent")
	return DigestResult{Sent: true, Count: len(batch)}, nil
}

// todaysBatch keeps appointments in [today 00:00, tomorrow 00:00) local time,
// ordered by start time
func todaysBatch(appointments []model.Appointment, now time.Time) []model.Appointment {
	y, m, d := now.In(time.Local).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 1)

	var batch []model.Appointment
	for _, appt := range appointments {
		if !appt.ScheduledAt.Before(start) && appt.ScheduledAt.Before(end) {
			batch = append(batch, appt)
		}
	}

	sort.SliceStable(batch, func(i, k int) bool {
		return batch[i].ScheduledAt.Before(batch[k].ScheduledAt)
	})
	return batch
}

// FormatDigest renders the digest email for an already filtered batch
func FormatDigest(batch []model.Appointment) (string, string) {
	lines := make([]string, 0, len(batch))
	for _, appt := range batch {
		lines = append(lines, fmt.Sprintf("%s — %s", appt.CustomerName, appt.ScheduledAt.In(time.Local).Format("15:04")))
	}
	return digestSubject, "Customers arriving today:\n\n" + strings.Join(lines, "\n")
}
