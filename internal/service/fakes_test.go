package service

import (
	"context"
	"errors"
	"sync"

	"appointment-notifier/internal/model"
)

type fakeSource struct {
	mu           sync.Mutex
	appointments []model.Appointment
	err          error
	calls        int
}

func (f *fakeSource) FetchAllAppointments(ctx context.Context) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Appointment, len(f.appointments))
	copy(out, f.appointments)
	return out, nil
}

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
}

func (f *fakeNotifier) SendMessage(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return &DeliveryError{Recipient: to, Err: errors.New("smtp: 550 mailbox unavailable")}
	}
	f.sent = append(f.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

// recordingCache wraps a MemoryDedupCache and records mutations
type recordingCache struct {
	*MemoryDedupCache
	mu      sync.Mutex
	inserts []string
	clears  int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{MemoryDedupCache: NewMemoryDedupCache()}
}

func (c *recordingCache) Insert(key string) {
	c.mu.Lock()
	c.inserts = append(c.inserts, key)
	c.mu.Unlock()
	c.MemoryDedupCache.Insert(key)
}

func (c *recordingCache) Clear() {
	c.mu.Lock()
	c.clears++
	c.mu.Unlock()
	c.MemoryDedupCache.Clear()
}
