package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-notifier/internal/config"
	metricsPkg "appointment-notifier/internal/metrics"
	"appointment-notifier/internal/model"
	"appointment-notifier/internal/service"
	"appointment-notifier/internal/service/scheduler"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubSource struct {
	appointments []model.Appointment
	err          error
}

func (s *stubSource) FetchAllAppointments(ctx context.Context) ([]model.Appointment, error) {
	return s.appointments, s.err
}

type message struct {
	to, subject, body string
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []message
	fail bool
}

func (n *stubNotifier) SendMessage(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return &service.DeliveryError{Recipient: to, Err: errors.New("535 authentication failed")}
	}
	n.sent = append(n.sent, message{to, subject, body})
	return nil
}

type fixture struct {
	router   *gin.Engine
	notifier *stubNotifier
	source   *stubSource
	cache    *service.MemoryDedupCache
	sched    *scheduler.Scheduler
}

var handlerNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, pingErr error) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.SchedulerConfig{
		ScanInterval:     time.Hour,
		RotationInterval: 24 * time.Hour,
		DigestSchedule:   "0 0 8 * * *",
		ReminderWindow:   time.Hour,
		JobTimeout:       5 * time.Second,
		PendingStatus:    model.StatusNotArrived,
	}
	m := metricsPkg.NewMetrics(prometheus.NewRegistry())
	source := &stubSource{}
	notifier := &stubNotifier{}
	cache := service.NewMemoryDedupCache()
	scanner := service.NewReminderScanner(source, notifier, cache, m, cfg.ReminderWindow, cfg.PendingStatus)
	digest := service.NewDigestJob(source, notifier, m, "operator@example.com")
	sched := scheduler.New(cfg, scanner, digest, cache, m)

	h := NewHandlers(stubPinger{err: pingErr}, notifier, sched, m)
	h.now = func() time.Time { return handlerNow }

	r := gin.New()
	h.SetupRoutes(r)
	t.Cleanup(func() { sched.Stop() })

	return &fixture{router: r, notifier: notifier, source: source, cache: cache, sched: sched}
}

func (f *fixture) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "appointment notifier")
}

func TestSendJSON(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/send", "application/json",
		`{"mail":"ayse@example.com","subject":"Hi","text":"See you"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, message{"ayse@example.com", "Hi", "See you"}, f.notifier.sent[0])
}

func TestSendForm(t *testing.T) {
	f := newFixture(t, nil)
	form := url.Values{"mail": {"ayse@example.com"}, "subject": {"Hi"}, "text": {"See you"}}
	w := f.do(http.MethodPost, "/send", "application/x-www-form-urlencoded", form.Encode())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.notifier.sent, 1)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/send", "application/json", `{"mail":"not-an-address","subject":"Hi","text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/send", "application/json", `{"mail":"ayse@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/send", "application/json", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, f.notifier.sent)
}

func TestSendDeliveryFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.fail = true

	w := f.do(http.MethodPost, "/send", "application/json",
		`{"mail":"ayse@example.com","subject":"Hi","text":"See you"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "delivery_error", resp.Error)
}

func TestSendReminder(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"customer":{"name":"Ayse","email":"ayse@example.com","date":"2026-10-16T10:45:30Z"}}`

	w := f.do(http.MethodPost, "/sendReminder", "application/json", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReminderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 45, resp.MinutesLeft)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "Appointment reminder", f.notifier.sent[0].subject)
	assert.Contains(t, f.notifier.sent[0].body, "Time remaining: 45 minutes.")
}

func TestSendReminderBypassesDedupCache(t *testing.T) {
	f := newFixture(t, nil)
	f.cache.Insert("ayse@example.com")
	body := `{"customer":{"name":"Ayse","email":"ayse@example.com","date":"2026-10-16T10:30:00Z"}}`

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodPost, "/sendReminder", "application/json", body)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Len(t, f.notifier.sent, 2)
	assert.Equal(t, 1, f.cache.Len())
}

func TestSendReminderValidation(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/sendReminder", "application/json", `{"customer":{"name":"Ayse","email":"ayse@example.com","date":"tomorrow"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/sendReminder", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, f.notifier.sent)
}

func TestSendReminderDeliveryFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.notifier.fail = true

	w := f.do(http.MethodPost, "/sendReminder", "application/json",
		`{"customer":{"name":"Ayse","email":"ayse@example.com","date":"2026-10-16T10:30:00Z"}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSendDailyCustomers(t *testing.T) {
	f := newFixture(t, nil)
	now := time.Now()
	f.source.appointments = []model.Appointment{
		{ID: 1, CustomerName: "Ayse", ScheduledAt: time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.Local)},
	}

	w := f.do(http.MethodPost, "/sendDailyCustomers", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result service.DigestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, service.DigestResult{Sent: true, Count: 1}, result)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "operator@example.com", f.notifier.sent[0].to)
}

func TestSendDailyCustomersErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.source.err = errors.New("db down")
	w := f.do(http.MethodPost, "/sendDailyCustomers", "", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	f = newFixture(t, nil)
	now := time.Now()
	f.source.appointments = []model.Appointment{
		{ID: 1, CustomerName: "Ayse", ScheduledAt: time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, time.Local)},
	}
	f.notifier.fail = true
	w = f.do(http.MethodPost, "/sendDailyCustomers", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "stopped", resp.Metrics["scheduler"])
	assert.Equal(t, "0", resp.Metrics["dedup_cache_size"])

	assert.Empty(t, resp.Mail)

	f = newFixture(t, errors.New("connection refused"))
	w = f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type checkingNotifier struct {
	*stubNotifier
	err error
}

func (n *checkingNotifier) TestConnection(ctx context.Context) error { return n.err }

func TestHealthCheckMail(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus string
		wantMail   string
	}{
		{"credentials valid", nil, http.StatusOK, "ok", "ok"},
		{"token revoked", errors.New("invalid_grant"), http.StatusServiceUnavailable, "error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			m := metricsPkg.NewMetrics(prometheus.NewRegistry())
			h := NewHandlers(stubPinger{}, &checkingNotifier{stubNotifier: f.notifier, err: tt.err}, f.sched, m)
			r := gin.New()
			h.SetupRoutes(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tt.wantCode, w.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantMail, resp.Mail)
			assert.Equal(t, "ok", resp.Database)
		})
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/api/v1/scheduler/start", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.sched.IsRunning())

	w = f.do(http.MethodPost, "/api/v1/scheduler/start", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = f.do(http.MethodGet, "/api/v1/scheduler/status", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"running"`)

	w = f.do(http.MethodPost, "/api/v1/scheduler/stop", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.sched.IsRunning())
}

func TestRunOnceAndRotateEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	f.source.appointments = []model.Appointment{{
		ID:             1,
		CustomerName:   "Ayse",
		ContactAddress: "ayse@example.com",
		ScheduledAt:    time.Now().Add(15 * time.Minute),
		Status:         model.StatusNotArrived,
	}}

	w := f.do(http.MethodPost, "/api/v1/scheduler/run-once", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.cache.Len())

	w = f.do(http.MethodPost, "/api/v1/scheduler/rotate", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dropped":1`)
	assert.Equal(t, 0, f.cache.Len())

	f.source.err = errors.New("db down")
	w = f.do(http.MethodPost, "/api/v1/scheduler/run-once", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestParseAppointmentDate(t *testing.T) {
	got, err := parseAppointmentDate("2026-10-16T09:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local), got)

	got, err = parseAppointmentDate("2026-10-16T09:30:00+03:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 16, 6, 30, 0, 0, time.UTC)))

	_, err = parseAppointmentDate("16/10/2026")
	assert.Error(t, err)
}
