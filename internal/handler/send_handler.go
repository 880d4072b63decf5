package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/service"
)

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Send delivers an arbitrary email
func (h *Handlers) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.notifier.SendMessage(c.Request.Context(), req.Mail, req.Subject, req.Text); err != nil {
		logrus.Errorf("Ad-hoc send failed: %v", err)
		h.metrics.AdHocSends.WithLabelValues("send", "failure").Inc()
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delivery_error",
			Message: "An error occurred while sending the email",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	h.metrics.AdHocSends.WithLabelValues("send", "success").Inc()
	c.String(http.StatusOK, "Email sent successfully.")
}

// SendReminder sends a reminder for a caller-supplied appointment. It does
// not consult or update the scanner's dedup cache, so it can re-send at will.
func (h *Handlers) SendReminder(c *gin.Context) {
	var req ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	at, err := parseAppointmentDate(req.Customer.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	minutesLeft := service.MinutesLeft(at, h.now())
	subject, body := service.ReminderMessage(req.Customer.Name, minutesLeft)

	if err := h.notifier.SendMessage(c.Request.Context(), req.Customer.Email, subject, body); err != nil {
		logrus.Errorf("Ad-hoc reminder failed: %v", err)
		h.metrics.AdHocSends.WithLabelValues("reminder", "failure").Inc()
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delivery_error",
			Message: "An error occurred while sending the reminder",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	h.metrics.AdHocSends.WithLabelValues("reminder", "success").Inc()
	c.JSON(http.StatusOK, ReminderResponse{
		Message:     "Reminder sent successfully",
		MinutesLeft: minutesLeft,
	})
}

// SendDailyCustomers runs the daily digest synchronously
func (h *Handlers) SendDailyCustomers(c *gin.Context) {
	result, err := h.scheduler.RunDigest(c.Request.Context())
	if err != nil {
		logrus.Errorf("On-demand digest failed: %v", err)

		var fetchErr *service.FetchError
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error:   "fetch_error",
				Message: "Failed to read appointments",
				Code:    http.StatusBadGateway,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delivery_error",
			Message: "An error occurred while sending the daily customer list",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseAppointmentDate accepts RFC 3339 or a local wall-clock timestamp
func parseAppointmentDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid appointment date %q", value)
}
