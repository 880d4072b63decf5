package handler

import "time"

// SendRequest is the body of an ad-hoc email send
type SendRequest struct {
	Mail    string `json:"mail" form:"mail" binding:"required,email"`
	Subject string `json:"subject" form:"subject" binding:"required"`
	Text    string `json:"text" form:"text" binding:"required"`
}

// ReminderCustomer is the appointment payload of an ad-hoc reminder
type ReminderCustomer struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Date  string `json:"date" binding:"required"`
}

// ReminderRequest is the body of an ad-hoc reminder
type ReminderRequest struct {
	Customer ReminderCustomer `json:"customer"`
}

// ReminderResponse reports a sent ad-hoc reminder
type ReminderResponse struct {
	Message     string `json:"message"`
	MinutesLeft int    `json:"minutes_left"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Mail      string            `json:"mail,omitempty"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
