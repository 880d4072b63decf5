package model

import "time"

// Appointment statuses
const (
	StatusNotArrived = "not_arrived"
	StatusArrived    = "arrived"
	StatusCancelled  = "cancelled"
)

// Appointment represents a customer appointment in the shared store. Only the
// columns the notifier reads are mapped.
type Appointment struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CustomerName   string    `json:"name" gorm:"type:varchar(255);not null"`
	ContactAddress string    `json:"email" gorm:"type:varchar(255);not null;index"`
	ScheduledAt    time.Time `json:"date" gorm:"not null;index"`
	Status         string    `json:"status" gorm:"type:varchar(50);not null;default:'not_arrived'"`
}

// TableName specifies the table name for Appointment
func (Appointment) TableName() string {
	return "appointments"
}
