package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"appointment-notifier/internal/model"
)

// Repository reads appointments from the shared store. It never writes.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FetchAllAppointments returns a snapshot of every appointment in the store
func (r *Repository) FetchAllAppointments(ctx context.Context) ([]model.Appointment, error) {
	var appointments []model.Appointment
	result := r.db.WithContext(ctx).Order("id").Find(&appointments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get appointments: %w", result.Error)
	}
	return appointments, nil
}

// Ping checks that the store is reachable
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
