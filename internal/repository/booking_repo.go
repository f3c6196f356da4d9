package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"gorm.io/gorm"
)

// BookingQuery filters bookings by status and an inclusive date range.
type BookingQuery struct {
	Status domain.BookingStatus
	From   time.Time
	To     time.Time
}

type BookingRepository interface {
	// GetByID loads the booking with its lead and service relations.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// ListConfirmedBetween returns CONFIRMED bookings with from <= date <= to,
	// relations loaded, ordered by date then id.
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
}

type GormBookingRepo struct {
	db *gorm.DB
}

func NewGormBookingRepo(db *gorm.DB) *GormBookingRepo {
	return &GormBookingRepo{db: db}
}

func (r *GormBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var model BookingModel
	if err := r.withRelations(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, storeError("get booking", err)
	}
	return bookingModelToDomain(&model), nil
}

func (r *GormBookingRepo) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	return r.Query(ctx, BookingQuery{
		Status: domain.BookingStatusConfirmed,
		From:   from,
		To:     to,
	})
}

// Query returns matching bookings with relations, ordered by date then id.
func (r *GormBookingRepo) Query(ctx context.Context, q BookingQuery) ([]domain.Booking, error) {
	query := r.withRelations(ctx).Model(&BookingModel{})

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if !q.From.IsZero() {
		query = query.Where("date >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		query = query.Where("date <= ?", q.To.UTC())
	}

	var models []BookingModel
	if err := query.Order("date ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, storeError("query bookings", err)
	}

	bookings := make([]domain.Booking, 0, len(models))
	for i := range models {
		bookings = append(bookings, *bookingModelToDomain(&models[i]))
	}
	return bookings, nil
}

func (r *GormBookingRepo) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lead").
		Preload("Service").
		Preload("Service.Resources").
		Preload("Service.Resources.InventoryItem")
}
