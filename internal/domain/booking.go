package domain

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusNoShow    BookingStatus = "NO_SHOW"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

func (s BookingStatus) String() string { return string(s) }

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCompleted, BookingStatusNoShow, BookingStatusCancelled:
		return true
	}
	return false
}

// Actionable reports whether automation acts on bookings in this status.
// Everything except CONFIRMED is terminal for alerts and reminders.
func (s BookingStatus) Actionable() bool {
	return s == BookingStatusConfirmed
}

func ParseBookingStatusFromString(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid booking status %q", ErrValidation, s)
	}
	return st, nil
}

// Business is the tenant owning leads, bookings and inventory.
type Business struct {
	ID   string
	Name string
	Slug string
	// TimeZone is stored per tenant but not applied by the reminder sweep.
	TimeZone  string
	CreatedAt time.Time
}

// Booking is a scheduled appointment for a lead.
type Booking struct {
	ID            string
	BusinessID    string
	LeadID        string
	ServiceID     *string
	Date          time.Time
	Status        BookingStatus
	CustomerName  string
	CustomerEmail string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Relations, populated when the store loads them.
	Lead    *Lead
	Service *Service
}

// Service is a bookable offering, optionally consuming inventory.
type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMinutes int
	Price           float64
	Resources       []ServiceResource
}

// DisplayName returns the service name or a generic label.
func (s *Service) DisplayName() string {
	if s == nil || strings.TrimSpace(s.Name) == "" {
		return "Service"
	}
	return strings.TrimSpace(s.Name)
}

// ServiceResource links a service to the inventory it consumes per booking.
type ServiceResource struct {
	ID              string
	ServiceID       string
	InventoryItemID string
	QuantityUsed    int
	InventoryItem   *InventoryItem
}

// InventoryItem is a stocked resource. Quantity may go negative when oversold.
type InventoryItem struct {
	ID         string
	BusinessID string
	Name       string
	Quantity   int
	Threshold  int
	UpdatedAt  time.Time
}

// LowStock reports whether the quantity is at or below the alert floor.
func (i *InventoryItem) LowStock() bool {
	return i != nil && i.Quantity <= i.Threshold
}
