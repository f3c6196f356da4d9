package repository

import (
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
)

// BusinessModel is the persistence model for the businesses table.
type BusinessModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	Slug      string `gorm:"type:varchar(255);not null;uniqueIndex"`
	TimeZone  string `gorm:"type:varchar(64);not null;default:'UTC'"`
	CreatedAt time.Time
}

func (BusinessModel) TableName() string {
	return "businesses"
}

// LeadModel is the persistence model for the leads table.
type LeadModel struct {
	ID               string            `gorm:"type:uuid;primaryKey"`
	BusinessID       string            `gorm:"type:uuid;not null;index"`
	Email            string            `gorm:"type:varchar(255);not null"`
	Name             *string           `gorm:"type:varchar(255)"`
	Phone            *string           `gorm:"type:varchar(32)"`
	Status           domain.LeadStatus `gorm:"type:varchar(20);not null"`
	Source           string            `gorm:"type:varchar(32)"`
	AutomationPaused bool              `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (LeadModel) TableName() string {
	return "leads"
}

// InventoryItemModel is the persistence model for the inventory_items table.
type InventoryItemModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	BusinessID string `gorm:"type:uuid;not null;index"`
	Name       string `gorm:"type:varchar(255);not null"`
	Quantity   int    `gorm:"not null;default:0"`
	Threshold  int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (InventoryItemModel) TableName() string {
	return "inventory_items"
}

// ServiceModel is the persistence model for the services table.
type ServiceModel struct {
	ID              string                 `gorm:"type:uuid;primaryKey"`
	BusinessID      string                 `gorm:"type:uuid;not null;index"`
	Name            string                 `gorm:"type:varchar(255);not null"`
	DurationMinutes int                    `gorm:"not null;default:0"`
	Price           float64                `gorm:"not null;default:0"`
	Resources       []ServiceResourceModel `gorm:"foreignKey:ServiceID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ServiceModel) TableName() string {
	return "services"
}

// ServiceResourceModel links a service to the inventory it consumes.
type ServiceResourceModel struct {
	ID              string              `gorm:"type:uuid;primaryKey"`
	ServiceID       string              `gorm:"type:uuid;not null;index"`
	InventoryItemID string              `gorm:"type:uuid;not null"`
	QuantityUsed    int                 `gorm:"not null;default:1"`
	InventoryItem   *InventoryItemModel `gorm:"foreignKey:InventoryItemID"`
}

func (ServiceResourceModel) TableName() string {
	return "service_resources"
}

// BookingModel is the persistence model for the bookings table.
type BookingModel struct {
	ID            string               `gorm:"type:uuid;primaryKey"`
	BusinessID    string               `gorm:"type:uuid;not null"`
	LeadID        string               `gorm:"type:uuid;not null"`
	ServiceID     *string              `gorm:"type:uuid"`
	Date          time.Time            `gorm:"not null"`
	Status        domain.BookingStatus `gorm:"type:varchar(20);not null"`
	CustomerName  string               `gorm:"type:varchar(255)"`
	CustomerEmail string               `gorm:"type:varchar(255)"`
	Lead          *LeadModel           `gorm:"foreignKey:LeadID"`
	Service       *ServiceModel        `gorm:"foreignKey:ServiceID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BookingModel) TableName() string {
	return "bookings"
}

// MessageModel is the persistence model for the messages table. Rows are
// insert-only.
type MessageModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	BusinessID     string                `gorm:"type:uuid;not null"`
	LeadID         *string               `gorm:"type:uuid"`
	BookingID      *string               `gorm:"type:uuid"`
	Type           domain.MessageType    `gorm:"type:varchar(10);not null"`
	Sender         domain.Sender         `gorm:"type:varchar(10);not null"`
	Content        string                `gorm:"type:text;not null"`
	Read           bool                  `gorm:"not null;default:false"`
	DeliveryStatus domain.DeliveryStatus `gorm:"type:varchar(10);not null"`
	DeliveryError  *string               `gorm:"type:text"`
	CreatedAt      time.Time
}

func (MessageModel) TableName() string {
	return "messages"
}

func leadModelToDomain(m *LeadModel) *domain.Lead {
	if m == nil {
		return nil
	}

	return &domain.Lead{
		ID:               m.ID,
		BusinessID:       m.BusinessID,
		Email:            m.Email,
		Name:             m.Name,
		Phone:            m.Phone,
		Status:           m.Status,
		Source:           m.Source,
		AutomationPaused: m.AutomationPaused,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func inventoryItemModelToDomain(m *InventoryItemModel) *domain.InventoryItem {
	if m == nil {
		return nil
	}

	return &domain.InventoryItem{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		Name:       m.Name,
		Quantity:   m.Quantity,
		Threshold:  m.Threshold,
		UpdatedAt:  m.UpdatedAt,
	}
}

func serviceModelToDomain(m *ServiceModel) *domain.Service {
	if m == nil {
		return nil
	}

	resources := make([]domain.ServiceResource, 0, len(m.Resources))
	for i := range m.Resources {
		r := m.Resources[i]
		resources = append(resources, domain.ServiceResource{
			ID:              r.ID,
			ServiceID:       r.ServiceID,
			InventoryItemID: r.InventoryItemID,
			QuantityUsed:    r.QuantityUsed,
			InventoryItem:   inventoryItemModelToDomain(r.InventoryItem),
		})
	}

	return &domain.Service{
		ID:              m.ID,
		BusinessID:      m.BusinessID,
		Name:            m.Name,
		DurationMinutes: m.DurationMinutes,
		Price:           m.Price,
		Resources:       resources,
	}
}

func bookingModelToDomain(m *BookingModel) *domain.Booking {
	if m == nil {
		return nil
	}

	return &domain.Booking{
		ID:            m.ID,
		BusinessID:    m.BusinessID,
		LeadID:        m.LeadID,
		ServiceID:     m.ServiceID,
		Date:          m.Date,
		Status:        m.Status,
		CustomerName:  m.CustomerName,
		CustomerEmail: m.CustomerEmail,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Lead:          leadModelToDomain(m.Lead),
		Service:       serviceModelToDomain(m.Service),
	}
}

func messageModelFromDomain(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}

	return &MessageModel{
		ID:             msg.ID,
		BusinessID:     msg.BusinessID,
		LeadID:         msg.LeadID,
		BookingID:      msg.BookingID,
		Type:           msg.Type,
		Sender:         msg.Sender,
		Content:        msg.Content,
		Read:           msg.Read,
		DeliveryStatus: msg.DeliveryStatus,
		DeliveryError:  msg.DeliveryError,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	return &domain.Message{
		ID:             m.ID,
		BusinessID:     m.BusinessID,
		LeadID:         m.LeadID,
		BookingID:      m.BookingID,
		Type:           m.Type,
		Sender:         m.Sender,
		Content:        m.Content,
		Read:           m.Read,
		DeliveryStatus: m.DeliveryStatus,
		DeliveryError:  m.DeliveryError,
		CreatedAt:      m.CreatedAt,
	}
}
