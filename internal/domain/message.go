package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageType is the channel a message was sent through.
type MessageType string

const (
	MessageTypeEmail MessageType = "EMAIL"
	MessageTypeSMS   MessageType = "SMS"
	MessageTypeAlert MessageType = "ALERT"
)

func (t MessageType) String() string { return string(t) }

func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeEmail, MessageTypeSMS, MessageTypeAlert:
		return true
	}
	return false
}

// External reports whether the type is delivered through the messaging gateway.
// Alerts are internal and only recorded.
func (t MessageType) External() bool {
	return t == MessageTypeEmail || t == MessageTypeSMS
}

func ParseMessageTypeFromString(s string) (MessageType, error) {
	mt := MessageType(strings.ToUpper(strings.TrimSpace(s)))
	if !mt.IsValid() {
		return "", fmt.Errorf("%w: invalid message type %q", ErrValidation, s)
	}
	return mt, nil
}

// Sender identifies who originated a message.
type Sender string

const (
	SenderCustomer Sender = "CUSTOMER"
	SenderSystem   Sender = "SYSTEM"
	SenderUser     Sender = "USER"
)

func (s Sender) String() string { return string(s) }

func (s Sender) IsValid() bool {
	switch s {
	case SenderCustomer, SenderSystem, SenderUser:
		return true
	}
	return false
}

func ParseSenderFromString(s string) (Sender, error) {
	sd := Sender(strings.ToUpper(strings.TrimSpace(s)))
	if !sd.IsValid() {
		return "", fmt.Errorf("%w: invalid sender %q", ErrValidation, s)
	}
	return sd, nil
}

// DeliveryStatus is the gateway outcome captured on a message record.
type DeliveryStatus string

const (
	DeliveryStatusSent     DeliveryStatus = "SENT"
	DeliveryStatusFailed   DeliveryStatus = "FAILED"
	DeliveryStatusLogged   DeliveryStatus = "LOGGED"
	DeliveryStatusReceived DeliveryStatus = "RECEIVED"
)

func (s DeliveryStatus) String() string { return string(s) }

// Content limits per message type (in characters).
const (
	MaxSMSContent   = 480
	MaxEmailContent = 10000
	MaxAlertContent = 1000
)

// Message is an inbox/audit record. It is created once and never mutated.
type Message struct {
	ID             string
	BusinessID     string
	LeadID         *string
	BookingID      *string
	Type           MessageType
	Sender         Sender
	Content        string
	Read           bool
	DeliveryStatus DeliveryStatus
	DeliveryError  *string
	CreatedAt      time.Time
}

func (m *Message) Validate() error {
	if strings.TrimSpace(m.BusinessID) == "" {
		return fmt.Errorf("%w: business id is required", ErrValidation)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: invalid message type %q", ErrValidation, m.Type)
	}
	if !m.Sender.IsValid() {
		return fmt.Errorf("%w: invalid sender %q", ErrValidation, m.Sender)
	}

	contentLen := len([]rune(m.Content))
	switch m.Type {
	case MessageTypeSMS:
		if contentLen > MaxSMSContent {
			return fmt.Errorf("%w: SMS content exceeds %d characters (got %d)", ErrValidation, MaxSMSContent, contentLen)
		}
	case MessageTypeEmail:
		if contentLen > MaxEmailContent {
			return fmt.Errorf("%w: email content exceeds %d characters (got %d)", ErrValidation, MaxEmailContent, contentLen)
		}
	case MessageTypeAlert:
		if contentLen > MaxAlertContent {
			return fmt.Errorf("%w: alert content exceeds %d characters (got %d)", ErrValidation, MaxAlertContent, contentLen)
		}
	}

	return nil
}
