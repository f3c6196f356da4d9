package domain

import (
	"fmt"
	"strings"
	"time"
)

// LeadStatus is the CRM pipeline stage of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
	LeadStatusQualified LeadStatus = "QUALIFIED"
	LeadStatusConverted LeadStatus = "CONVERTED"
	LeadStatusLost      LeadStatus = "LOST"
)

func (s LeadStatus) String() string { return string(s) }

func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}

func ParseLeadStatusFromString(s string) (LeadStatus, error) {
	st := LeadStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid lead status %q", ErrValidation, s)
	}
	return st, nil
}

// Lead is a customer contact owned by a business.
type Lead struct {
	ID         string
	BusinessID string
	Email      string
	Name       *string
	Phone      *string
	Status     LeadStatus
	Source     string
	// AutomationPaused is set when an operator messages the lead by hand.
	// It is never cleared automatically.
	AutomationPaused bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AutomationEnabled reports whether automated messages may target the lead.
// A nil lead never receives automation.
func (l *Lead) AutomationEnabled() bool {
	return l != nil && !l.AutomationPaused
}

// SMSAddress returns the phone number when known and falls back to email.
func (l *Lead) SMSAddress() string {
	if l == nil {
		return ""
	}
	if l.Phone != nil {
		if phone := strings.TrimSpace(*l.Phone); phone != "" {
			return phone
		}
	}
	return strings.TrimSpace(l.Email)
}
