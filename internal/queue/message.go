package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/careops-engine/internal/domain"
)

// OutboundMessage is the broker payload for a queued email or SMS delivery.
type OutboundMessage struct {
	ID            string             `json:"id"`
	CorrelationID string             `json:"correlationId,omitempty"`
	Channel       domain.MessageType `json:"channel"`
	Recipient     string             `json:"recipient"`
	Content       string             `json:"content"`
}

func (m OutboundMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	if !m.Channel.External() {
		return fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, m.Channel)
	}
	if strings.TrimSpace(m.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	return nil
}
