package provider

import (
	"context"
	"fmt"
)

// Gateway is the outbound messaging port used by the dispatcher.
type Gateway interface {
	SendEmail(ctx context.Context, to string, content string) error
	SendSMS(ctx context.Context, to string, content string) error
}

// EmailSender delivers email only.
type EmailSender interface {
	SendEmail(ctx context.Context, to string, content string) error
}

// SMSSender delivers SMS only.
type SMSSender interface {
	SendSMS(ctx context.Context, to string, content string) error
}

var _ Gateway = (*ChannelGateway)(nil)

// ChannelGateway routes each channel to its own sender.
type ChannelGateway struct {
	email EmailSender
	sms   SMSSender
}

func NewChannelGateway(email EmailSender, sms SMSSender) (*ChannelGateway, error) {
	if email == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if sms == nil {
		return nil, fmt.Errorf("sms sender is required")
	}
	return &ChannelGateway{email: email, sms: sms}, nil
}

func (g *ChannelGateway) SendEmail(ctx context.Context, to string, content string) error {
	return g.email.SendEmail(ctx, to, content)
}

func (g *ChannelGateway) SendSMS(ctx context.Context, to string, content string) error {
	return g.sms.SendSMS(ctx, to, content)
}
