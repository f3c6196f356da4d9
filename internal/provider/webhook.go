package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/careops-engine/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Content string `json:"content"`
}

var _ SMSSender = (*WebhookSMSSender)(nil)

// WebhookSMSSender posts SMS payloads to an HTTP carrier bridge.
type WebhookSMSSender struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookSMSSender(endpoint string) (*WebhookSMSSender, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookSMSSenderWithClient(endpoint, client)
}

func NewWebhookSMSSenderWithClient(endpoint string, client *resty.Client) (*WebhookSMSSender, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookSMSSender{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (s *WebhookSMSSender) SendSMS(ctx context.Context, to string, content string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("sms sender is not initialized")
	}
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookRequest{
			To:      strings.TrimSpace(to),
			Channel: "sms",
			Content: content,
		}).
		Post(s.endpoint)
	if err != nil {
		return &GatewayError{
			Channel:   domain.MessageTypeSMS,
			Message:   "sms webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &GatewayError{
			Channel:   domain.MessageTypeSMS,
			Message:   "sms webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &GatewayError{
		Channel:    domain.MessageTypeSMS,
		StatusCode: statusCode,
		Message:    webhookErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  transientStatus(statusCode),
	}
}

func webhookErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("sms webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
