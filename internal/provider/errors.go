package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kursadbilgin/careops-engine/internal/domain"
)

// ErrNoRecipient is returned when an email or SMS has nowhere to go.
var ErrNoRecipient = &GatewayError{Message: "recipient is required"}

// GatewayError is a failed send through the messaging gateway. Transient
// failures may succeed on a later attempt; everything else is final.
type GatewayError struct {
	Channel    domain.MessageType
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	if e.Channel != "" {
		b.WriteString(strings.ToLower(e.Channel.String()))
		b.WriteString(" ")
	}
	b.WriteString("gateway error")

	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": status=%d", e.StatusCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a delivery may succeed if attempted again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// transientStatus covers throttling and upstream failures of the SMS webhook.
func transientStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

// smtpFailure wraps a relay error. 4xx replies are temporary rejections, 5xx
// replies are final; anything without a reply code is treated as a
// connection problem.
func smtpFailure(err error) *GatewayError {
	gwErr := &GatewayError{
		Channel:   domain.MessageTypeEmail,
		Message:   "smtp send failed",
		Transient: true,
		Cause:     err,
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		gwErr.StatusCode = protoErr.Code
		gwErr.Transient = protoErr.Code < 500
	}
	return gwErr
}
