// Package gateway adapts the external messaging provider. Send never returns an
// error value past this boundary: every outcome is folded into a Result.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mutirao/castracao-backend/pkg/config"
	"github.com/mutirao/castracao-backend/pkg/logger"
)

// Outbound is the provider-facing view of a queued message.
type Outbound struct {
	ID        uuid.UUID
	Recipient string
	Body      string
}

// Result is the outcome of one send.
type Result struct {
	OK         bool
	ProviderID string
	Err        error
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Outbound) Result
}

// DeliveryError describes a failed send. Permanent marks provider rejections that
// retrying will not fix; the queue still owns the retry decision.
type DeliveryError struct {
	StatusCode int
	Permanent  bool
	Cause      error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s delivery failure (status %d): %v", kind, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s delivery failure: %v", kind, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

func failure(status int, permanent bool, cause error) Result {
	return Result{Err: &DeliveryError{StatusCode: status, Permanent: permanent, Cause: cause}}
}

// New picks the HTTP client when a provider URL is configured and the dry-run
// sender otherwise.
func New(cfg config.GatewayConfig, logg *logger.Logger, opts ...Option) (Sender, error) {
	if cfg.DryRun || strings.TrimSpace(cfg.BaseURL) == "" {
		return NewDryRun(logg), nil
	}
	return NewHTTPClient(cfg, opts...)
}
