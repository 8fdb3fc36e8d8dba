package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mutirao/castracao-backend/api/responses"
	"github.com/mutirao/castracao-backend/internal/webhooks/messaging"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

type MessagingWebhookService interface {
	HandleEvent(ctx context.Context, event messaging.Event) (messaging.Outcome, error)
}

type messagingWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type webhookAck struct {
	Received  bool `json:"received"`
	Ignored   bool `json:"ignored,omitempty"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// MessagingWebhook handles provider events. The guard is optional; without
// redis the service's own inbound table still deduplicates replies.
func MessagingWebhook(svc MessagingWebhookService, secret string, guard messagingWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if strings.TrimSpace(secret) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !messaging.VerifySignature(payload, secret, r.Header.Get(messaging.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature"))
			return
		}

		var event messaging.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event payload"))
			return
		}
		if strings.TrimSpace(event.ID) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id is required"))
			return
		}

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if seen {
				responses.WriteSuccess(w, webhookAck{Received: true, Duplicate: true})
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, event.ID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logg.Info(logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
			"ignored":    outcome.Ignored,
			"duplicate":  outcome.Duplicate,
		}), "messaging event processed")
		responses.WriteSuccess(w, webhookAck{Received: true, Ignored: outcome.Ignored, Duplicate: outcome.Duplicate})
	}
}
