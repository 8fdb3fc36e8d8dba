package gateway

import (
	"context"

	"github.com/mutirao/castracao-backend/pkg/logger"
)

// DryRun logs messages instead of sending them. Used in development and when
// no provider is configured.
type DryRun struct {
	logg *logger.Logger
}

func NewDryRun(logg *logger.Logger) *DryRun {
	if logg == nil {
		logg = logger.Nop()
	}
	return &DryRun{logg: logg}
}

func (d *DryRun) Send(ctx context.Context, msg Outbound) Result {
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID.String(),
		"recipient":  msg.Recipient,
		"body_len":   len(msg.Body),
	}), "gateway dry run: message not sent")
	return Result{OK: true, ProviderID: "dry-run:" + msg.ID.String()}
}
