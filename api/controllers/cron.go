package controllers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mutirao/castracao-backend/api/responses"
	"github.com/mutirao/castracao-backend/internal/dispatch"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
)

const CronSecretHeader = "X-Cron-Secret"

type dispatchRunner interface {
	RunOnce(ctx context.Context) (dispatch.Result, error)
}

// CronDispatch runs one dispatch invocation for an external scheduler. The
// shared secret is accepted from the header or the secret query parameter.
func CronDispatch(runner dispatchRunner, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !cronAuthorized(r, secret) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid cron secret"))
			return
		}
		if runner == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch unavailable"))
			return
		}

		result, err := runner.RunOnce(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "dispatch failed"))
			return
		}

		logg.Info(logg.WithFields(ctx, map[string]any{
			"processed": result.Processed,
			"sent":      result.Sent,
			"failed":    result.Failed,
			"removed":   result.Removed,
			"expired":   result.Expired,
			"skipped":   result.Skipped,
		}), "cron dispatch completed")
		responses.WriteSuccess(w, result)
	}
}

func cronAuthorized(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	provided := strings.TrimSpace(r.Header.Get(CronSecretHeader))
	if provided == "" {
		provided = strings.TrimSpace(r.URL.Query().Get("secret"))
	}
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1
}
