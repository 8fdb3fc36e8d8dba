package controllers

import (
	"context"
	"net/http"

	"github.com/mutirao/castracao-backend/api/responses"
	"github.com/mutirao/castracao-backend/internal/capacity"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
)

type capacitySummarizer interface {
	Summary(ctx context.Context) (capacity.Summary, error)
}

// PublicCapacity reports slot occupancy for every campaign city.
func PublicCapacity(svc capacitySummarizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "capacity service unavailable"))
			return
		}

		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, summary)
	}
}
