package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mutirao/castracao-backend/api/responses"
	"github.com/mutirao/castracao-backend/api/validators"
	"github.com/mutirao/castracao-backend/internal/queue"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/pagination"
)

type messageAdmin interface {
	List(ctx context.Context, params queue.ListParams) (pagination.Page[models.Message], error)
	Requeue(ctx context.Context, id uuid.UUID) (*models.Message, error)
}

// AdminListMessages pages through the outbound queue, optionally filtered by status.
func AdminListMessages(store messageAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "message queue unavailable"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list := queue.ListParams{Params: params}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseMessageStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			list.Status = &status
		}

		page, err := store.List(r.Context(), list)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages"))
			return
		}

		responses.WriteSuccess(w, mapPage(page, newMessageView))
	}
}

// AdminRequeueMessage gives a failed or expired message a fresh set of attempts.
func AdminRequeueMessage(store messageAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "message queue unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, err := store.Requeue(r.Context(), id)
		switch {
		case errors.Is(err, queue.ErrNotFound):
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "message not found"))
			return
		case errors.Is(err, queue.ErrNotRequeueable):
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "only failed or expired messages can be requeued"))
			return
		case err != nil:
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue message"))
			return
		}

		logg.Info(logg.WithField(r.Context(), "message_id", msg.ID.String()), "message requeued")
		responses.WriteSuccess(w, newMessageView(*msg))
	}
}
