package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mutirao/castracao-backend/api/validators"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/pagination"
)

type registrationView struct {
	ID              uuid.UUID                `json:"id"`
	TutorID         uuid.UUID                `json:"tutor_id"`
	AnimalName      string                   `json:"animal_name"`
	Species         enums.Species            `json:"species"`
	CityKey         *string                  `json:"city_key,omitempty"`
	Status          enums.RegistrationStatus `json:"status"`
	Notes           *string                  `json:"notes,omitempty"`
	StatusChangedAt time.Time                `json:"status_changed_at"`
	CreatedAt       time.Time                `json:"created_at"`
}

func newRegistrationView(reg models.Registration) registrationView {
	return registrationView{
		ID:              reg.ID,
		TutorID:         reg.TutorID,
		AnimalName:      reg.AnimalName,
		Species:         reg.Species,
		CityKey:         reg.CityKey,
		Status:          reg.Status,
		Notes:           reg.Notes,
		StatusChangedAt: reg.StatusChangedAt,
		CreatedAt:       reg.CreatedAt,
	}
}

type messageView struct {
	ID             uuid.UUID           `json:"id"`
	Recipient      string              `json:"recipient_address"`
	Kind           enums.MessageKind   `json:"kind"`
	Status         enums.MessageStatus `json:"status"`
	Attempts       int                 `json:"attempts"`
	RegistrationID *uuid.UUID          `json:"registration_id,omitempty"`
	LastError      *string             `json:"last_error,omitempty"`
	NextAttemptAt  time.Time           `json:"next_attempt_at"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// newMessageView leaves the body out; it can carry one-time codes.
func newMessageView(msg models.Message) messageView {
	return messageView{
		ID:             msg.ID,
		Recipient:      msg.Recipient,
		Kind:           msg.Kind,
		Status:         msg.Status,
		Attempts:       msg.Attempts,
		RegistrationID: msg.RegistrationID,
		LastError:      msg.LastError,
		NextAttemptAt:  msg.NextAttemptAt,
		FinishedAt:     msg.FinishedAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func mapPage[T, V any](page pagination.Page[T], fn func(T) V) pagination.Page[V] {
	items := make([]V, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, fn(item))
	}
	return pagination.Page[V]{Items: items, NextCursor: page.NextCursor}
}

// pageParams reads limit and cursor, rejecting malformed cursors before any query runs.
func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	if _, err := pagination.ParseCursor(cursor); err != nil {
		return pagination.Params{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return pagination.Params{Limit: limit, Cursor: cursor}, nil
}
