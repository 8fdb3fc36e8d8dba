package controllers

import (
	"net/http"

	"github.com/mutirao/castracao-backend/api/middleware"
	"github.com/mutirao/castracao-backend/api/responses"
	"github.com/mutirao/castracao-backend/api/validators"
	"github.com/mutirao/castracao-backend/internal/capacity"
	"github.com/mutirao/castracao-backend/internal/registrations"
	"github.com/mutirao/castracao-backend/pkg/enums"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
)

type registerRequest struct {
	TutorName  string `json:"tutor_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Email      string `json:"email" validate:"omitempty,email,max=254"`
	City       string `json:"city" validate:"required,max=120"`
	AnimalName string `json:"animal_name" validate:"required,max=80"`
	Species    string `json:"species" validate:"required,oneof=dog cat"`
	Notes      string `json:"notes" validate:"omitempty,max=500"`
}

type registerResponse struct {
	Registration registrationView `json:"registration"`
	Waitlisted   bool             `json:"waitlisted"`
	CityManaged  bool             `json:"city_managed"`
	Capacity     *capacity.Bucket `json:"capacity,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"omitempty,max=500"`
}

type updateStatusResponse struct {
	Registration registrationView  `json:"registration"`
	Promoted     *registrationView `json:"promoted,omitempty"`
}

// PublicRegister signs an animal up. Sold-out cities land on the wait-list.
func PublicRegister(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration service unavailable"))
			return
		}

		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		species, err := enums.ParseSpecies(body.Species)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid species"))
			return
		}

		result, err := svc.Register(r.Context(), registrations.RegisterInput{
			TutorName:  validators.SanitizeLine(body.TutorName, 120),
			Phone:      body.Phone,
			Email:      body.Email,
			City:       validators.SanitizeLine(body.City, 120),
			AnimalName: validators.SanitizeLine(body.AnimalName, 80),
			Species:    species,
			Notes:      validators.SanitizeText(body.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, registerResponse{
			Registration: newRegistrationView(result.Registration),
			Waitlisted:   result.Waitlisted,
			CityManaged:  result.CityManaged,
			Capacity:     result.Capacity,
		})
	}
}

// MyRegistrations lists the authenticated tutor's registrations, newest first.
func MyRegistrations(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration service unavailable"))
			return
		}

		tutorID, ok := middleware.PrincipalIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing tutor context"))
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForTutor(r.Context(), tutorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, mapPage(page, newRegistrationView))
	}
}

// AdminUpdateRegistrationStatus moves a registration through its lifecycle and
// reports any wait-listed registration promoted into the freed slot.
func AdminUpdateRegistrationStatus(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseRegistrationStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		result, err := svc.UpdateStatus(r.Context(), id, registrations.UpdateStatusInput{
			Status: status,
			Note:   validators.SanitizeText(body.Note, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := updateStatusResponse{Registration: newRegistrationView(result.Registration)}
		if result.Promoted != nil {
			promoted := newRegistrationView(*result.Promoted)
			resp.Promoted = &promoted
		}
		responses.WriteSuccess(w, resp)
	}
}
