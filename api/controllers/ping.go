package controllers

import (
	"net/http"

	"github.com/mutirao/castracao-backend/api/middleware"
	"github.com/mutirao/castracao-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "admin", "status": "ok"}
		if id, ok := middleware.PrincipalIDFromContext(r.Context()); ok {
			payload["admin_id"] = id.String()
		}
		responses.WriteSuccess(w, payload)
	}
}
