package api

import (
	"net/http"

	"evidencevault/internal/middleware"
	"evidencevault/internal/models"
	"evidencevault/internal/util"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := util.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		h.badRequest(w, r, "email and password are required")
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Refresh(r.Context(), identity(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handlers) WhoAmI(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), identity(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

// identity is only called behind Authn, which guarantees it is set.
func identity(r *http.Request) models.Identity {
	id, _ := middleware.Identity(r.Context())
	return id
}

func (h *Handlers) clientIP(r *http.Request) string {
	return middleware.ClientIP(r, h.cfg.TrustProxy)
}
