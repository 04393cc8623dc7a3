package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"evidencevault/internal/service"
	"evidencevault/internal/util"
)

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), identity(r), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": users, "count": len(users)})
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserInput
	if err := util.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	u, err := h.svc.CreateUser(r.Context(), identity(r), h.clientIP(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUserInput
	if err := util.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	u, err := h.svc.UpdateUser(r.Context(), identity(r), h.clientIP(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteUser(r.Context(), identity(r), h.clientIP(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := util.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	if err := h.svc.ResetPassword(r.Context(), identity(r), h.clientIP(r), chi.URLParam(r, "id"), req.NewPassword); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) ChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := util.DecodeJSON(w, r, maxJSONBody, &req); err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	if err := h.svc.ChangeOwnPassword(r.Context(), identity(r), h.clientIP(r), req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
