package api

import (
	"errors"
	"net/http"

	"evidencevault/internal/middleware"
	"evidencevault/internal/service"
	"evidencevault/internal/util"
)

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrTokenInvalid, http.StatusUnauthorized, "unauthorized"},
	{service.ErrUserNotFound, http.StatusUnauthorized, "unauthorized"},
	{service.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrAlreadyEncrypted, http.StatusConflict, "already_encrypted"},
	{service.ErrNotEncrypted, http.StatusConflict, "not_encrypted"},
	{service.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{service.ErrUserOwnsEvidence, http.StatusConflict, "user_owns_evidence"},
	{service.ErrCannotDeleteSelf, http.StatusBadRequest, "cannot_delete_self"},
}

// writeServiceError maps a service error to a response. Errors outside the
// known set are logged and reported without detail.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		util.WriteError(w, http.StatusBadRequest, "validation_error", ve.Msg, rid)
		return
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			util.WriteError(w, m.status, m.code, m.err.Error(), rid)
			return
		}
	}
	h.log.Error(r.Context(), "request failed", "request_id", rid, "method", r.Method, "path", r.URL.Path, "err", err)
	util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", rid)
}

func (h *Handlers) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	util.WriteError(w, http.StatusBadRequest, "bad_request", msg, middleware.RequestID(r.Context()))
}
