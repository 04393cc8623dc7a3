package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"evidencevault/internal/models"
	"evidencevault/internal/service"
	"evidencevault/internal/util"
)

// multipartMemory is how much of an upload is held in memory before the
// multipart reader spills to a temp file.
const multipartMemory = 8 << 20

func (h *Handlers) ListEvidence(w http.ResponseWriter, r *http.Request) {
	q := models.EvidenceQuery{
		CaseNumber: strings.TrimSpace(r.URL.Query().Get("case_number")),
		OfficerID:  strings.TrimSpace(r.URL.Query().Get("officer_id")),
	}
	items, err := h.svc.ListEvidence(r.Context(), identity(r), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handlers) GetEvidence(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetEvidence(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, e)
}

// UploadEvidence accepts multipart/form-data with one "file" part plus
// case_number and description fields.
func (h *Handlers) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	// Headroom for the form fields and part headers around the file.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.UploadMaxBytes+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeServiceError(w, r, &service.ValidationError{Msg: "file exceeds the " + strconv.FormatInt(h.cfg.UploadMaxBytes, 10) + " byte limit"})
			return
		}
		h.badRequest(w, r, "expected multipart/form-data body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		h.writeServiceError(w, r, &service.ValidationError{Msg: "exactly one file is required"})
		return
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	e, err := h.svc.UploadEvidence(r.Context(), identity(r), h.clientIP(r), service.UploadInput{
		CaseNumber:  r.FormValue("case_number"),
		Description: r.FormValue("description"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handlers) DownloadEvidence(w http.ResponseWriter, r *http.Request) {
	e, rc, err := h.svc.DownloadEvidence(r.Context(), identity(r), h.clientIP(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", e.FileType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": e.OriginalFileName}))
	if e.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(e.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn(r.Context(), "download interrupted", "evidence", e.ID, "err", err)
	}
}

func (h *Handlers) EncryptEvidence(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.EncryptEvidence(r.Context(), identity(r), h.clientIP(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, e)
}

func (h *Handlers) DecryptEvidence(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.DecryptEvidence(r.Context(), identity(r), h.clientIP(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, e)
}

func (h *Handlers) DeleteEvidence(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvidence(r.Context(), identity(r), h.clientIP(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
