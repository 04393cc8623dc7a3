package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"evidencevault/internal/auth"
	"evidencevault/internal/blob"
	"evidencevault/internal/models"
	"evidencevault/internal/store"
)

// allowedType is the upload media-type allowlist.
func allowedType(mediaType string) bool {
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"video/mp4", "audio/mpeg",
		"text/plain":
		return true
	}
	return false
}

type UploadInput struct {
	CaseNumber  string
	Description string
	FileName    string
	ContentType string
	// Size is the declared size, or -1 when unknown.
	Size int64
	Body io.Reader
}

// EvidenceDetail is a record together with its action history.
type EvidenceDetail struct {
	models.Evidence
	Logs []models.AuditEntry `json:"logs"`
}

// ListEvidence scopes non-admins to their own records whatever filter they
// pass.
func (s *Service) ListEvidence(ctx context.Context, id models.Identity, q models.EvidenceQuery) ([]models.Evidence, error) {
	if err := auth.Authorize(id, auth.ActEvidenceList); err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		q.OfficerID = id.UserID
	}
	return s.st.ListEvidence(ctx, q)
}

func (s *Service) GetEvidence(ctx context.Context, id models.Identity, evidenceID string) (EvidenceDetail, error) {
	e, err := s.loadEvidence(ctx, id, auth.ActEvidenceRead, evidenceID)
	if err != nil {
		return EvidenceDetail{}, err
	}
	logs, err := s.st.ListEvidenceLogs(ctx, e.ID)
	if err != nil {
		return EvidenceDetail{}, fmt.Errorf("list evidence logs: %w", err)
	}
	return EvidenceDetail{Evidence: e, Logs: logs}, nil
}

// loadEvidence applies the role gate, fetches a live record and then applies
// the ownership gate where the action declares one.
func (s *Service) loadEvidence(ctx context.Context, id models.Identity, action auth.Action, evidenceID string) (models.Evidence, error) {
	if err := auth.Authorize(id, action); err != nil {
		return models.Evidence{}, err
	}
	e, err := s.st.GetEvidence(ctx, evidenceID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Evidence{}, ErrNotFound
	}
	if err != nil {
		return models.Evidence{}, fmt.Errorf("get evidence: %w", err)
	}
	if e.Status == models.EvidenceDeleted {
		return models.Evidence{}, ErrNotFound
	}
	if err := auth.AuthorizeResource(id, action, e.OfficerID); err != nil {
		return models.Evidence{}, err
	}
	return e, nil
}

// UploadEvidence stores the blob first and then inserts the record. Whatever
// fails after the blob is written removes it again.
func (s *Service) UploadEvidence(ctx context.Context, id models.Identity, ip string, in UploadInput) (models.Evidence, error) {
	if err := auth.Authorize(id, auth.ActEvidenceUpload); err != nil {
		return models.Evidence{}, err
	}
	caseNumber := strings.TrimSpace(in.CaseNumber)
	if caseNumber == "" {
		return models.Evidence{}, invalid("case_number is required")
	}
	original := filepath.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), "\\", "/"))
	if in.Body == nil || original == "" || original == "." || original == ".." || original == "/" {
		return models.Evidence{}, invalid("file is required")
	}
	mediaType, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil || !allowedType(mediaType) {
		return models.Evidence{}, invalid("file type %q is not allowed", in.ContentType)
	}
	if in.Size > s.cfg.UploadMaxBytes {
		return models.Evidence{}, invalid("file exceeds the %d byte limit", s.cfg.UploadMaxBytes)
	}

	body, err := s.limitBody(in.Body)
	if err != nil {
		return models.Evidence{}, err
	}

	name, err := blob.NewName(original)
	if err != nil {
		return models.Evidence{}, err
	}
	n, err := s.blobs.Put(ctx, name, body)
	if err != nil {
		s.discardBlob(ctx, name)
		return models.Evidence{}, fmt.Errorf("store blob: %w", err)
	}
	if n > s.cfg.UploadMaxBytes {
		s.discardBlob(ctx, name)
		return models.Evidence{}, invalid("file exceeds the %d byte limit", s.cfg.UploadMaxBytes)
	}

	var desc *string
	if d := strings.TrimSpace(in.Description); d != "" {
		desc = &d
	}
	e, err := s.st.CreateEvidence(ctx, models.Evidence{
		CaseNumber:       caseNumber,
		FileName:         name,
		OriginalFileName: original,
		FilePath:         name,
		FileSize:         n,
		FileType:         mediaType,
		Description:      desc,
		OfficerID:        id.UserID,
	})
	if err != nil {
		s.discardBlob(ctx, name)
		return models.Evidence{}, fmt.Errorf("create evidence: %w", err)
	}
	e.OfficerName = id.Name
	s.recordEvidence(ctx, id, e.ID, ip, models.ActionUpload, "Uploaded file: "+original)
	return e, nil
}

// limitBody bounds an upload body to the configured ceiling. Seekable bodies
// (multipart temp files) are measured and passed through untouched so a blob
// store can stream them; anything else reads at most one byte past the limit.
func (s *Service) limitBody(r io.Reader) (io.Reader, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return io.LimitReader(r, s.cfg.UploadMaxBytes+1), nil
	}
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("measure upload: %w", err)
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measure upload: %w", err)
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return nil, fmt.Errorf("measure upload: %w", err)
	}
	if end-cur > s.cfg.UploadMaxBytes {
		return nil, invalid("file exceeds the %d byte limit", s.cfg.UploadMaxBytes)
	}
	return rs, nil
}

func (s *Service) discardBlob(ctx context.Context, name string) {
	if err := s.blobs.Remove(context.WithoutCancel(ctx), name); err != nil {
		s.log.Warn(ctx, "remove staged blob failed", "blob", name, "err", err)
	}
}

// DownloadEvidence opens the stored blob. The caller must close the reader.
func (s *Service) DownloadEvidence(ctx context.Context, id models.Identity, ip, evidenceID string) (models.Evidence, io.ReadCloser, error) {
	e, err := s.loadEvidence(ctx, id, auth.ActEvidenceDownload, evidenceID)
	if err != nil {
		return models.Evidence{}, nil, err
	}
	rc, err := s.blobs.Open(ctx, e.FilePath)
	if errors.Is(err, blob.ErrNotFound) {
		s.log.Warn(ctx, "evidence blob missing", "evidence", e.ID, "blob", e.FilePath)
		return models.Evidence{}, nil, ErrNotFound
	}
	if err != nil {
		return models.Evidence{}, nil, fmt.Errorf("open blob: %w", err)
	}
	s.recordEvidence(ctx, id, e.ID, ip, models.ActionDownload, "Downloaded file: "+e.OriginalFileName)
	return e, rc, nil
}

func (s *Service) EncryptEvidence(ctx context.Context, id models.Identity, ip, evidenceID string) (models.Evidence, error) {
	return s.setEncrypted(ctx, id, ip, evidenceID, true)
}

func (s *Service) DecryptEvidence(ctx context.Context, id models.Identity, ip, evidenceID string) (models.Evidence, error) {
	return s.setEncrypted(ctx, id, ip, evidenceID, false)
}

func (s *Service) setEncrypted(ctx context.Context, id models.Identity, ip, evidenceID string, encrypted bool) (models.Evidence, error) {
	action, verb, conflict := auth.ActEvidenceEncrypt, models.ActionEncrypt, ErrAlreadyEncrypted
	if !encrypted {
		action, verb, conflict = auth.ActEvidenceDecrypt, models.ActionDecrypt, ErrNotEncrypted
	}
	e, err := s.loadEvidence(ctx, id, action, evidenceID)
	if err != nil {
		return models.Evidence{}, err
	}
	switch err := s.st.SetEvidenceEncrypted(ctx, e.ID, encrypted); {
	case errors.Is(err, store.ErrConflict):
		return models.Evidence{}, conflict
	case errors.Is(err, store.ErrNotFound):
		return models.Evidence{}, ErrNotFound
	case err != nil:
		return models.Evidence{}, fmt.Errorf("update evidence: %w", err)
	}
	e.Encrypted = encrypted
	e.UpdatedAt = s.now().UTC()
	details := "Encrypted evidence file"
	if !encrypted {
		details = "Decrypted evidence file"
	}
	s.recordEvidence(ctx, id, e.ID, ip, verb, details)
	return e, nil
}

// DeleteEvidence soft-deletes a record. The blob is kept.
func (s *Service) DeleteEvidence(ctx context.Context, id models.Identity, ip, evidenceID string) error {
	e, err := s.loadEvidence(ctx, id, auth.ActEvidenceDelete, evidenceID)
	if err != nil {
		return err
	}
	switch err := s.st.SoftDeleteEvidence(ctx, e.ID); {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("delete evidence: %w", err)
	}
	s.recordEvidence(ctx, id, e.ID, ip, models.ActionDelete, "Deleted evidence for case "+e.CaseNumber)
	return nil
}
